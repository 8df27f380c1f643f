package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pawtrip/backend/internal/config"
	"github.com/pawtrip/backend/internal/metrics"
)

const (
	shutdownGrace        = 15 * time.Second
	storeMetricsInterval = time.Minute
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the place sync worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go a.worker.Start(workerCtx)
	go a.refreshStoreMetrics(workerCtx)

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("PawTrip API listening on %s", a.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	// The worker drains queued batches after in-flight requests have finished
	stopWorker()
	a.worker.Wait()

	if err := a.places.Close(shutdownCtx); err != nil {
		log.Printf("Close place store: %v", err)
	}
	log.Println("Shutdown complete")
	return nil
}

func (a *app) refreshStoreMetrics(ctx context.Context) {
	metrics.UpdateStoreMetrics(a.db)
	ticker := time.NewTicker(storeMetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateStoreMetrics(a.db)
		}
	}
}
