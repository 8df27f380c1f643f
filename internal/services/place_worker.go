package services

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pawtrip/backend/internal/metrics"
	"github.com/pawtrip/backend/internal/models"
	"github.com/pawtrip/backend/internal/providers"
	"github.com/pawtrip/backend/internal/repository"
)

const (
	// defaultQueueSize is the number of pending batches before Enqueue drops
	defaultQueueSize = 64
	// drainTimeout bounds how long Start spends persisting queued batches on shutdown
	drainTimeout = 10 * time.Second
	// refreshDelay spaces out refresh queries so providers are not hit in a burst
	refreshDelay = 500 * time.Millisecond
)

// PlaceFetcher aggregates places without queueing them
type PlaceFetcher interface {
	Fetch(ctx context.Context, query string, page providers.Page) ([]models.Place, error)
}

// PlaceWorkerOptions configures the place sync worker
type PlaceWorkerOptions struct {
	QueueSize      int
	RefreshEvery   time.Duration
	RefreshQueries []string
}

// PlaceWorker persists aggregated places off the request path and
// periodically refreshes popular queries so trending stays current.
type PlaceWorker struct {
	repo    repository.PlaceRepository
	mirror  *MirrorService
	fetcher PlaceFetcher
	queue   chan []models.Place
	opts    PlaceWorkerOptions
	done    chan struct{}
	mu      sync.RWMutex

	refreshing atomic.Bool
	onRefresh  []func()

	// Stats
	placesPersisted int
	batchesDropped  int
	lastSyncTime    time.Time
	lastRefreshTime time.Time
}

// PlaceWorkerStatus is reported by the admin status endpoint
type PlaceWorkerStatus struct {
	QueueDepth      int       `json:"queue_depth"`
	QueueCapacity   int       `json:"queue_capacity"`
	PlacesPersisted int       `json:"places_persisted"`
	BatchesDropped  int       `json:"batches_dropped"`
	LastSyncTime    time.Time `json:"last_sync_time"`
	LastRefreshTime time.Time `json:"last_refresh_time"`
	NextRefreshTime time.Time `json:"next_refresh_time,omitempty"`
	RefreshQueries  []string  `json:"refresh_queries"`
	Refreshing      bool      `json:"refreshing"`
}

func NewPlaceWorker(repo repository.PlaceRepository, mirror *MirrorService, opts PlaceWorkerOptions) *PlaceWorker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	return &PlaceWorker{
		repo:   repo,
		mirror: mirror,
		queue:  make(chan []models.Place, opts.QueueSize),
		opts:   opts,
		done:   make(chan struct{}),
	}
}

// SetFetcher wires the aggregator used for scheduled refreshes. The
// aggregator also holds the worker as its sink, so it is set after construction.
func (w *PlaceWorker) SetFetcher(f PlaceFetcher) {
	w.fetcher = f
}

// OnRefresh registers fn to run after a refresh that stored places,
// typically to drop cached trending lists. Call before Start.
func (w *PlaceWorker) OnRefresh(fn func()) {
	w.onRefresh = append(w.onRefresh, fn)
}

// Enqueue queues a batch for persistence. It never blocks; a full queue drops the batch.
func (w *PlaceWorker) Enqueue(places []models.Place) bool {
	batch := make([]models.Place, len(places))
	copy(batch, places)

	select {
	case w.queue <- batch:
		metrics.PlaceQueueDepth.Set(float64(len(w.queue)))
		return true
	default:
		w.mu.Lock()
		w.batchesDropped++
		w.mu.Unlock()
		log.Printf("Place worker: queue full, dropped batch of %d places", len(places))
		return false
	}
}

// Start runs the worker until ctx is cancelled, then persists what is still queued
func (w *PlaceWorker) Start(ctx context.Context) {
	defer close(w.done)
	log.Printf("Place worker started: queue=%d, refresh every %v for %d queries",
		cap(w.queue), w.opts.RefreshEvery, len(w.opts.RefreshQueries))

	// Run immediately on startup
	w.Refresh(ctx)

	var tick <-chan time.Time
	if w.opts.RefreshEvery > 0 {
		ticker := time.NewTicker(w.opts.RefreshEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Place worker stopping...")
			w.drain()
			return
		case batch := <-w.queue:
			metrics.PlaceQueueDepth.Set(float64(len(w.queue)))
			if _, err := w.Persist(ctx, batch); err != nil {
				log.Printf("Place worker: persist failed: %v", err)
			}
		case <-tick:
			w.Refresh(ctx)
		}
	}
}

// Wait blocks until Start has returned
func (w *PlaceWorker) Wait() {
	<-w.done
}

func (w *PlaceWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case batch := <-w.queue:
			if _, err := w.Persist(ctx, batch); err != nil {
				log.Printf("Place worker: persist during shutdown failed: %v", err)
			}
		default:
			metrics.PlaceQueueDepth.Set(0)
			return
		}
	}
}

// Persist mirrors place images to our store and upserts the batch
func (w *PlaceWorker) Persist(ctx context.Context, places []models.Place) (int, error) {
	if len(places) == 0 {
		return 0, nil
	}

	if w.mirror != nil {
		urls := make([]string, len(places))
		for i := range places {
			urls[i] = places[i].ImageURL
		}
		mirrored := w.mirror.MirrorAll(ctx, urls)
		for i := range places {
			places[i].ImageURL = mirrored[i]
		}
	}

	n, err := w.repo.Upsert(ctx, places)
	if err != nil {
		return 0, err
	}
	for _, p := range places {
		metrics.PlacesPersistedTotal.WithLabelValues(string(p.Source)).Inc()
	}

	w.mu.Lock()
	w.placesPersisted += len(places)
	w.lastSyncTime = time.Now()
	w.mu.Unlock()

	log.Printf("Place worker: upserted %d places (%d rows affected)", len(places), n)
	return n, nil
}

// IsRefreshing reports whether a refresh is in progress
func (w *PlaceWorker) IsRefreshing() bool {
	return w.refreshing.Load()
}

// Refresh runs every configured refresh query through the aggregator and
// persists the results. It returns false without doing anything when another
// refresh is already running.
func (w *PlaceWorker) Refresh(ctx context.Context) bool {
	if w.fetcher == nil || len(w.opts.RefreshQueries) == 0 {
		return true
	}
	if !w.refreshing.CompareAndSwap(false, true) {
		return false
	}
	defer w.refreshing.Store(false)

	total := 0
	for i, q := range w.opts.RefreshQueries {
		if i > 0 {
			select {
			case <-ctx.Done():
				return true
			case <-time.After(refreshDelay):
			}
		}
		places, err := w.fetcher.Fetch(ctx, q, providers.Page{Number: 1, Size: maxPageSize})
		if err != nil {
			log.Printf("Place worker: refresh %q failed: %v", q, err)
			continue
		}
		if _, err := w.Persist(ctx, places); err != nil {
			log.Printf("Place worker: refresh %q persist failed: %v", q, err)
			continue
		}
		total += len(places)
	}

	w.mu.Lock()
	w.lastRefreshTime = time.Now()
	w.mu.Unlock()
	log.Printf("Place worker: refresh synced %d places for %d queries", total, len(w.opts.RefreshQueries))
	if total > 0 {
		for _, fn := range w.onRefresh {
			fn()
		}
	}
	return true
}

// Status returns the current worker status
func (w *PlaceWorker) Status() PlaceWorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := PlaceWorkerStatus{
		QueueDepth:      len(w.queue),
		QueueCapacity:   cap(w.queue),
		PlacesPersisted: w.placesPersisted,
		BatchesDropped:  w.batchesDropped,
		LastSyncTime:    w.lastSyncTime,
		LastRefreshTime: w.lastRefreshTime,
		RefreshQueries:  w.opts.RefreshQueries,
		Refreshing:      w.refreshing.Load(),
	}
	if w.opts.RefreshEvery > 0 && !w.lastRefreshTime.IsZero() {
		status.NextRefreshTime = w.lastRefreshTime.Add(w.opts.RefreshEvery)
	}
	return status
}
