package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"

	"github.com/pawtrip/backend/internal/config"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the generation cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show generation cache and mirror statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCore(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			stats := c.cache.Stats()
			mirrored := c.mirror.Stats()
			fmt.Printf("Entries:  %d\nHits:     %d\nExpired:  %d\n", stats.Entries, stats.Hits, stats.Expired)
			fmt.Printf("Mirrored: %d images, %d bytes\n", mirrored.Images, mirrored.Bytes)
			return nil
		},
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired generation cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCore(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			if c.cfg.Cache.GenerationTTL <= 0 {
				fmt.Println("GENERATION_CACHE_TTL is not set; entries never expire.")
			}
			pruned, err := c.cache.Prune(cmd.Context())
			if err != nil {
				return fmt.Errorf("prune cache: %w", err)
			}
			fmt.Printf("Pruned %d expired entries.\n", pruned)
			return nil
		},
	}

	cmd.AddCommand(statsCmd, pruneCmd)
	return cmd
}

func loadCore(ctx context.Context, configPath string) (*core, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return openCore(ctx, cfg, logger.Silent)
}
