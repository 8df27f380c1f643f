package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pawtrip/backend/internal/api"
	"github.com/pawtrip/backend/internal/api/handlers"
	"github.com/pawtrip/backend/internal/config"
	"github.com/pawtrip/backend/internal/database"
	"github.com/pawtrip/backend/internal/providers"
	"github.com/pawtrip/backend/internal/repository"
	"github.com/pawtrip/backend/internal/services"
	"github.com/pawtrip/backend/internal/storage"
)

// core is what every command needs: the database, object store, generation cache and mirror
type core struct {
	cfg    *config.Config
	db     *gorm.DB
	store  storage.ObjectStore
	cache  *services.GenerationCacheService
	mirror *services.MirrorService
}

func openCore(ctx context.Context, cfg *config.Config, logLevel logger.LogLevel) (*core, error) {
	db, err := database.Open(cfg.DBPath, logLevel)
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg.Storage, cfg.Listen)
	if err != nil {
		return nil, err
	}

	optimizer := services.NewImageOptimizer(cfg.Mirror.MaxDimension, cfg.Mirror.Quality)
	mirror := services.NewMirrorService(store, optimizer, db, services.MirrorOptions{
		FetchTimeout: cfg.Mirror.FetchTimeout,
		MaxBytes:     cfg.Mirror.MaxBytes,
		Prefix:       "mirror/",
		Concurrency:  cfg.Mirror.Concurrency,
	})

	return &core{
		cfg:    cfg,
		db:     db,
		store:  store,
		cache:  services.NewGenerationCacheService(db, cfg.Cache.GenerationTTL),
		mirror: mirror,
	}, nil
}

func newStore(ctx context.Context, cfg config.StorageConfig, listen string) (storage.ObjectStore, error) {
	switch cfg.Driver {
	case "s3":
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			PublicURL: cfg.PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 store: %w", err)
		}
		log.Printf("Storage: s3 bucket %s", cfg.Bucket)
		return store, nil
	default:
		publicURL := cfg.PublicURL
		if publicURL == "" {
			host := listen
			if strings.HasPrefix(host, ":") {
				host = "localhost" + host
			}
			publicURL = "http://" + host + "/media"
		}
		store, err := storage.NewLocalStore(cfg.LocalDir, publicURL)
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		log.Printf("Storage: local directory %s served at %s", cfg.LocalDir, publicURL)
		return store, nil
	}
}

func newPlaceRepository(ctx context.Context, cfg config.PlacesConfig, db *gorm.DB) (repository.PlaceRepository, error) {
	if cfg.Store == "mongo" {
		repo, err := repository.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		log.Printf("Places: MongoDB database %s", cfg.MongoDatabase)
		return repo, nil
	}
	return repository.NewGormPlaceRepository(db), nil
}

// app is the fully wired server
type app struct {
	*core
	places repository.PlaceRepository
	worker *services.PlaceWorker
	router http.Handler
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	c, err := openCore(ctx, cfg, logger.Warn)
	if err != nil {
		return nil, err
	}

	var generator services.ContentGenerator
	if cfg.GeminiEnabled() {
		if generator, err = services.NewGeminiModels(ctx, cfg.Gemini.APIKey); err != nil {
			return nil, err
		}
	}
	gemini := services.NewGeminiService(generator, services.GeminiOptions{
		AnalysisModel: cfg.Gemini.AnalysisModel,
		ImageModel:    cfg.Gemini.ImageModel,
		Timeout:       cfg.Gemini.Timeout,
		AnalysisTemp:  cfg.Gemini.AnalysisTemp,
	})
	style := services.NewStyleService(gemini, c.cache, c.store, c.mirror, services.StyleOptions{
		FittingTemp:    cfg.Gemini.FittingTemp,
		PictorialTemp:  cfg.Gemini.PictorialTemp,
		VariantTimeout: cfg.Gemini.VariantTimeout,
		MaxReferences:  cfg.Gemini.MaxReferences,
	})

	places, err := newPlaceRepository(ctx, cfg.Places, c.db)
	if err != nil {
		return nil, err
	}

	worker := services.NewPlaceWorker(places, c.mirror, services.PlaceWorkerOptions{
		QueueSize:      cfg.Places.QueueSize,
		RefreshEvery:   cfg.Places.RefreshEvery,
		RefreshQueries: cfg.Places.RefreshQuery,
	})
	registry := providers.FromConfig(cfg.Providers)
	aggregator := services.NewPlaceAggregator(registry.Places, worker, services.AggregatorOptions{
		DefaultLat: cfg.Places.DefaultLat,
		DefaultLng: cfg.Places.DefaultLng,
	})
	worker.SetFetcher(aggregator)

	trending := services.NewTrendingService(places, cfg.Cache.TrendingSize, cfg.Cache.TrendingTTL)
	worker.OnRefresh(trending.Invalidate)

	var shop services.ProductSearcher
	if registry.Shopping != nil {
		shop = registry.Shopping
	}

	features := handlers.Features{
		Gemini:   gemini.IsEnabled(),
		Shopping: shop != nil,
		Storage:  cfg.Storage.Driver,
	}
	for _, p := range registry.Places {
		features.Places = append(features.Places, string(p.Name()))
	}

	router := api.NewRouter(api.Deps{
		Config:     cfg,
		DB:         c.db,
		Store:      c.store,
		Style:      style,
		Sessions:   services.NewSessionService(c.db, style, c.store),
		Cache:      c.cache,
		Mirror:     c.mirror,
		Aggregator: aggregator,
		Trending:   trending,
		Shopping:   services.NewShoppingService(shop),
		Places:     places,
		Worker:     worker,
		Features:   features,
	})

	return &app{core: c, places: places, worker: worker, router: router}, nil
}
