package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/pawtrip/backend/internal/api/handlers"
	"github.com/pawtrip/backend/internal/config"
	"github.com/pawtrip/backend/internal/metrics"
	"github.com/pawtrip/backend/internal/middleware"
	"github.com/pawtrip/backend/internal/ratelimit"
	"github.com/pawtrip/backend/internal/repository"
	"github.com/pawtrip/backend/internal/services"
	"github.com/pawtrip/backend/internal/storage"
)

// maxBodyBytes caps JSON request bodies; base64 images are about 4/3 of their size
const maxBodyBytes = 48 << 20

// Deps are the services the router exposes
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      storage.ObjectStore
	Style      *services.StyleService
	Sessions   *services.SessionService
	Cache      *services.GenerationCacheService
	Mirror     *services.MirrorService
	Aggregator *services.PlaceAggregator
	Trending   *services.TrendingService
	Shopping   *services.ShoppingService
	Places     repository.PlaceRepository
	Worker     *services.PlaceWorker
	Features   handlers.Features
}

// NewRouter builds the HTTP API. Each expensive route group has its own limiter
// so a burst of searches cannot use up the synthesis budget.
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	maxImage := cfg.Gemini.MaxImageBytes

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), metrics.HTTPMetrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}
		c.Next()
	})

	newLimiter := func() *ratelimit.Limiter {
		return ratelimit.New(ratelimit.Options{
			Interval:               cfg.RateLimit.Interval,
			UniqueTokenPerInterval: cfg.RateLimit.UniqueTokenPerInterval,
		})
	}
	analysisLimit := middleware.RateLimit(newLimiter(), cfg.RateLimit.Analysis, "analysis")
	synthesisLimit := middleware.RateLimit(newLimiter(), cfg.RateLimit.Synthesis, "synthesis")
	itemLimit := middleware.RateLimit(newLimiter(), cfg.RateLimit.ItemImage, "item_image")
	searchLimit := middleware.RateLimit(newLimiter(), cfg.RateLimit.Search, "search")

	healthHandler := handlers.NewHealthHandler(d.DB, d.Features)
	styleHandler := handlers.NewStyleHandler(d.Style, maxImage)
	sessionHandler := handlers.NewSessionHandler(d.Sessions, maxImage)
	placeHandler := handlers.NewPlaceHandler(d.Aggregator, d.Trending)
	shoppingHandler := handlers.NewShoppingHandler(d.Shopping)
	adminHandler := handlers.NewAdminHandler(d.DB, d.Cache, d.Mirror, d.Places, d.Worker)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if local, ok := d.Store.(*storage.LocalStore); ok {
		router.Static("/media", local.Dir())
	}

	api := router.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		style := api.Group("/style")
		{
			style.POST("/analyze", analysisLimit, styleHandler.Analyze)
			style.POST("/generate", synthesisLimit, styleHandler.Generate)
			style.POST("/item-image", itemLimit, styleHandler.ItemImage)

			sessions := style.Group("/sessions")
			{
				sessions.POST("", analysisLimit, sessionHandler.Create)
				sessions.GET("/:id", sessionHandler.Get)
				sessions.POST("/:id/analyze", analysisLimit, sessionHandler.Analyze)
				sessions.POST("/:id/select", sessionHandler.Select)
				sessions.POST("/:id/generate", synthesisLimit, sessionHandler.Generate)
				sessions.POST("/:id/retry", sessionHandler.Retry)
				sessions.POST("/:id/reset", analysisLimit, sessionHandler.Reset)
			}
		}

		places := api.Group("/places")
		{
			places.GET("/search", searchLimit, placeHandler.Search)
			places.GET("/trending", placeHandler.Trending)
		}

		api.GET("/shopping/search", searchLimit, shoppingHandler.Search)

		api.POST("/auth/verify", middleware.VerifyAdminKey(cfg.AdminKey))

		admin := api.Group("/admin")
		admin.Use(middleware.AdminKeyAuth(cfg.AdminKey))
		{
			admin.GET("/cache/stats", adminHandler.CacheStats)
			admin.POST("/cache/prune", adminHandler.PruneCache)
			admin.POST("/mirror", adminHandler.MirrorImage)
			admin.GET("/places/status", adminHandler.PlaceStatus)
			admin.POST("/places/refresh", adminHandler.RefreshPlaces)
		}
	}

	return router
}
