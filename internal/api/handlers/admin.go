package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pawtrip/backend/internal/metrics"
	"github.com/pawtrip/backend/internal/repository"
	"github.com/pawtrip/backend/internal/services"
)

// refreshTimeout bounds a manually triggered place refresh
const refreshTimeout = 30 * time.Minute

type AdminHandler struct {
	db     *gorm.DB
	cache  *services.GenerationCacheService
	mirror *services.MirrorService
	places repository.PlaceRepository
	worker *services.PlaceWorker
}

func NewAdminHandler(db *gorm.DB, cache *services.GenerationCacheService, mirror *services.MirrorService, places repository.PlaceRepository, worker *services.PlaceWorker) *AdminHandler {
	return &AdminHandler{
		db:     db,
		cache:  cache,
		mirror: mirror,
		places: places,
		worker: worker,
	}
}

// CacheStats returns generation cache, mirror and place store totals
// GET /api/admin/cache/stats
func (h *AdminHandler) CacheStats(c *gin.Context) {
	metrics.UpdateStoreMetrics(h.db)

	resp := gin.H{
		"generation": h.cache.Stats(),
		"mirror":     h.mirror.Stats(),
	}
	if h.places != nil {
		if n, err := h.places.Count(c.Request.Context()); err != nil {
			log.Printf("Admin: count places failed: %v", err)
		} else {
			resp["places"] = n
		}
	}
	c.JSON(http.StatusOK, resp)
}

// PruneCache deletes expired generation cache entries
// POST /api/admin/cache/prune
func (h *AdminHandler) PruneCache(c *gin.Context) {
	pruned, err := h.cache.Prune(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	metrics.UpdateStoreMetrics(h.db)
	c.JSON(http.StatusOK, gin.H{
		"pruned": pruned,
		"stats":  h.cache.Stats(),
	})
}

type mirrorRequest struct {
	URL string `json:"url" binding:"required,http_url"`
}

// MirrorImage copies a remote image into our store and returns its public URL.
// On any failure the original URL is returned with mirrored=false.
// POST /api/admin/mirror
func (h *AdminHandler) MirrorImage(c *gin.Context) {
	var req mirrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}

	url := h.mirror.Mirror(c.Request.Context(), req.URL)
	c.JSON(http.StatusOK, gin.H{
		"source":   req.URL,
		"url":      url,
		"mirrored": url != req.URL,
	})
}

// PlaceStatus returns the place worker status
// GET /api/admin/places/status
func (h *AdminHandler) PlaceStatus(c *gin.Context) {
	if h.worker == nil {
		respondError(c, services.ErrServiceDisabled)
		return
	}
	c.JSON(http.StatusOK, h.worker.Status())
}

// RefreshPlaces starts a refresh of the configured queries in the background
// POST /api/admin/places/refresh
func (h *AdminHandler) RefreshPlaces(c *gin.Context) {
	if h.worker == nil {
		respondError(c, services.ErrServiceDisabled)
		return
	}
	if h.worker.IsRefreshing() {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "a place refresh is already running",
			Code:  services.CodeInvalidTransition,
		})
		return
	}

	// The request context ends when we return 202
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if !h.worker.Refresh(ctx) {
			log.Println("Admin: place refresh skipped, another refresh is running")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "place refresh started",
		"status":  "running",
	})
}
