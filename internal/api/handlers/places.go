package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawtrip/backend/internal/models"
	"github.com/pawtrip/backend/internal/providers"
	"github.com/pawtrip/backend/internal/services"
)

type PlaceHandler struct {
	aggregator *services.PlaceAggregator
	trending   *services.TrendingService
}

func NewPlaceHandler(aggregator *services.PlaceAggregator, trending *services.TrendingService) *PlaceHandler {
	return &PlaceHandler{aggregator: aggregator, trending: trending}
}

type searchQuery struct {
	Q    string `form:"q" binding:"required,max=100"`
	Page int    `form:"page" binding:"omitempty,min=1,max=50"`
	Size int    `form:"size" binding:"omitempty,min=1,max=50"`
}

func (q searchQuery) page() providers.Page {
	return providers.Page{Number: q.Page, Size: q.Size}
}

type placeSearchResponse struct {
	Query  string         `json:"query"`
	Page   int            `json:"page"`
	Places []models.Place `json:"places"`
}

// Search queries every configured provider and returns the merged list
// GET /api/places/search?q=&page=&size=
func (h *PlaceHandler) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, err)
		return
	}

	places, err := h.aggregator.Search(c.Request.Context(), q.Q, q.page())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, placeSearchResponse{Query: q.Q, Page: max(q.Page, 1), Places: places})
}

type trendingQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

// Trending returns the highest ranked stored places. Responses are cacheable by CDNs.
// GET /api/places/trending?limit=
func (h *PlaceHandler) Trending(c *gin.Context) {
	var q trendingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, err)
		return
	}

	places, err := h.trending.Top(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", h.trending.CacheControl())
	c.JSON(http.StatusOK, gin.H{"places": places})
}
