package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawtrip/backend/internal/services"
)

type ShoppingHandler struct {
	shopping *services.ShoppingService
}

func NewShoppingHandler(shopping *services.ShoppingService) *ShoppingHandler {
	return &ShoppingHandler{shopping: shopping}
}

// Search finds products for a suggested item's search keyword
// GET /api/shopping/search?q=&page=&size=
func (h *ShoppingHandler) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.shopping.Search(c.Request.Context(), q.Q, q.page())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
