package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Features reports which optional integrations are configured
type Features struct {
	Gemini   bool     `json:"gemini"`
	Places   []string `json:"places"`
	Shopping bool     `json:"shopping"`
	Storage  string   `json:"storage"`
}

type HealthHandler struct {
	db       *gorm.DB
	features Features
}

func NewHealthHandler(db *gorm.DB, features Features) *HealthHandler {
	if features.Places == nil {
		features.Places = []string{}
	}
	return &HealthHandler{db: db, features: features}
}

// Health reports liveness and database reachability
// GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if h.db != nil {
		if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":   status,
		"features": h.features,
	})
}
