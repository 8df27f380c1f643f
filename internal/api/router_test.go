package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/pawtrip/backend/internal/api/handlers"
	"github.com/pawtrip/backend/internal/config"
	"github.com/pawtrip/backend/internal/database"
	"github.com/pawtrip/backend/internal/repository"
	"github.com/pawtrip/backend/internal/services"
	"github.com/pawtrip/backend/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, mutate func(*config.Config)) (*gin.Engine, *storage.LocalStore) {
	t.Helper()
	cfg := config.Default()
	cfg.AdminKey = "admin-secret"
	if mutate != nil {
		mutate(cfg)
	}

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), logger.Silent)
	require.NoError(t, err)
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080/media")
	require.NoError(t, err)

	gemini := services.NewGeminiService(nil, services.GeminiOptions{})
	cache := services.NewGenerationCacheService(db, 0)
	mirror := services.NewMirrorService(store, nil, db, services.MirrorOptions{Prefix: "mirror/"})
	style := services.NewStyleService(gemini, cache, store, mirror, services.StyleOptions{})
	places := repository.NewGormPlaceRepository(db)

	router := NewRouter(Deps{
		Config:     cfg,
		DB:         db,
		Store:      store,
		Style:      style,
		Sessions:   services.NewSessionService(db, style, store),
		Cache:      cache,
		Mirror:     mirror,
		Aggregator: services.NewPlaceAggregator(nil, nil, services.AggregatorOptions{}),
		Trending:   services.NewTrendingService(places, 8, time.Hour),
		Shopping:   services.NewShoppingService(nil),
		Places:     places,
		Features:   handlers.Features{Storage: "local"},
	})
	return router, store
}

func serve(router http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouterHealth(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := serve(router, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"gemini":false`)
}

func TestRouterMetrics(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	serve(router, http.MethodGet, "/api/health", "")

	w := serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pawtrip_http_requests_total")
}

func TestRouterSearchRateLimit(t *testing.T) {
	router, _ := newTestRouter(t, func(c *config.Config) {
		c.RateLimit.Search = 2
	})

	for i := 0; i < 2; i++ {
		w := serve(router, http.MethodGet, "/api/places/search?q=cafe", "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := serve(router, http.MethodGet, "/api/places/search?q=cafe", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Other limiters are independent
	w = serve(router, http.MethodGet, "/api/places/trending", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterAdminRequiresKey(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := serve(router, http.MethodGet, "/api/admin/cache/stats", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(router, http.MethodGet, "/api/admin/cache/stats", "Bearer admin-secret")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterServesLocalMedia(t *testing.T) {
	router, store := newTestRouter(t, nil)
	require.NoError(t, store.Put(t.Context(), "generated/dog.png", []byte("\x89PNG\r\n\x1a\nimage"), "image/png"))

	w := serve(router, http.MethodGet, "/media/generated/dog.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "image")
}
