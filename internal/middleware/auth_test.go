package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCheckBearer(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"valid", "Bearer s3cret", ""},
		{"scheme is case insensitive", "bearer s3cret", ""},
		{"missing header", "", "AUTH_REQUIRED"},
		{"no scheme", "s3cret", "AUTH_INVALID_FORMAT"},
		{"basic scheme", "Basic czNjcmV0", "AUTH_INVALID_FORMAT"},
		{"wrong key", "Bearer guess", "AUTH_INVALID_KEY"},
		{"empty key", "Bearer ", "AUTH_INVALID_KEY"},
		{"key prefix only", "Bearer s3c", "AUTH_INVALID_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := checkBearer(tt.header, "s3cret")
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func adminRouter(key string) *gin.Engine {
	router := gin.New()
	admin := router.Group("/api/admin", AdminKeyAuth(key))
	admin.POST("/cache/prune", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pruned": 0})
	})
	router.POST("/api/auth/verify", VerifyAdminKey(key))
	return router
}

func send(router *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdminKeyAuthBlocksHandler(t *testing.T) {
	router := adminRouter("s3cret")

	w := send(router, "/api/admin/cache/prune", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_INVALID_KEY")
	assert.NotContains(t, w.Body.String(), "pruned")

	w = send(router, "/api/admin/cache/prune", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pruned")
}

func TestAdminKeyAuthOpenWithoutKey(t *testing.T) {
	w := send(adminRouter(""), "/api/admin/cache/prune", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVerifyAdminKey(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		auth       string
		wantStatus int
		wantBody   string
	}{
		{"auth disabled", "", "", http.StatusOK, `"auth_enabled":false`},
		{"valid key", "s3cret", "Bearer s3cret", http.StatusOK, `"valid":true`},
		{"invalid key", "s3cret", "Bearer nope", http.StatusUnauthorized, `"valid":false`},
		{"missing header", "s3cret", "", http.StatusUnauthorized, "AUTH_REQUIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := send(adminRouter(tt.key), "/api/auth/verify", tt.auth)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
