package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pawtrip/backend/internal/ratelimit"
)

func TestRateLimitRejectsBeforeHandler(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Options{Interval: time.Minute, UniqueTokenPerInterval: 10})

	handlerCalls := 0
	router := gin.New()
	router.POST("/expensive", RateLimit(limiter, 2, "test"), func(c *gin.Context) {
		handlerCalls++
		c.String(http.StatusOK, "done")
	})

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/expensive", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := do("10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, w.Code)
		}
	}

	w := do("10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"RATE_LIMITED"`) {
		t.Errorf("body %q missing RATE_LIMITED code", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "rate limit exceeded for test") {
		t.Errorf("body %q does not name the limiter", w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if handlerCalls != 2 {
		t.Errorf("handler ran %d times, want 2", handlerCalls)
	}

	// A different client has its own window
	if w := do("10.0.0.2"); w.Code != http.StatusOK {
		t.Errorf("other client status %d, want 200", w.Code)
	}
}

func TestRateLimitHeaders(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Options{})
	router := gin.New()
	router.GET("/x", RateLimit(limiter, 5, "test"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want 5", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", got)
	}
}
