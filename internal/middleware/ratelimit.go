package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pawtrip/backend/internal/metrics"
	"github.com/pawtrip/backend/internal/ratelimit"
	"github.com/pawtrip/backend/internal/services"
)

// RateLimit returns middleware that rejects a client with 429 once it has made
// more than limit requests in the limiter's current window. The handler is not
// run for rejected requests. name labels the limiter in metrics.
func RateLimit(limiter *ratelimit.Limiter, limit int, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := limiter.Check(limit, c.ClientIP())
		metrics.RateLimitTrackedKeys.WithLabelValues(name).Set(float64(limiter.Len()))

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if res.IsRateLimited {
			metrics.RateLimitedTotal.WithLabelValues(name).Inc()
			retryAfter := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			err := &services.RateLimitError{Limiter: name}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": err.Error(),
				"code":  services.CodeOf(err),
			})
			return
		}

		c.Next()
	}
}
