package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMetrics is Gin middleware that records request count, latency, in-flight
// requests and response size per route. Static media and the metrics endpoint
// itself are not recorded.
func HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath() // route pattern keeps label cardinality bounded
		if route == "/metrics" || strings.HasPrefix(c.Request.URL.Path, "/media/") {
			c.Next()
			return
		}
		if route == "" {
			route = "unmatched"
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()
		start := time.Now()

		c.Next()

		method := c.Request.Method
		HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			HTTPResponseBytes.WithLabelValues(route).Observe(float64(size))
		}
	}
}
