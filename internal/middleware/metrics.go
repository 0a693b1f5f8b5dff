package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veridian-labs/doccontrol-backend/internal/observability"
)

// MetricsMiddleware records per-route request counts and latency. A nil
// Metrics makes every call a no-op.
func MetricsMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		metrics.ApiInflightInc()
		c.Next()
		metrics.ApiInflightDec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
