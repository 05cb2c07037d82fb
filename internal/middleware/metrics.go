package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/next-cloud-ai/console/internal/telemetry"
)

// noRouteLabel is the path label recorded for requests that matched no route
const noRouteLabel = "<no-route>"

// MetricsMiddleware records http_requests_total and http_request_duration_seconds for
// every request. The path label is the matched route template (e.g. /api/models/:id), never
// the raw URL, so label cardinality stays bounded.
//
// Register it after gin.Recovery() and RequestIDMiddleware so the final status written by
// error handlers is captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRouteLabel
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
