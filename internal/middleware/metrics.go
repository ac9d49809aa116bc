package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/telemetry"
)

// MetricsMiddleware returns a Gin handler that records http_requests_total{method, path, status}
// and http_request_duration_seconds{method, path} for every request.
//
// The path label is the matched route template from c.FullPath() (e.g.
// /orgs/:orgId/members/:memberId) rather than the raw URL, so org and member ids do
// not become label values. Unmatched requests use "<no-route>".
//
// Requests whose template is listed in skip (typically the /health and /ready probes)
// are not recorded.
//
// Register after gin.Recovery() and RequestIDMiddleware so the final status is captured:
//
//	router.Use(gin.Recovery())
//	router.Use(RequestIDMiddleware())
//	router.Use(MetricsMiddleware("/health", "/ready"))
func MetricsMiddleware(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}
		if _, ok := skipped[path]; ok {
			return
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
