// Package telemetry provides application-level observability for the service.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// available on the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<TNT_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Membership lifecycle counters (invitations, member changes, API tokens)
//   - Principal resolution and rate limiter counters
//   - Background job counters (invitation purge, token expiry notices)
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /orgs/:orgId/members/:memberId)
// rather than the raw request URL so organization and member ids never become labels.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tenantry/tenantry/internal/safego"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /orgs/:orgId/invitations/:invitationId),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
//
// Example PromQL queries:
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
//   - Average latency:                   rate(http_request_duration_seconds_sum[5m]) / rate(http_request_duration_seconds_count[5m])
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Membership lifecycle metrics, incremented by the services layer after a
// mutation commits.
//
// InvitationsTotal is a CounterVec with label {event}: created, revoked, accepted,
// rejected_capacity.
//
// Example PromQL queries:
//   - Invitations accepted per hour:  increase(invitations_total{event="accepted"}[1h])
//   - Capacity rejections:            rate(invitations_total{event="rejected_capacity"}[1h])
//
// MembershipsChangedTotal is a CounterVec with label {event}: joined, role_changed, removed.
//
// APITokensTotal is a CounterVec with label {event}: issued, revoked.
//
// Example PromQL queries:
//   - Token issuance rate:  rate(api_tokens_total{event="issued"}[1d])
var (
	InvitationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invitations_total",
			Help: "Total number of invitation lifecycle events, by event.",
		},
		[]string{"event"},
	)

	MembershipsChangedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memberships_changed_total",
			Help: "Total number of membership changes, by event.",
		},
		[]string{"event"},
	)

	APITokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_tokens_total",
			Help: "Total number of API token lifecycle events, by event.",
		},
		[]string{"event"},
	)
)

// Request authentication metrics.
//
// PrincipalResolutionsTotal is a CounterVec with label {method}: session, api_token,
// header, none. A sudden shift towards "none" usually means the session service is down.
//
// Example PromQL queries:
//   - Anonymous share:  sum(rate(principal_resolutions_total{method="none"}[5m])) / sum(rate(principal_resolutions_total[5m]))
//
// RateLimitRejectionsTotal is a CounterVec with label {backend}: memory, redis.
var (
	PrincipalResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "principal_resolutions_total",
			Help: "Total number of request principal resolutions, by authentication method.",
		},
		[]string{"method"},
	)

	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter, by backend.",
		},
		[]string{"backend"},
	)
)

// ActivityRecordFailuresTotal counts activity entries that could not be written.
// Activity recording never fails the request that triggered it, so this counter is
// the only signal of a lost entry.
//
// Example PromQL queries:
//   - Alert expression:  increase(activity_record_failures_total[15m]) > 0
var ActivityRecordFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "activity_record_failures_total",
		Help: "Total number of activity entries that failed to persist.",
	},
)

// Background job metrics.
//
// TokenExpiryNotificationsSentTotal is incremented once per email delivered by the
// token expiry notifier. InvitationsPurgedTotal accumulates rows deleted by the
// invitation purge job.
//
// Example PromQL queries:
//   - Rate of notifications sent:  rate(token_expiry_notifications_sent_total[24h])
var (
	TokenExpiryNotificationsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "token_expiry_notifications_sent_total",
			Help: "Total number of API token expiry warning emails successfully sent.",
		},
	)

	InvitationsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invitations_purged_total",
			Help: "Total number of expired invitations deleted by the purge job.",
		},
	)
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <TNT_DATABASE_MAX_CONNECTIONS> * 100
//   - Alert on near-exhaustion: db_open_connections > 20  (for max_connections=25)
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in cmd/server:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	safego.Go(func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	})
}
