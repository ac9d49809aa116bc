package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/tenantry/tenantry/internal/middleware"
)

// readyTimeout bounds each dependency probe made by /health and /ready.
const readyTimeout = 2 * time.Second

// @Summary      Health check
// @Description  Liveness probe. Pings the database.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ok: true"
// @Failure      503  {object}  map[string]interface{}  "ok: false, error"
// @Router       /health [get]
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ok":    false,
				"error": "database connection failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// readinessHandler also probes Redis when the distributed rate limiter is in
// use, so a readiness gate fails when requests would fail open unthrottled.
func readinessHandler(db *sql.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		checks := gin.H{}

		if err := db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "redis not ready",
				})
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version"
// @Router       /version [get]
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version})
	}
}

// @Summary      Current identity
// @Description  Reports whether the request carries valid credentials. Never fails.
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "authenticated, userId"
// @Router       /auth/whoami [get]
func whoamiHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := middleware.GetPrincipal(c)
		var userID interface{}
		if p.Authenticated {
			userID = p.UserID
		}
		c.JSON(http.StatusOK, gin.H{
			"authenticated": p.Authenticated,
			"userId":        userID,
		})
	}
}

// LoggerMiddleware writes one structured record per request. The global slog
// handler decides between JSON and text output (see telemetry.SetupLogger).
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		requestID, _ := c.Get(middleware.RequestIDKey)
		reqID, _ := requestID.(string)
		p := middleware.GetPrincipal(c)

		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", status),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", reqID),
			slog.String("user_id", p.UserID),
			slog.String("auth_method", p.Method),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
