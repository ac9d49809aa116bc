// security.go provides Gin middleware for protective response headers and CORS.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/config"
)

// SecurityHeadersConfig holds configuration for security headers
type SecurityHeadersConfig struct {
	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds; 0 omits the header
	HSTSMaxAge int
	// FrameOptions is the X-Frame-Options value (DENY, SAMEORIGIN); empty omits it
	FrameOptions string
	// ContentSecurityPolicy is the CSP header value
	ContentSecurityPolicy string
	// ReferrerPolicy is the Referrer-Policy header value
	ReferrerPolicy string
}

// APISecurityHeadersConfig returns headers suitable for a JSON API. HSTS is only
// sent when the server terminates TLS itself.
func APISecurityHeadersConfig(tlsEnabled bool) SecurityHeadersConfig {
	cfg := SecurityHeadersConfig{
		FrameOptions:          "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}
	if tlsEnabled {
		cfg.HSTSMaxAge = 31536000 // 1 year
	}
	return cfg
}

// SecurityHeadersMiddleware adds security headers to all responses
func SecurityHeadersMiddleware(cfg SecurityHeadersConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.HSTSMaxAge > 0 {
			c.Header("Strict-Transport-Security", "max-age="+strconv.Itoa(cfg.HSTSMaxAge)+"; includeSubDomains")
		}
		if cfg.FrameOptions != "" {
			c.Header("X-Frame-Options", cfg.FrameOptions)
		}
		if cfg.ContentSecurityPolicy != "" {
			c.Header("Content-Security-Policy", cfg.ContentSecurityPolicy)
		}
		if cfg.ReferrerPolicy != "" {
			c.Header("Referrer-Policy", cfg.ReferrerPolicy)
		}
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Cross-Origin-Resource-Policy", "same-origin")
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}

var defaultCORSMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}

const corsAllowedHeaders = "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-Id"

// CORSMiddleware answers cross-origin requests from the configured origins. The
// browser session travels in cookies, so credentials are allowed and the origin
// is always echoed back rather than answered with a literal "*".
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	allowMethods := strings.Join(methods, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if origin != "" && originAllowed(cfg.AllowedOrigins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", corsAllowedHeaders)
			c.Header("Access-Control-Max-Age", "3600")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
