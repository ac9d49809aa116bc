// Package middleware provides Gin HTTP middleware for principal resolution,
// authorization gates, rate limiting, security headers, and access-denied auditing.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → Principal → RateLimit → RequireAuth → Handler
//
// Security headers run first so they appear on all responses including errors.
// The principal is resolved before rate limiting so authenticated callers are
// limited per user instead of per IP. Organization role checks live in the
// services layer, which needs the membership row anyway.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/telemetry"
)

// Context keys set by ResolvePrincipal.
const (
	PrincipalKey  = "principal"
	UserIDKey     = "user_id"
	TokenIDKey    = "token_id"
	AuthMethodKey = "auth_method"
)

// ResolvePrincipal identifies the caller on every request. It never rejects:
// anonymous requests continue with auth.Anonymous and RequireAuth decides.
func ResolvePrincipal(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := resolver.Resolve(c.Request.Context(), c.Request)

		c.Set(PrincipalKey, p)
		c.Set(AuthMethodKey, p.Method)
		if p.Authenticated {
			c.Set(UserIDKey, p.UserID)
		}
		if p.TokenID != "" {
			c.Set(TokenIDKey, p.TokenID)
		}
		telemetry.PrincipalResolutionsTotal.WithLabelValues(p.Method).Inc()

		c.Next()
	}
}

// GetPrincipal returns the principal stored by ResolvePrincipal, or
// auth.Anonymous when the middleware did not run.
func GetPrincipal(c *gin.Context) auth.Principal {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return auth.Anonymous
	}
	p, ok := v.(auth.Principal)
	if !ok {
		return auth.Anonymous
	}
	return p
}
