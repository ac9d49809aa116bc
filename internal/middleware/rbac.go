// rbac.go holds the authentication gate and the shared error responder.
// Organization roles are not checked here: each service operation resolves the
// caller's membership inside the same request and decides with the role it
// finds, so a role change takes effect on the very next call.
package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/apperr"
)

// RequireAuth rejects anonymous callers with 401 {"error":"Unauthorized"}.
// ResolvePrincipal must run first.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetPrincipal(c).Authenticated {
			AbortWithError(c, apperr.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// AbortWithError writes err as {"error": message} with the status of its kind.
// Internal errors are logged and answered with a generic message.
func AbortWithError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		requestID, _ := c.Get(RequestIDKey)
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", requestID,
			"error", err,
		)
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{
		"error": apperr.MessageOf(err),
	})
}
