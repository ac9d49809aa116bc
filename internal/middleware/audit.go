// audit.go provides Gin middleware that ships rejected write attempts to the
// external audit destinations.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/audit"
)

// Publisher ships an audit entry without persisting an activity row.
type Publisher interface {
	Publish(ctx context.Context, entry *audit.LogEntry)
}

// AccessDeniedAudit publishes an access.denied entry for every write request
// answered with 401 or 403. Reads are not audited.
func AccessDeniedAudit(pub Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		status := c.Writer.Status()
		if status != http.StatusUnauthorized && status != http.StatusForbidden {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metadata := map[string]interface{}{
			"method": c.Request.Method,
			"path":   path,
			"status": status,
			"ip":     c.ClientIP(),
		}
		if requestID, ok := c.Get(RequestIDKey); ok {
			metadata["request_id"] = requestID
		}
		p := GetPrincipal(c)
		if p.Method != "" {
			metadata["auth_method"] = p.Method
		}

		entry := &audit.LogEntry{
			Type:        audit.TypeAccessDenied,
			UserID:      p.UserID,
			Description: "Rejected " + c.Request.Method + " " + path,
			Metadata:    metadata,
		}
		if orgID := c.Param("orgId"); orgID != "" {
			entry.OrganizationID = orgID
		}
		pub.Publish(c.Request.Context(), entry)
	}
}
