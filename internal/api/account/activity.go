// activity.go implements the activity feed and the public contact form.
package account

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/middleware"
	"github.com/tenantry/tenantry/internal/services"
)

// ListActivityHandler returns the caller's most recent activity
// GET /activity
func (h *Handlers) ListActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := h.activity.Recent(c.Request.Context(), middleware.GetPrincipal(c))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"activity": entries})
	}
}

// @Summary      Submit contact form
// @Description  Accepts a message from anyone. It is logged and shipped to the audit destinations.
// @Tags         Contact
// @Accept       json
// @Produce      json
// @Param        body  body  services.ContactRequest  true  "Message with optional email and context"
// @Success      201  {object}  map[string]interface{}  "ok: true"
// @Failure      400  {object}  map[string]interface{}  "Message is required"
// @Router       /contact [post]
// SubmitContactHandler accepts a contact form submission
// POST /contact
func (h *Handlers) SubmitContactHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.ContactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		if err := h.activity.SubmitContact(c.Request.Context(), middleware.GetPrincipal(c), req); err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	}
}
