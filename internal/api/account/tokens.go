// tokens.go implements handlers for API token issuance, listing and revocation.
package account

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/middleware"
	"github.com/tenantry/tenantry/internal/services"
)

// ListTokensHandler lists the caller's tokens without their secrets
// GET /tokens
func (h *Handlers) ListTokensHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokens, err := h.tokens.List(c.Request.Context(), middleware.GetPrincipal(c))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tokens": tokens})
	}
}

// @Summary      Issue API token
// @Description  Creates a token for the caller. The raw token appears only in this response.
// @Tags         Tokens
// @Accept       json
// @Produce      json
// @Param        body  body  services.IssueRequest  false  "Name, optional orgId scope, optional expiresInDays"
// @Success      201  {object}  services.IssuedToken
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Router       /tokens [post]
// IssueTokenHandler issues a new API token
// POST /tokens
func (h *Handlers) IssueTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.IssueRequest
		// an empty or unreadable body issues a default-named, unscoped token
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				req = services.IssueRequest{}
			}
		}

		issued, err := h.tokens.Issue(c.Request.Context(), middleware.GetPrincipal(c), req)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, issued)
	}
}

// RevokeTokenHandler revokes one of the caller's tokens. Repeating it is harmless.
// DELETE /tokens/:tokenId
func (h *Handlers) RevokeTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.tokens.Revoke(c.Request.Context(), middleware.GetPrincipal(c), c.Param("tokenId")); err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
