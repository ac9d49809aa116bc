// invitations.go implements handlers for creating, listing, revoking and accepting invitations.
package orgs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/middleware"
)

// CreateInvitationRequest is the body of POST /orgs/:orgId/invitations
type CreateInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AcceptInvitationRequest is the body of POST /orgs/invitations/accept
type AcceptInvitationRequest struct {
	Token string `json:"token"`
}

// @Summary      List invitations
// @Description  Lists the organization's invitations newest first with derived status. Requires owner or admin.
// @Tags         Invitations
// @Produce      json
// @Param        orgId  path  string  true  "Organization ID"
// @Success      200  {object}  map[string]interface{}  "invitations: []services.InvitationView"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Router       /orgs/{orgId}/invitations [get]
// ListInvitationsHandler lists an organization's invitations
// GET /orgs/:orgId/invitations
func (h *Handlers) ListInvitationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invitations, err := h.invitations.List(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"invitations": invitations})
	}
}

// @Summary      Create invitation
// @Description  Invites an email address. Answers 200 {alreadyMember:true} when that user already belongs to the organization.
// @Tags         Invitations
// @Accept       json
// @Produce      json
// @Param        orgId  path  string                   true  "Organization ID"
// @Param        body   body  CreateInvitationRequest  true  "Invitee"
// @Success      201  {object}  map[string]interface{}  "invitation: models.Invitation"
// @Success      200  {object}  map[string]interface{}  "alreadyMember: true"
// @Failure      400  {object}  map[string]interface{}  "Email is required / Cannot invite as owner"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Router       /orgs/{orgId}/invitations [post]
// CreateInvitationHandler creates an invitation
// POST /orgs/:orgId/invitations
func (h *Handlers) CreateInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateInvitationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidBody(c)
			return
		}

		result, err := h.invitations.Create(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"), req.Email, req.Role)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		if result.AlreadyMember {
			c.JSON(http.StatusOK, gin.H{"alreadyMember": true})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"invitation": result.Invitation})
	}
}

// RevokeInvitationHandler deletes an open invitation
// DELETE /orgs/:orgId/invitations/:invitationId
func (h *Handlers) RevokeInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.invitations.Revoke(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"), c.Param("invitationId"))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// @Summary      Accept invitation
// @Description  Joins the organization named by the invitation token. Accepting as an existing member succeeds without a second membership.
// @Tags         Invitations
// @Accept       json
// @Produce      json
// @Param        body  body  AcceptInvitationRequest  true  "Invitation token"
// @Success      200  {object}  map[string]interface{}  "ok, orgId, joined"
// @Failure      400  {object}  map[string]interface{}  "Invitation expired / Invitation already accepted"
// @Failure      403  {object}  map[string]interface{}  "Member limit reached for current plan"
// @Failure      404  {object}  map[string]interface{}  "Invitation not found"
// @Router       /orgs/invitations/accept [post]
// AcceptInvitationHandler accepts an invitation for the caller
// POST /orgs/invitations/accept
func (h *Handlers) AcceptInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AcceptInvitationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidBody(c)
			return
		}

		result, err := h.invitations.Accept(c.Request.Context(), middleware.GetPrincipal(c), req.Token)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":     true,
			"orgId":  result.Invitation.OrganizationID,
			"joined": result.Joined,
		})
	}
}
