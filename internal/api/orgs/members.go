// members.go implements handlers for listing members, changing roles and removing members.
package orgs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/middleware"
)

// ChangeRoleRequest is the body of PATCH /orgs/:orgId/members/:memberId
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// ListMembersHandler lists members with their user details. Requires owner or admin.
// GET /orgs/:orgId/members
func (h *Handlers) ListMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := h.members.List(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"members": members})
	}
}

// @Summary      Change member role
// @Description  Sets a member's role. Owner only. The last owner cannot be demoted.
// @Tags         Members
// @Accept       json
// @Produce      json
// @Param        orgId     path  string             true  "Organization ID"
// @Param        memberId  path  string             true  "Membership ID"
// @Param        body      body  ChangeRoleRequest  true  "New role"
// @Success      200  {object}  map[string]interface{}  "member: models.Membership"
// @Failure      400  {object}  map[string]interface{}  "Role is required / Cannot change role of the last owner"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Member not found"
// @Router       /orgs/{orgId}/members/{memberId} [patch]
// ChangeRoleHandler changes a member's role
// PATCH /orgs/:orgId/members/:memberId
func (h *Handlers) ChangeRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangeRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidBody(c)
			return
		}

		member, err := h.members.ChangeRole(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"), c.Param("memberId"), req.Role)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"member": member})
	}
}

// RemoveMemberHandler removes a member. Admins cannot remove owners.
// DELETE /orgs/:orgId/members/:memberId
func (h *Handlers) RemoveMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.members.Remove(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"), c.Param("memberId"))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
