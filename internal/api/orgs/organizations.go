// organizations.go implements the organization listing endpoint and the handler set shared
// by the invitation, member and project endpoints.
package orgs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/middleware"
	"github.com/tenantry/tenantry/internal/services"
)

// Handlers serves the /orgs routes. Authorization is decided by the services
// from the principal resolved by middleware.ResolvePrincipal.
type Handlers struct {
	orgs        *services.OrganizationService
	invitations *services.InvitationService
	members     *services.MemberService
	projects    *services.ProjectService
}

// NewHandlers creates the /orgs handler set
func NewHandlers(
	orgs *services.OrganizationService,
	invitations *services.InvitationService,
	members *services.MemberService,
	projects *services.ProjectService,
) *Handlers {
	return &Handlers{
		orgs:        orgs,
		invitations: invitations,
		members:     members,
		projects:    projects,
	}
}

// @Summary      List organizations
// @Description  Lists the caller's memberships. The first call by a user with none creates their personal workspace.
// @Tags         Organizations
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "organizations: []models.UserOrganization"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /orgs [get]
// ListOrganizationsHandler lists the caller's organizations
// GET /orgs
func (h *Handlers) ListOrganizationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgs, err := h.orgs.ListForUser(c.Request.Context(), middleware.GetPrincipal(c))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"organizations": orgs})
	}
}

// GetOrganizationHandler returns one organization the caller belongs to
// GET /orgs/:orgId
func (h *Handlers) GetOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, err := h.orgs.Get(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"organization": org})
	}
}

// invalidBody answers a request whose JSON body could not be decoded.
func invalidBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}
