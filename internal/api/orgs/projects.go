// projects.go implements the organization project endpoints.
package orgs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/middleware"
)

// CreateProjectRequest is the body of POST /orgs/:orgId/projects
type CreateProjectRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// UpdateProjectRequest is the body of PATCH /orgs/:orgId/projects/:projectId.
// Omitted fields are left unchanged.
type UpdateProjectRequest struct {
	Name   *string `json:"name"`
	Status *string `json:"status"`
}

// ListProjectsHandler lists the organization's projects
// GET /orgs/:orgId/projects
func (h *Handlers) ListProjectsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := h.projects.List(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": projects})
	}
}

// @Summary      Create project
// @Description  Creates a project. Status defaults to active. The plan's project cap applies.
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Param        orgId  path  string                true  "Organization ID"
// @Param        body   body  CreateProjectRequest  true  "Project"
// @Success      201  {object}  map[string]interface{}  "project: models.Project"
// @Failure      400  {object}  map[string]interface{}  "Name is required"
// @Failure      403  {object}  map[string]interface{}  "Project limit reached for current plan"
// @Router       /orgs/{orgId}/projects [post]
// CreateProjectHandler creates a project
// POST /orgs/:orgId/projects
func (h *Handlers) CreateProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidBody(c)
			return
		}

		project, err := h.projects.Create(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"), req.Name, req.Status)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"project": project})
	}
}

// UpdateProjectHandler renames a project or changes its status
// PATCH /orgs/:orgId/projects/:projectId
func (h *Handlers) UpdateProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidBody(c)
			return
		}

		upd := models.ProjectUpdate{Name: req.Name, Status: req.Status}
		if err := h.projects.Update(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"), c.Param("projectId"), upd); err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
