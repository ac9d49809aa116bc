// Package account implements the caller-scoped endpoints: profile, API tokens,
// the activity feed and the public contact form.
package account

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/middleware"
	"github.com/tenantry/tenantry/internal/services"
)

// Handlers serves the /user, /tokens, /activity and /contact routes
type Handlers struct {
	profile  *services.ProfileService
	tokens   *services.TokenService
	activity *services.ActivityService
}

// NewHandlers creates the account handler set
func NewHandlers(profile *services.ProfileService, tokens *services.TokenService, activity *services.ActivityService) *Handlers {
	return &Handlers{profile: profile, tokens: tokens, activity: activity}
}

// UpdateProfileRequest is the body of PATCH /user/profile. Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	Name            *string `json:"name"`
	Username        *string `json:"username"`
	DisplayUsername *string `json:"displayUsername"`
}

// GetProfileHandler returns the caller's profile
// GET /user/profile
func (h *Handlers) GetProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.profile.Get(c.Request.Context(), middleware.GetPrincipal(c))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// @Summary      Update profile
// @Description  Updates name, username or display username. Usernames are unique.
// @Tags         Account
// @Accept       json
// @Produce      json
// @Param        body  body  UpdateProfileRequest  true  "Fields to change"
// @Success      200  {object}  map[string]interface{}  "user: models.User"
// @Failure      400  {object}  map[string]interface{}  "Nothing to update"
// @Failure      409  {object}  map[string]interface{}  "Username is already taken"
// @Router       /user/profile [patch]
// UpdateProfileHandler updates the caller's profile
// PATCH /user/profile
func (h *Handlers) UpdateProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		upd := models.ProfileUpdate{
			Name:            req.Name,
			Username:        req.Username,
			DisplayUsername: req.DisplayUsername,
		}
		user, err := h.profile.Update(c.Request.Context(), middleware.GetPrincipal(c), upd)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
