// Package billing implements the billing summary, checkout and portal endpoints. Checkout
// and portal return placeholder URLs from the configured billing.Provider.
package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/middleware"
	"github.com/tenantry/tenantry/internal/services"
)

// Handlers serves the /billing routes
type Handlers struct {
	billing *services.BillingService
}

// NewHandlers creates the billing handler set
func NewHandlers(billing *services.BillingService) *Handlers {
	return &Handlers{billing: billing}
}

// CheckoutRequest is the optional body of POST /billing/:orgId/checkout
type CheckoutRequest struct {
	Plan string `json:"plan"`
}

// SummaryHandler returns the organization's plan and billing status
// GET /billing/:orgId/summary
func (h *Handlers) SummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.billing.Summary(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"billing": summary})
	}
}

// CheckoutHandler starts a plan checkout. Requires owner or admin.
// POST /billing/:orgId/checkout
func (h *Handlers) CheckoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}

		url, err := h.billing.Checkout(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"), req.Plan)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"checkoutUrl": url})
	}
}

// PortalHandler opens the billing portal. Requires owner or admin.
// POST /billing/:orgId/portal
func (h *Handlers) PortalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		url, err := h.billing.Portal(c.Request.Context(), middleware.GetPrincipal(c), c.Param("orgId"))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"portalUrl": url})
	}
}
