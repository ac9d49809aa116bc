package services

import (
	"context"

	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/billing"
)

// BillingSummary is an organization's normalized plan and status.
type BillingSummary struct {
	Plan   billing.Plan   `json:"plan"`
	Status billing.Status `json:"status"`
}

// BillingService exposes plan state and the billing provider links.
type BillingService struct {
	orgs     *OrganizationService
	provider billing.Provider
}

// NewBillingService creates the service.
func NewBillingService(orgs *OrganizationService, provider billing.Provider) *BillingService {
	return &BillingService{orgs: orgs, provider: provider}
}

// Summary returns orgID's plan and billing status. Any member may read it.
func (s *BillingService) Summary(ctx context.Context, p auth.Principal, orgID string) (*BillingSummary, error) {
	org, err := s.orgs.Get(ctx, p, orgID)
	if err != nil {
		return nil, err
	}
	return &BillingSummary{
		Plan:   billing.NormalizePlan(org.Plan),
		Status: billing.NormalizeStatus(org.BillingStatus),
	}, nil
}

// Checkout starts a plan change. Managers only.
func (s *BillingService) Checkout(ctx context.Context, p auth.Principal, orgID, plan string) (string, error) {
	if _, err := s.orgs.authority.Require(ctx, p, orgID, AccessManager); err != nil {
		return "", err
	}
	return s.provider.StartCheckout(ctx, orgID, plan)
}

// Portal opens the billing portal. Managers only.
func (s *BillingService) Portal(ctx context.Context, p auth.Principal, orgID string) (string, error) {
	if _, err := s.orgs.authority.Require(ctx, p, orgID, AccessManager); err != nil {
		return "", err
	}
	return s.provider.OpenPortal(ctx, orgID)
}
