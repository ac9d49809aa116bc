package billing

import (
	"context"
	"net/url"
	"strings"
)

// Provider starts checkout and opens the customer portal for an organization.
type Provider interface {
	StartCheckout(ctx context.Context, orgID string, plan string) (string, error)
	OpenPortal(ctx context.Context, orgID string) (string, error)
}

// DefaultCheckoutPlan is used when checkout is requested without a plan.
const DefaultCheckoutPlan = "pro"

// PlaceholderProvider returns fragment URLs that signal billing is not configured.
// DefaultPlan overrides DefaultCheckoutPlan when set.
type PlaceholderProvider struct {
	DefaultPlan string
}

func (p PlaceholderProvider) StartCheckout(_ context.Context, _ string, plan string) (string, error) {
	plan = strings.TrimSpace(plan)
	if plan == "" {
		plan = p.DefaultPlan
	}
	if plan == "" {
		plan = DefaultCheckoutPlan
	}
	return "#checkout-not-configured-" + strings.ReplaceAll(url.QueryEscape(plan), "+", "%20"), nil
}

func (PlaceholderProvider) OpenPortal(_ context.Context, _ string) (string, error) {
	return "#billing-portal-not-configured", nil
}
