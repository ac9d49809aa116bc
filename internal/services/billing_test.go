package services

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/billing"
)

var orgCols = []string{"id", "name", "slug", "plan", "billing_status", "created_at", "updated_at"}

func newBillingService(t *testing.T) (*BillingService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	authority, orgs := newAuthority(db)
	orgSvc := NewOrganizationService(authority, orgs, &fakeRecorder{})
	return NewBillingService(orgSvc, billing.PlaceholderProvider{}), mock
}

func TestBillingSummary_NormalizesStoredValues(t *testing.T) {
	svc, mock := newBillingService(t)
	expectRole(mock, "u1", "member")
	mock.ExpectQuery("FROM organizations WHERE id").WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(orgCols).AddRow("org-1", "Acme", "acme", " PRO ", "mystery", baseTime, baseTime))

	summary, err := svc.Summary(context.Background(), user("u1"), "org-1")
	require.NoError(t, err)
	assert.Equal(t, billing.PlanPro, summary.Plan)
	assert.Equal(t, billing.StatusActive, summary.Status)
}

func TestBillingCheckout(t *testing.T) {
	svc, mock := newBillingService(t)
	expectRole(mock, "u1", "admin")

	u, err := svc.Checkout(context.Background(), user("u1"), "org-1", "")
	require.NoError(t, err)
	assert.Equal(t, "#checkout-not-configured-pro", u)
}

func TestBillingCheckout_MemberForbidden(t *testing.T) {
	svc, mock := newBillingService(t)
	expectRole(mock, "u1", "member")

	_, err := svc.Checkout(context.Background(), user("u1"), "org-1", "enterprise")
	wantKind(t, err, apperr.Forbidden, "")
}

func TestBillingPortal(t *testing.T) {
	svc, mock := newBillingService(t)
	expectRole(mock, "u1", "owner")

	u, err := svc.Portal(context.Background(), user("u1"), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "#billing-portal-not-configured", u)
}
