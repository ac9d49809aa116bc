package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/db/repositories"
)

// ---------------------------------------------------------------------------
// Shared fixtures
// ---------------------------------------------------------------------------

var (
	memberCols     = []string{"id", "organization_id", "user_id", "role", "created_at"}
	invitationCols = []string{"id", "organization_id", "email", "role", "token", "invited_by", "expires_at", "accepted_at", "created_at"}
	userCols       = []string{"id", "email", "name", "username", "display_username", "two_factor_enabled", "onboarding_complete", "created_at", "updated_at"}
	tokenCols      = []string{"id", "user_id", "organization_id", "name", "token_hash", "created_at", "expires_at", "revoked_at", "last_used_at", "expiry_notification_sent_at"}
)

const membershipQuery = "FROM organization_members WHERE organization_id = \\$1 AND user_id = \\$2"

// baseTime is T in the invitation scenarios.
var baseTime = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		db.Close()
	})
	return sqlx.NewDb(db, "sqlmock"), mock
}

func countRow(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func planRow(plan string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"plan"}).AddRow(plan)
}

func memberRow(id, userID, role string) *sqlmock.Rows {
	return sqlmock.NewRows(memberCols).AddRow(id, "org-1", userID, role, baseTime)
}

// expectRole makes the caller's membership lookup return role, or no row
// when role is empty.
func expectRole(mock sqlmock.Sqlmock, userID, role string) {
	q := mock.ExpectQuery(membershipQuery).WithArgs("org-1", userID)
	if role == "" {
		q.WillReturnRows(sqlmock.NewRows(memberCols))
		return
	}
	q.WillReturnRows(memberRow("m-"+userID, userID, role))
}

func user(id string) auth.Principal {
	return auth.Principal{Authenticated: true, UserID: id, Method: auth.MethodSession}
}

func tokenPrincipal(id, orgID string) auth.Principal {
	return auth.Principal{Authenticated: true, UserID: id, TokenID: "tok-1", TokenOrgID: orgID, Method: auth.MethodToken}
}

// fakeRecorder captures entries synchronously.
type fakeRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (f *fakeRecorder) Record(_ context.Context, e audit.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeRecorder) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Type)
	}
	return out
}

// wantKind fails unless err is an *apperr.Error of kind with message msg
// (msg is ignored when empty).
func wantKind(t *testing.T, err error, kind apperr.Kind, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %s", kind)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v (%T), want *apperr.Error", err, err)
	}
	if ae.Kind != kind {
		t.Errorf("kind = %s, want %s", ae.Kind, kind)
	}
	if msg != "" && ae.Message != msg {
		t.Errorf("message = %q, want %q", ae.Message, msg)
	}
}

func newAuthority(db *sqlx.DB) (*Authority, *repositories.OrganizationRepository) {
	orgs := repositories.NewOrganizationRepository(db)
	return NewAuthority(orgs), orgs
}
