package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
)

var userOrgCols = []string{"id", "name", "slug", "role"}

func newOrganizationService(t *testing.T) (*OrganizationService, sqlmock.Sqlmock, *fakeRecorder) {
	t.Helper()
	db, mock := newMockDB(t)
	authority, orgs := newAuthority(db)
	rec := &fakeRecorder{}
	return NewOrganizationService(authority, orgs, rec), mock, rec
}

func TestPersonalSlug(t *testing.T) {
	tests := []struct{ in, want string }{
		{"0123456789abcdef", "personal-01234567"},
		{"short", "personal-short"},
		{"日本語のユーザー識別子", "personal-日本語のユーザー"},
	}
	for _, tt := range tests {
		got := PersonalSlug(tt.in)
		if got != tt.want {
			t.Errorf("PersonalSlug(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("PersonalSlug(%q) = %q is not valid UTF-8", tt.in, got)
		}
	}
}

func TestListForUser_Existing(t *testing.T) {
	svc, mock, rec := newOrganizationService(t)
	mock.ExpectQuery("FROM organization_members m").WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userOrgCols).AddRow("org-1", "Acme", "acme", "admin"))

	orgs, err := svc.ListForUser(context.Background(), user("user-1"))
	if err != nil {
		t.Fatalf("ListForUser() error: %v", err)
	}
	if len(orgs) != 1 || orgs[0].Role != "admin" {
		t.Errorf("orgs = %+v", orgs)
	}
	if len(rec.entries) != 0 {
		t.Errorf("no activity expected, got %v", rec.types())
	}
}

func TestListForUser_CreatesPersonalWorkspace(t *testing.T) {
	svc, mock, rec := newOrganizationService(t)
	mock.ExpectQuery("FROM organization_members m").WillReturnRows(sqlmock.NewRows(userOrgCols))
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs("abcdef0123456789").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM organization_members WHERE user_id").WillReturnRows(countRow(0))
	mock.ExpectExec("INSERT INTO organizations").
		WithArgs(sqlmock.AnyArg(), "Personal workspace", "personal-abcdef01", "free", "active", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO organization_members").WillReturnResult(sqlmock.NewResult(0, 1))
	for _, p := range []struct{ name, status string }{
		{"Onboarding flow", "active"}, {"Billing integration", "planned"}, {"Analytics dashboard", "paused"},
	} {
		mock.ExpectExec("INSERT INTO projects").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), p.name, p.status, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
	mock.ExpectQuery("FROM organization_members m").
		WillReturnRows(sqlmock.NewRows(userOrgCols).AddRow("org-new", "Personal workspace", "personal-abcdef01", "owner"))

	orgs, err := svc.ListForUser(context.Background(), user("abcdef0123456789"))
	if err != nil {
		t.Fatalf("ListForUser() error: %v", err)
	}
	if len(orgs) != 1 || orgs[0].Role != "owner" {
		t.Errorf("orgs = %+v", orgs)
	}
	if got := rec.types(); len(got) != 1 || got[0] != audit.TypeOrgCreated {
		t.Errorf("recorded = %v", got)
	}
}

func TestListForUser_SlugCollisionRetries(t *testing.T) {
	svc, mock, _ := newOrganizationService(t)
	mock.ExpectQuery("FROM organization_members m").WillReturnRows(sqlmock.NewRows(userOrgCols))

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM organization_members WHERE user_id").WillReturnRows(countRow(0))
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "organizations_slug_key"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM organization_members WHERE user_id").WillReturnRows(countRow(0))
	mock.ExpectExec("INSERT INTO organizations").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO organization_members").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO projects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO projects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO projects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM organization_members m").
		WillReturnRows(sqlmock.NewRows(userOrgCols).AddRow("org-new", "Personal workspace", "personal-u1-x1y2", "owner"))

	orgs, err := svc.ListForUser(context.Background(), user("u1"))
	if err != nil {
		t.Fatalf("ListForUser() error: %v", err)
	}
	if !strings.HasPrefix(orgs[0].Slug, "personal-u1") {
		t.Errorf("slug = %q", orgs[0].Slug)
	}
}

func TestListForUser_ConcurrentFirstRequest(t *testing.T) {
	svc, mock, rec := newOrganizationService(t)
	mock.ExpectQuery("FROM organization_members m").WillReturnRows(sqlmock.NewRows(userOrgCols))
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM organization_members WHERE user_id").WillReturnRows(countRow(1))
	mock.ExpectRollback()
	mock.ExpectQuery("FROM organization_members m").
		WillReturnRows(sqlmock.NewRows(userOrgCols).AddRow("org-1", "Personal workspace", "personal-u1", "owner"))

	if _, err := svc.ListForUser(context.Background(), user("u1")); err != nil {
		t.Fatalf("ListForUser() error: %v", err)
	}
	if len(rec.entries) != 0 {
		t.Errorf("the losing request must not record org.created, got %v", rec.types())
	}
}

func TestListForUser_Anonymous(t *testing.T) {
	svc, _, _ := newOrganizationService(t)
	_, err := svc.ListForUser(context.Background(), auth.Anonymous)
	wantKind(t, err, apperr.Unauthenticated, "")
}
