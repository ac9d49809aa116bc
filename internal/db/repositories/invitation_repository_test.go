package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/tenantry/tenantry/internal/db/models"
)

var invitationCols = []string{"id", "organization_id", "email", "role", "token", "invited_by", "expires_at", "accepted_at", "created_at"}

func invitationRow(expiresAt time.Time, acceptedAt *time.Time) *sqlmock.Rows {
	var accepted interface{}
	if acceptedAt != nil {
		accepted = *acceptedAt
	}
	return sqlmock.NewRows(invitationCols).
		AddRow("inv-1", "org-1", "new@example.com", "member", "tok-1", "user-owner", expiresAt, accepted, expiresAt.Add(-7*24*time.Hour))
}

func existsRow(b bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(b)
}

func newInvitationRepo(t *testing.T) (*InvitationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewInvitationRepository(db), mock
}

// ---------------------------------------------------------------------------
// Create / List / Get
// ---------------------------------------------------------------------------

func TestInvitationCreate(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	now := time.Now()
	inv := &models.Invitation{ID: "inv-1", OrganizationID: "org-1", Email: "a@example.com", Role: "admin", Token: "tok", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	mock.ExpectExec("INSERT INTO organization_invitations").
		WithArgs("inv-1", "org-1", "a@example.com", "admin", "tok", nil, inv.ExpiresAt, inv.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), inv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvitationListByOrganization(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectQuery("SELECT.*FROM organization_invitations WHERE organization_id.*ORDER BY created_at DESC").
		WithArgs("org-1").
		WillReturnRows(invitationRow(time.Now().Add(time.Hour), nil))

	invs, err := repo.ListByOrganization(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(invs) != 1 || invs[0].AcceptedAt != nil {
		t.Errorf("invitations = %+v", invs)
	}
}

func TestInvitationGetByToken_NotFound(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectQuery("SELECT.*FROM organization_invitations WHERE token").
		WillReturnRows(sqlmock.NewRows(invitationCols))

	inv, err := repo.GetByToken(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv != nil {
		t.Error("expected nil, got non-nil")
	}
}

// ---------------------------------------------------------------------------
// DeleteOpen
// ---------------------------------------------------------------------------

func TestDeleteOpen_Deleted(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectExec("DELETE FROM organization_invitations WHERE id").
		WithArgs("inv-1", "org-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.DeleteOpen(context.Background(), "org-1", "inv-1", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteOpen_Closed(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectExec("DELETE FROM organization_invitations WHERE id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteOpen(context.Background(), "org-1", "inv-1", time.Now())
	if !errors.Is(err, ErrInvitationClosed) {
		t.Errorf("err = %v, want ErrInvitationClosed", err)
	}
}

// ---------------------------------------------------------------------------
// Accept
// ---------------------------------------------------------------------------

func TestAccept_NotFound(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM organization_invitations WHERE token = \\$1 FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(invitationCols))
	mock.ExpectRollback()

	_, err := repo.Accept(context.Background(), "missing", "user-2", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAccept_Expired(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	created := time.Now().Add(-8 * 24 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM organization_invitations WHERE token").
		WillReturnRows(invitationRow(created.Add(7*24*time.Hour), nil))
	mock.ExpectRollback()

	_, err := repo.Accept(context.Background(), "tok-1", "user-2", time.Now())
	if !errors.Is(err, ErrInvitationClosed) {
		t.Errorf("err = %v, want ErrInvitationClosed", err)
	}
}

func TestAccept_AlreadyAccepted(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	accepted := time.Now().Add(-time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM organization_invitations WHERE token").
		WillReturnRows(invitationRow(time.Now().Add(24*time.Hour), &accepted))
	mock.ExpectRollback()

	_, err := repo.Accept(context.Background(), "tok-1", "user-2", time.Now())
	if !errors.Is(err, ErrInvitationClosed) {
		t.Errorf("err = %v, want ErrInvitationClosed", err)
	}
}

func TestAccept_MemberLimitReached(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM organization_invitations WHERE token").
		WillReturnRows(invitationRow(time.Now().Add(24*time.Hour), nil))
	mock.ExpectQuery("SELECT plan FROM organizations WHERE id = \\$1 FOR UPDATE").WithArgs("org-1").WillReturnRows(planRow("free"))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("org-1", "user-4").WillReturnRows(existsRow(false))
	mock.ExpectQuery("FROM organization_members WHERE user_id").WithArgs("user-4").WillReturnRows(countRow(0))
	mock.ExpectQuery("FROM organization_members WHERE organization_id").WithArgs("org-1").WillReturnRows(countRow(3))
	mock.ExpectRollback()

	_, err := repo.Accept(context.Background(), "tok-1", "user-4", time.Now())
	if !errors.Is(err, ErrMemberLimitReached) {
		t.Errorf("err = %v, want ErrMemberLimitReached", err)
	}
}

func TestAccept_FirstMembershipJoins(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM organization_invitations WHERE token").
		WillReturnRows(invitationRow(time.Now().Add(24*time.Hour), nil))
	mock.ExpectQuery("SELECT plan FROM organizations").WillReturnRows(planRow("free"))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(existsRow(false))
	mock.ExpectQuery("FROM organization_members WHERE user_id").WillReturnRows(countRow(0))
	mock.ExpectQuery("FROM organization_members WHERE organization_id").WillReturnRows(countRow(2))
	mock.ExpectExec("INSERT INTO organization_members").
		WithArgs(sqlmock.AnyArg(), "org-1", "user-3", "member", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET onboarding_complete = TRUE").
		WithArgs(sqlmock.AnyArg(), "user-3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE organization_invitations SET accepted_at").
		WithArgs(sqlmock.AnyArg(), "inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.Accept(context.Background(), "tok-1", "user-3", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Joined || !res.FirstMembership {
		t.Errorf("result = %+v, want joined first membership", res)
	}
	if res.Invitation.AcceptedAt == nil {
		t.Error("AcceptedAt not stamped on result")
	}
}

func TestAccept_SecondMembershipLeavesOnboardingAlone(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM organization_invitations WHERE token").
		WillReturnRows(invitationRow(time.Now().Add(24*time.Hour), nil))
	mock.ExpectQuery("SELECT plan FROM organizations").WillReturnRows(planRow("pro"))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(existsRow(false))
	mock.ExpectQuery("FROM organization_members WHERE user_id").WillReturnRows(countRow(1))
	mock.ExpectQuery("FROM organization_members WHERE organization_id").WillReturnRows(countRow(5))
	mock.ExpectExec("INSERT INTO organization_members").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE organization_invitations SET accepted_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.Accept(context.Background(), "tok-1", "user-5", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Joined || res.FirstMembership {
		t.Errorf("result = %+v, want joined, not first membership", res)
	}
}

func TestAccept_EnterpriseSkipsMemberCount(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM organization_invitations WHERE token").
		WillReturnRows(invitationRow(time.Now().Add(24*time.Hour), nil))
	mock.ExpectQuery("SELECT plan FROM organizations").WillReturnRows(planRow("enterprise"))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(existsRow(false))
	mock.ExpectQuery("FROM organization_members WHERE user_id").WillReturnRows(countRow(2))
	mock.ExpectExec("INSERT INTO organization_members").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE organization_invitations SET accepted_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := repo.Accept(context.Background(), "tok-1", "user-6", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAccept_ExistingMemberOnlyStamps(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM organization_invitations WHERE token").
		WillReturnRows(invitationRow(time.Now().Add(24*time.Hour), nil))
	mock.ExpectQuery("SELECT plan FROM organizations").WillReturnRows(planRow("free"))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(existsRow(true))
	mock.ExpectExec("UPDATE organization_invitations SET accepted_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.Accept(context.Background(), "tok-1", "user-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Joined {
		t.Error("Joined = true for existing member")
	}
}

// ---------------------------------------------------------------------------
// PurgeExpired
// ---------------------------------------------------------------------------

func TestPurgeExpired(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectExec("DELETE FROM organization_invitations WHERE accepted_at IS NULL AND expires_at").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.PurgeExpired(context.Background(), time.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Errorf("purged = %d, want 4", n)
	}
}
