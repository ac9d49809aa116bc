package services

import (
	"context"
	"testing"

	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/auth"
)

func TestRequire(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		access  Access
		wantErr bool
	}{
		{"member reads", "member", AccessMember, false},
		{"member cannot manage", "member", AccessManager, true},
		{"admin manages", "admin", AccessManager, false},
		{"admin is not owner", "admin", AccessOwner, true},
		{"owner manages", "owner", AccessManager, false},
		{"owner is owner", "owner", AccessOwner, false},
		{"mixed case stored role", "Admin", AccessManager, false},
		{"non-member", "", AccessMember, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			authority, _ := newAuthority(db)
			expectRole(mock, "u1", tt.role)

			m, err := authority.Require(context.Background(), user("u1"), "org-1", tt.access)
			if tt.wantErr {
				wantKind(t, err, apperr.Forbidden, "Forbidden")
				return
			}
			if err != nil {
				t.Fatalf("Require() error: %v", err)
			}
			if m.UserID != "u1" {
				t.Errorf("membership user = %q, want u1", m.UserID)
			}
		})
	}
}

func TestRequire_Anonymous(t *testing.T) {
	db, _ := newMockDB(t)
	authority, _ := newAuthority(db)

	_, err := authority.Require(context.Background(), auth.Anonymous, "org-1", AccessMember)
	wantKind(t, err, apperr.Unauthenticated, "")
}

func TestRequire_TokenScopedToOtherOrg(t *testing.T) {
	db, _ := newMockDB(t)
	authority, _ := newAuthority(db)

	// No membership query: the scope check comes first.
	_, err := authority.Require(context.Background(), tokenPrincipal("u1", "org-2"), "org-1", AccessMember)
	wantKind(t, err, apperr.Forbidden, "")
}

func TestRequire_TokenScopedToSameOrg(t *testing.T) {
	db, mock := newMockDB(t)
	authority, _ := newAuthority(db)
	expectRole(mock, "u1", "owner")

	if _, err := authority.Require(context.Background(), tokenPrincipal("u1", "org-1"), "org-1", AccessOwner); err != nil {
		t.Fatalf("Require() error: %v", err)
	}
}

func TestRequire_StoreError(t *testing.T) {
	db, mock := newMockDB(t)
	authority, _ := newAuthority(db)
	mock.ExpectQuery(membershipQuery).WillReturnError(context.DeadlineExceeded)

	_, err := authority.Require(context.Background(), user("u1"), "org-1", AccessMember)
	if apperr.KindOf(err) != apperr.Internal {
		t.Errorf("KindOf = %s, want internal", apperr.KindOf(err))
	}
}

func TestAccessString(t *testing.T) {
	if AccessOwner.String() != "owner" || AccessManager.String() != "manager" || AccessMember.String() != "member" {
		t.Error("unexpected Access string values")
	}
}
