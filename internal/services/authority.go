// Package services implements the business rules of the service on top of the
// repositories: who may do what in an organization, the invitation lifecycle,
// member management, API tokens, projects, profiles and billing. Handlers call
// services with the request principal; services return *apperr.Error values
// for every client-visible failure.
package services

import (
	"context"
	"fmt"

	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/db/repositories"
)

// Access is the minimum membership level an operation requires.
type Access int

const (
	// AccessMember allows any member of the organization.
	AccessMember Access = iota
	// AccessManager allows owners and admins.
	AccessManager
	// AccessOwner allows owners only.
	AccessOwner
)

func (a Access) String() string {
	switch a {
	case AccessManager:
		return "manager"
	case AccessOwner:
		return "owner"
	default:
		return "member"
	}
}

// allows reports whether role satisfies a.
func (a Access) allows(role auth.Role) bool {
	switch a {
	case AccessOwner:
		return role.IsOwner()
	case AccessManager:
		return role.CanManage()
	default:
		return true
	}
}

// ActivityRecorder schedules an activity entry for writing.
type ActivityRecorder interface {
	Record(ctx context.Context, e audit.Entry)
}

// Authority is the single place membership roles are turned into permissions.
type Authority struct {
	orgs *repositories.OrganizationRepository
}

// NewAuthority creates an authority backed by the organization repository.
func NewAuthority(orgs *repositories.OrganizationRepository) *Authority {
	return &Authority{orgs: orgs}
}

// Membership returns userID's membership in orgID, or nil.
func (a *Authority) Membership(ctx context.Context, userID, orgID string) (*models.Membership, error) {
	m, err := a.orgs.GetMembership(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	return m, nil
}

// Require checks that p may act on orgID with the given access and returns the
// caller's membership. Tokens scoped to a different organization are refused
// even when the token owner is a member.
func (a *Authority) Require(ctx context.Context, p auth.Principal, orgID string, access Access) (*models.Membership, error) {
	if !p.Authenticated {
		return nil, apperr.ErrUnauthorized
	}
	if p.TokenOrgID != "" && p.TokenOrgID != orgID {
		return nil, apperr.ErrForbidden
	}

	m, err := a.Membership(ctx, p.UserID, orgID)
	if err != nil {
		return nil, err
	}
	if m == nil || !access.allows(auth.ParseRole(m.Role)) {
		return nil, apperr.ErrForbidden
	}
	return m, nil
}

// requireUser checks that p is authenticated.
func requireUser(p auth.Principal) error {
	if !p.Authenticated || p.UserID == "" {
		return apperr.ErrUnauthorized
	}
	return nil
}
