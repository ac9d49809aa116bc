package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/db/repositories"
	"github.com/tenantry/tenantry/internal/telemetry"
)

var errMemberNotFound = apperr.New(apperr.NotFound, "Member not found")

// MemberService lists and edits organization memberships. An organization
// always keeps at least one owner.
type MemberService struct {
	authority *Authority
	orgs      *repositories.OrganizationRepository
	recorder  ActivityRecorder
}

// NewMemberService creates the service.
func NewMemberService(authority *Authority, orgs *repositories.OrganizationRepository, recorder ActivityRecorder) *MemberService {
	return &MemberService{authority: authority, orgs: orgs, recorder: recorder}
}

// List returns orgID's members with name and email, oldest first.
func (s *MemberService) List(ctx context.Context, p auth.Principal, orgID string) ([]*models.MemberWithUser, error) {
	if _, err := s.authority.Require(ctx, p, orgID, AccessManager); err != nil {
		return nil, err
	}
	return s.orgs.ListMembers(ctx, orgID)
}

// ChangeRole sets memberID's role. Owner only.
func (s *MemberService) ChangeRole(ctx context.Context, p auth.Principal, orgID, memberID, role string) (*models.Membership, error) {
	if _, err := s.authority.Require(ctx, p, orgID, AccessOwner); err != nil {
		return nil, err
	}
	if strings.TrimSpace(role) == "" {
		return nil, apperr.New(apperr.InvalidInput, "Role is required")
	}
	r := auth.ParseRole(role)

	prev, err := s.orgs.ChangeMemberRole(ctx, orgID, memberID, r.String())
	if err != nil {
		return nil, mapMembershipError(err, "Cannot change role of the last owner")
	}

	telemetry.MembershipsChangedTotal.WithLabelValues("role_changed").Inc()
	s.recorder.Record(ctx, audit.Entry{
		UserID:      p.UserID,
		OrgID:       orgID,
		Type:        audit.TypeMemberRoleChanged,
		Description: fmt.Sprintf("Changed role for member %s to %s", prev.UserID, r),
	})

	updated := *prev
	updated.Role = r.String()
	return &updated, nil
}

// Remove deletes memberID. Managers may remove members and admins; removing an
// owner requires the caller to be an owner.
func (s *MemberService) Remove(ctx context.Context, p auth.Principal, orgID, memberID string) error {
	caller, err := s.authority.Require(ctx, p, orgID, AccessManager)
	if err != nil {
		return err
	}
	callerIsOwner := auth.ParseRole(caller.Role).IsOwner()

	removed, err := s.orgs.RemoveMember(ctx, orgID, memberID, func(target *models.Membership) error {
		if auth.ParseRole(target.Role).IsOwner() && !callerIsOwner {
			return apperr.New(apperr.Forbidden, "Only an owner can remove another owner")
		}
		return nil
	})
	if err != nil {
		return mapMembershipError(err, "Cannot remove the last owner")
	}

	telemetry.MembershipsChangedTotal.WithLabelValues("removed").Inc()
	s.recorder.Record(ctx, audit.Entry{
		UserID:      p.UserID,
		OrgID:       orgID,
		Type:        audit.TypeMemberRemoved,
		Description: fmt.Sprintf("Removed member %s", removed.UserID),
	})
	return nil
}

func mapMembershipError(err error, lastOwnerMessage string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return errMemberNotFound
	case errors.Is(err, repositories.ErrOrganizationNotFound):
		return apperr.New(apperr.NotFound, "Organization not found")
	case errors.Is(err, repositories.ErrLastOwner):
		return apperr.New(apperr.InvariantViolation, lastOwnerMessage)
	default:
		return err
	}
}
