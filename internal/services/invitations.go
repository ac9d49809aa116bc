package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/db/repositories"
	"github.com/tenantry/tenantry/internal/notify"
	"github.com/tenantry/tenantry/internal/safego"
	"github.com/tenantry/tenantry/internal/telemetry"
)

// DefaultInvitationTTL is the invitation lifetime when none is configured.
const DefaultInvitationTTL = 7 * 24 * time.Hour

var errInvitationClosed = apperr.New(apperr.Conflict, "Invitation is no longer valid")

// InvitationService runs the invitation lifecycle:
// pending -> accepted | expired (derived) | revoked (row deleted).
type InvitationService struct {
	authority   *Authority
	orgs        *repositories.OrganizationRepository
	invitations *repositories.InvitationRepository
	users       *repositories.UserRepository
	recorder    ActivityRecorder
	mailer      notify.Mailer
	ttl         time.Duration
	publicURL   string
	now         func() time.Time
}

// NewInvitationService creates the service. A ttl <= 0 uses DefaultInvitationTTL.
func NewInvitationService(
	authority *Authority,
	orgs *repositories.OrganizationRepository,
	invitations *repositories.InvitationRepository,
	users *repositories.UserRepository,
	recorder ActivityRecorder,
	ttl time.Duration,
) *InvitationService {
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	return &InvitationService{
		authority:   authority,
		orgs:        orgs,
		invitations: invitations,
		users:       users,
		recorder:    recorder,
		ttl:         ttl,
		now:         time.Now,
	}
}

// WithMailer enables invitation emails linking to publicURL.
func (s *InvitationService) WithMailer(m notify.Mailer, publicURL string) *InvitationService {
	s.mailer = m
	s.publicURL = strings.TrimRight(publicURL, "/")
	return s
}

// CreateResult is the outcome of Create. Exactly one field is set.
type CreateResult struct {
	Invitation    *models.Invitation `json:"invitation,omitempty"`
	AlreadyMember bool               `json:"alreadyMember,omitempty"`
}

// InvitationView is an invitation with its derived status.
type InvitationView struct {
	*models.Invitation
	Status models.InvitationStatus `json:"status"`
}

// Create invites email to orgID with role. When a user with that email is
// already a member no invitation is created.
func (s *InvitationService) Create(ctx context.Context, p auth.Principal, orgID, email, role string) (*CreateResult, error) {
	if _, err := s.authority.Require(ctx, p, orgID, AccessManager); err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.New(apperr.InvalidInput, "Email is required")
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		m, err := s.authority.Membership(ctx, existing.ID, orgID)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return &CreateResult{AlreadyMember: true}, nil
		}
	}

	r := auth.ParseRole(role)
	if r.IsOwner() {
		return nil, apperr.New(apperr.InvalidInput, "Owner role cannot be granted via invitation")
	}

	now := s.now()
	inviter := p.UserID
	inv := &models.Invitation{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Email:          email,
		Role:           r.String(),
		Token:          uuid.NewString(),
		InvitedBy:      &inviter,
		ExpiresAt:      now.Add(s.ttl),
		CreatedAt:      now,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, err
	}

	telemetry.InvitationsTotal.WithLabelValues("created").Inc()
	s.recorder.Record(ctx, audit.Entry{
		UserID:      p.UserID,
		OrgID:       orgID,
		Type:        audit.TypeInvitationCreated,
		Description: fmt.Sprintf("Invited %s as %s", email, r),
	})
	s.sendInvitationEmail(ctx, inv)

	return &CreateResult{Invitation: inv}, nil
}

func (s *InvitationService) sendInvitationEmail(ctx context.Context, inv *models.Invitation) {
	if s.mailer == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	safego.Go(func() {
		sctx, cancel := context.WithTimeout(bg, 30*time.Second)
		defer cancel()

		orgName := "an organization"
		if org, err := s.orgs.GetByID(sctx, inv.OrganizationID); err == nil && org != nil {
			orgName = org.Name
		}

		link := s.publicURL + "/invitations/accept?token=" + url.QueryEscape(inv.Token)
		body := strings.Join([]string{
			"Hello,",
			"",
			fmt.Sprintf("You have been invited to join %s as %s.", orgName, inv.Role),
			"",
			"Accept the invitation here:",
			"  " + link,
			"",
			fmt.Sprintf("The invitation expires on %s.", inv.ExpiresAt.UTC().Format(time.RFC1123)),
		}, "\n")

		subject := fmt.Sprintf("You're invited to join %s", orgName)
		if err := s.mailer.Send(sctx, inv.Email, subject, body); err != nil {
			slog.Warn("failed to send invitation email", "invitation_id", inv.ID, "error", err)
		}
	})
}

// List returns orgID's invitations, newest first, with derived status.
func (s *InvitationService) List(ctx context.Context, p auth.Principal, orgID string) ([]InvitationView, error) {
	if _, err := s.authority.Require(ctx, p, orgID, AccessManager); err != nil {
		return nil, err
	}

	invitations, err := s.invitations.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]InvitationView, 0, len(invitations))
	for _, inv := range invitations {
		views = append(views, InvitationView{Invitation: inv, Status: inv.StatusAt(now)})
	}
	return views, nil
}

// Revoke deletes a pending invitation.
func (s *InvitationService) Revoke(ctx context.Context, p auth.Principal, orgID, invitationID string) error {
	if _, err := s.authority.Require(ctx, p, orgID, AccessManager); err != nil {
		return err
	}

	inv, err := s.invitations.GetByID(ctx, orgID, invitationID)
	if err != nil {
		return err
	}
	if inv == nil {
		return apperr.New(apperr.NotFound, "Invitation not found")
	}

	now := s.now()
	if !inv.IsOpenAt(now) {
		return errInvitationClosed
	}
	if err := s.invitations.DeleteOpen(ctx, orgID, invitationID, now); err != nil {
		if errors.Is(err, repositories.ErrInvitationClosed) {
			return errInvitationClosed
		}
		return err
	}

	telemetry.InvitationsTotal.WithLabelValues("revoked").Inc()
	s.recorder.Record(ctx, audit.Entry{
		UserID:      p.UserID,
		OrgID:       orgID,
		Type:        audit.TypeInvitationRevoked,
		Description: fmt.Sprintf("Revoked invitation for %s", inv.Email),
	})
	return nil
}

// Accept redeems token for the calling user. The member cap is checked and the
// membership inserted under the organization lock.
func (s *InvitationService) Accept(ctx context.Context, p auth.Principal, token string) (*repositories.AcceptResult, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.New(apperr.InvalidInput, "Token is required")
	}

	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.New(apperr.NotFound, "Invitation not found")
	}
	if p.TokenOrgID != "" && p.TokenOrgID != inv.OrganizationID {
		return nil, apperr.ErrForbidden
	}

	now := s.now()
	if !inv.IsOpenAt(now) {
		return nil, errInvitationClosed
	}

	result, err := s.invitations.Accept(ctx, token, p.UserID, now)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil, apperr.New(apperr.NotFound, "Invitation not found")
	case errors.Is(err, repositories.ErrInvitationClosed):
		return nil, errInvitationClosed
	case errors.Is(err, repositories.ErrOrganizationNotFound):
		return nil, apperr.New(apperr.NotFound, "Organization not found")
	case errors.Is(err, repositories.ErrMemberLimitReached):
		return nil, apperr.New(apperr.CapacityExceeded, "Member limit reached for current plan")
	case err != nil:
		return nil, err
	}

	telemetry.InvitationsTotal.WithLabelValues("accepted").Inc()
	if result.Joined {
		telemetry.MembershipsChangedTotal.WithLabelValues("joined").Inc()
	}
	s.recorder.Record(ctx, audit.Entry{
		UserID:      p.UserID,
		OrgID:       result.Invitation.OrganizationID,
		Type:        audit.TypeInvitationAccepted,
		Description: fmt.Sprintf("Accepted invitation for %s", result.Invitation.Email),
	})
	return result, nil
}
