package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/db/repositories"
	"github.com/tenantry/tenantry/internal/telemetry"
)

// TokenService issues, lists and revokes the caller's API tokens.
type TokenService struct {
	authority  *Authority
	tokens     *repositories.APITokenRepository
	recorder   ActivityRecorder
	prefix     string
	defaultTTL int
	now        func() time.Time
}

// NewTokenService creates the service. defaultTTLDays <= 0 uses auth.DefaultTokenTTLDays.
func NewTokenService(authority *Authority, tokens *repositories.APITokenRepository, recorder ActivityRecorder, prefix string, defaultTTLDays int) *TokenService {
	if defaultTTLDays <= 0 {
		defaultTTLDays = auth.DefaultTokenTTLDays
	}
	return &TokenService{
		authority:  authority,
		tokens:     tokens,
		recorder:   recorder,
		prefix:     prefix,
		defaultTTL: defaultTTLDays,
		now:        time.Now,
	}
}

// IssueRequest describes a new token. OrgID optionally scopes the token.
type IssueRequest struct {
	Name          string  `json:"name"`
	OrgID         *string `json:"orgId"`
	ExpiresInDays *int    `json:"expiresInDays"`
}

// IssuedToken carries the raw token, which is returned exactly once.
type IssuedToken struct {
	*models.APIToken
	Token string `json:"token"`
}

// Issue creates a token for the caller.
func (s *TokenService) Issue(ctx context.Context, p auth.Principal, req IssueRequest) (*IssuedToken, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = auth.DefaultTokenName
	}

	requested := ""
	if req.OrgID != nil {
		requested = strings.TrimSpace(*req.OrgID)
	}
	// An org-scoped token can only mint tokens for its own organization.
	if p.TokenOrgID != "" {
		if requested != "" && requested != p.TokenOrgID {
			return nil, apperr.ErrForbidden
		}
		requested = p.TokenOrgID
	}

	var orgID *string
	if requested != "" {
		if _, err := s.authority.Require(ctx, p, requested, AccessMember); err != nil {
			return nil, err
		}
		orgID = &requested
	}

	days := s.defaultTTL
	if req.ExpiresInDays != nil && *req.ExpiresInDays > 0 {
		days = *req.ExpiresInDays
	}

	raw, hash, err := auth.GenerateAPIToken(s.prefix)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.AddDate(0, 0, days)
	token := &models.APIToken{
		ID:             uuid.NewString(),
		UserID:         p.UserID,
		OrganizationID: orgID,
		Name:           name,
		TokenHash:      hash,
		CreatedAt:      now,
		ExpiresAt:      &expiresAt,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}

	telemetry.APITokensTotal.WithLabelValues("issued").Inc()
	entry := audit.Entry{
		UserID:      p.UserID,
		Type:        audit.TypeAPITokenCreated,
		Description: fmt.Sprintf("Created API token %s", name),
	}
	if orgID != nil {
		entry.OrgID = *orgID
	}
	s.recorder.Record(ctx, entry)

	return &IssuedToken{APIToken: token, Token: raw}, nil
}

// List returns the caller's tokens, newest first. Hashes are never exposed.
func (s *TokenService) List(ctx context.Context, p auth.Principal) ([]*models.APIToken, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	return s.tokens.ListByUser(ctx, p.UserID)
}

// Revoke revokes one of the caller's tokens. Revoking an already revoked token
// succeeds without recording activity.
func (s *TokenService) Revoke(ctx context.Context, p auth.Principal, tokenID string) error {
	if err := requireUser(p); err != nil {
		return err
	}

	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if token == nil || token.UserID != p.UserID {
		return apperr.New(apperr.NotFound, "Token not found")
	}

	revoked, err := s.tokens.Revoke(ctx, tokenID, p.UserID, s.now())
	if err != nil {
		return err
	}
	if !revoked {
		return nil
	}

	telemetry.APITokensTotal.WithLabelValues("revoked").Inc()
	entry := audit.Entry{
		UserID:      p.UserID,
		Type:        audit.TypeAPITokenRevoked,
		Description: fmt.Sprintf("Revoked API token %s", token.Name),
	}
	if token.OrganizationID != nil {
		entry.OrgID = *token.OrganizationID
	}
	s.recorder.Record(ctx, entry)
	return nil
}
