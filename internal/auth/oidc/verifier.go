// Package oidc implements a session verifier that accepts OpenID Connect ID
// tokens as bearer credentials. Discovery and signature checks are delegated to
// go-oidc; the token's sub claim is the caller's user id.
package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/config"
)

// IDTokenVerifier is the subset of *oidc.IDTokenVerifier used here
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// SessionVerifier verifies bearer ID tokens against an OIDC issuer
type SessionVerifier struct {
	verifier IDTokenVerifier
}

// NewSessionVerifier initializes the verifier with the given context, allowing
// callers to set deadlines or cancellation for the OIDC discovery request.
func NewSessionVerifier(ctx context.Context, cfg *config.OIDCConfig) (*SessionVerifier, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("OIDC issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("OIDC client ID is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return NewSessionVerifierFrom(provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})), nil
}

// NewSessionVerifierFrom wraps an already configured ID token verifier
func NewSessionVerifierFrom(v IDTokenVerifier) *SessionVerifier {
	return &SessionVerifier{verifier: v}
}

// VerifySession implements auth.SessionVerifier. A missing or invalid ID token
// is "no session", not an error.
func (v *SessionVerifier) VerifySession(ctx context.Context, creds auth.SessionCredentials) (string, error) {
	raw, err := auth.ExtractBearer(creds.Authorization)
	if err != nil {
		return "", nil
	}

	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return "", nil
	}
	return subject(idToken)
}

func subject(idToken *oidc.IDToken) (string, error) {
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to parse ID token claims: %w", err)
	}
	if claims.Sub == "" {
		return "", fmt.Errorf("ID token missing 'sub' claim")
	}
	return claims.Sub, nil
}
