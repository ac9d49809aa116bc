package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/safego"
)

// Authentication methods reported on a resolved Principal.
const (
	MethodNone    = "none"
	MethodSession = "session"
	MethodToken   = "api_token"
	MethodHeader  = "header"
)

// Principal is the identity making a request. The zero value is anonymous.
type Principal struct {
	Authenticated bool
	UserID        string
	// TokenID and TokenOrgID are set only for API token principals. An empty
	// TokenOrgID means the token is not scoped to an organization.
	TokenID    string
	TokenOrgID string
	Method     string
}

// Anonymous is the unauthenticated principal.
var Anonymous = Principal{Method: MethodNone}

// IsToken reports whether the principal authenticated with an API token.
func (p Principal) IsToken() bool {
	return p.Method == MethodToken
}

// TokenStore is the subset of the API token repository the resolver needs.
type TokenStore interface {
	GetByHash(ctx context.Context, hash string) (*models.APIToken, error)
	UpdateLastUsed(ctx context.Context, id string) error
}

// Resolver turns request credentials into a Principal. Resolution never fails:
// lookup errors are logged and the request proceeds anonymously.
type Resolver struct {
	verifier       SessionVerifier
	tokens         TokenStore
	headerFallback bool
	now            func() time.Time
}

// NewResolver creates a resolver. verifier may be nil. The trusted-header
// fallback is honoured only when no verifier is configured.
func NewResolver(verifier SessionVerifier, tokens TokenStore, allowHeaderFallback bool) *Resolver {
	return &Resolver{
		verifier:       verifier,
		tokens:         tokens,
		headerFallback: allowHeaderFallback && verifier == nil,
		now:            time.Now,
	}
}

// Resolve identifies the caller. Order: session verifier, hashed API token,
// trusted headers.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) Principal {
	creds := SessionCredentials{
		Cookie:        req.Header.Get("Cookie"),
		Authorization: req.Header.Get("Authorization"),
	}

	if r.verifier != nil && !creds.Empty() {
		userID, err := r.verifier.VerifySession(ctx, creds)
		if err != nil {
			slog.Warn("session verification failed", "error", err)
		} else if userID != "" {
			return Principal{Authenticated: true, UserID: userID, Method: MethodSession}
		}
	}

	bearer, _ := ExtractBearer(creds.Authorization)
	if bearer != "" && r.tokens != nil {
		if p, ok := r.resolveToken(ctx, bearer); ok {
			return p
		}
	}

	if r.headerFallback {
		if userID := strings.TrimSpace(req.Header.Get("X-User-Id")); userID != "" {
			return Principal{Authenticated: true, UserID: userID, Method: MethodHeader}
		}
		if bearer != "" {
			return Principal{Authenticated: true, UserID: bearer, Method: MethodHeader}
		}
	}

	return Anonymous
}

func (r *Resolver) resolveToken(ctx context.Context, raw string) (Principal, bool) {
	token, err := r.tokens.GetByHash(ctx, HashToken(raw))
	if err != nil {
		slog.Error("api token lookup failed", "error", err)
		return Principal{}, false
	}
	if token == nil || !token.ValidAt(r.now()) {
		return Principal{}, false
	}

	id := token.ID
	safego.Go(func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.tokens.UpdateLastUsed(bg, id); err != nil {
			slog.Debug("failed to update token last used", "token_id", id, "error", err)
		}
	})

	p := Principal{Authenticated: true, UserID: token.UserID, TokenID: token.ID, Method: MethodToken}
	if token.OrganizationID != nil {
		p.TokenOrgID = *token.OrganizationID
	}
	return p, true
}
