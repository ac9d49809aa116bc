package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SessionCredentials are the request credentials forwarded to a session verifier.
type SessionCredentials struct {
	Cookie        string
	Authorization string
}

// Empty reports whether the request carried no credentials at all.
func (c SessionCredentials) Empty() bool {
	return c.Cookie == "" && c.Authorization == ""
}

// SessionVerifier resolves request credentials to a user id. An empty id with
// a nil error means "no session"; errors are transport or protocol failures.
type SessionVerifier interface {
	VerifySession(ctx context.Context, creds SessionCredentials) (string, error)
}

// HTTPSessionVerifier asks an external auth service who the caller is by
// forwarding the Cookie and Authorization headers to a session endpoint that
// answers {"user":{"id":"..."}}.
type HTTPSessionVerifier struct {
	URL    string
	Client *http.Client
}

// NewHTTPSessionVerifier creates a verifier for the given session endpoint.
func NewHTTPSessionVerifier(url string, timeout time.Duration) *HTTPSessionVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSessionVerifier{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

type sessionResponse struct {
	User *struct {
		ID string `json:"id"`
	} `json:"user"`
}

func (v *HTTPSessionVerifier) VerifySession(ctx context.Context, creds SessionCredentials) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build session request: %w", err)
	}
	if creds.Cookie != "" {
		req.Header.Set("Cookie", creds.Cookie)
	}
	if creds.Authorization != "" {
		req.Header.Set("Authorization", creds.Authorization)
	}

	resp, err := v.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body) // nolint:errcheck
		return "", nil
	}

	var body sessionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	if body.User == nil {
		return "", nil
	}
	return body.User.ID, nil
}

// JWTSessionVerifier accepts a session JWT from the Authorization header.
type JWTSessionVerifier struct{}

func (JWTSessionVerifier) VerifySession(_ context.Context, creds SessionCredentials) (string, error) {
	raw, err := ExtractBearer(creds.Authorization)
	if err != nil {
		return "", nil
	}
	claims, err := ValidateSessionJWT(raw)
	if err != nil {
		// Not a session token; the resolver moves on to API token lookup.
		return "", nil
	}
	return claims.UserID, nil
}

// CachingSessionVerifier memoizes positive verification results for a short TTL.
// Negative results are never cached so a fresh login is visible immediately.
type CachingSessionVerifier struct {
	next  SessionVerifier
	cache *expirable.LRU[string, string]
}

// NewCachingSessionVerifier wraps next with an expirable LRU of the given size.
func NewCachingSessionVerifier(next SessionVerifier, size int, ttl time.Duration) *CachingSessionVerifier {
	if size <= 0 {
		size = 1024
	}
	return &CachingSessionVerifier{
		next:  next,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func cacheKey(creds SessionCredentials) string {
	sum := sha256.Sum256([]byte(creds.Cookie + "\x00" + creds.Authorization))
	return hex.EncodeToString(sum[:])
}

func (v *CachingSessionVerifier) VerifySession(ctx context.Context, creds SessionCredentials) (string, error) {
	key := cacheKey(creds)
	if userID, ok := v.cache.Get(key); ok {
		return userID, nil
	}
	userID, err := v.next.VerifySession(ctx, creds)
	if err != nil || userID == "" {
		return userID, err
	}
	v.cache.Add(key, userID)
	return userID, nil
}

// Purge drops every cached entry.
func (v *CachingSessionVerifier) Purge() {
	v.cache.Purge()
}
