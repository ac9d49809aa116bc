// Package auth provides the authentication primitives of the service: the
// membership role enumeration, API token generation and hashing, session JWTs,
// pluggable session verifiers and the request principal resolver.
// See internal/middleware/auth.go for the request-time wiring.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// APITokenLength is the length of the random part of an API token in bytes
	APITokenLength = 32

	// DefaultTokenName is used when a token is issued without a name
	DefaultTokenName = "Personal access token"

	// DefaultTokenTTLDays is the lifetime of a token issued without an explicit expiry
	DefaultTokenTTLDays = 365
)

// GenerateAPIToken creates a new random API token.
// Returns: raw token (shown to the caller once) and its SHA-256 hex hash (stored).
func GenerateAPIToken(prefix string) (raw string, hash string, err error) {
	randomBytes := make([]byte, APITokenLength)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	raw = base64.RawURLEncoding.EncodeToString(randomBytes)
	if prefix != "" {
		raw = prefix + "_" + raw
	}

	return raw, HashToken(raw), nil
}

// HashToken returns the lowercase hex SHA-256 digest of a raw token.
// The digest is deterministic so it can be used as a unique lookup key.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ExtractBearer extracts the credential from an Authorization header.
// Expected format: "Bearer <value>", scheme matched case-insensitively.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}

	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	value := strings.TrimSpace(header[7:])
	if value == "" {
		return "", errors.New("bearer value is empty")
	}

	return value, nil
}
