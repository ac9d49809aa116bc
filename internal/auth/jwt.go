// jwt.go signs and verifies HS256 session tokens for deployments that let the
// upstream auth service mint JWTs instead of answering session lookups.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionIssuer is the iss claim stamped on locally minted session tokens.
const SessionIssuer = "tenantry"

var (
	sessionSecret     string
	sessionSecretOnce sync.Once
	sessionSecretErr  error
)

// Claims is the session JWT payload.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// isDevMode reports whether the process runs in a development environment.
func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	ginMode := os.Getenv("GIN_MODE")

	return devMode == "true" || devMode == "1" || ginMode == "debug"
}

func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// ValidateSessionSecret checks that TNT_SESSION_SECRET is configured.
// In dev mode a random secret is generated with a warning; otherwise a missing
// secret is an error. Call this at startup when the jwt session mode is used.
func ValidateSessionSecret() error {
	sessionSecretOnce.Do(func() {
		secret := os.Getenv("TNT_SESSION_SECRET")

		if secret == "" {
			if isDevMode() {
				sessionSecret = generateRandomSecret()
				log.Printf("WARNING: TNT_SESSION_SECRET not set. Using auto-generated secret for development.")
			} else {
				sessionSecretErr = errors.New("TNT_SESSION_SECRET environment variable is required when auth.session.mode is jwt. " +
					"Generate a secure secret with: openssl rand -hex 32")
			}
			return
		}

		if len(secret) < 32 {
			log.Printf("WARNING: TNT_SESSION_SECRET is shorter than recommended 32 characters.")
		}

		sessionSecret = secret
	})

	return sessionSecretErr
}

// GetSessionSecret returns the validated secret.
// Panics if ValidateSessionSecret fails.
func GetSessionSecret() string {
	if sessionSecret == "" {
		if err := ValidateSessionSecret(); err != nil {
			panic(err)
		}
	}
	return sessionSecret
}

// GenerateSessionJWT mints a session token for userID.
func GenerateSessionJWT(userID, email string, expiresIn time.Duration) (string, error) {
	if expiresIn == 0 {
		expiresIn = 1 * time.Hour
	}

	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    SessionIssuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(GetSessionSecret()))
}

// ValidateSessionJWT parses and validates a session token.
func ValidateSessionJWT(tokenString string) (*Claims, error) {
	secret := GetSessionSecret()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no subject")
	}

	return claims, nil
}
