package models

import "time"

// APIToken is a user-owned bearer credential. Only the SHA-256 hash of the raw
// token is stored. OrganizationID, when set, scopes the token to one org.
type APIToken struct {
	ID                       string     `json:"id" db:"id"`
	UserID                   string     `json:"userId" db:"user_id"`
	OrganizationID           *string    `json:"orgId" db:"organization_id"`
	Name                     string     `json:"name" db:"name"`
	TokenHash                string     `json:"-" db:"token_hash"`
	CreatedAt                time.Time  `json:"createdAt" db:"created_at"`
	ExpiresAt                *time.Time `json:"expiresAt" db:"expires_at"`
	RevokedAt                *time.Time `json:"revokedAt" db:"revoked_at"`
	LastUsedAt               *time.Time `json:"lastUsedAt,omitempty" db:"last_used_at"`
	ExpiryNotificationSentAt *time.Time `json:"-" db:"expiry_notification_sent_at"`

	// Joined for expiry notifications
	UserEmail *string `json:"-" db:"user_email"`
	UserName  *string `json:"-" db:"user_name"`
}

// ValidAt reports whether the token authenticates at now: never revoked and
// not expired at or before now.
func (t *APIToken) ValidAt(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
		return false
	}
	return true
}
