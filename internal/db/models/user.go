// Package models defines the database model types for the service.
// Each type corresponds to a table (or a joined read view) and carries db tags for sqlx scanning.
// Models are pure data types: authorization belongs in the services layer, queries in the repositories layer.
package models

import "time"

// User is an account row. Rows are created by the external auth service; this
// service only edits profile fields and the onboarding flag.
type User struct {
	ID                 string    `json:"id" db:"id"`
	Email              string    `json:"email" db:"email"`
	Name               string    `json:"name" db:"name"`
	Username           *string   `json:"username" db:"username"`
	DisplayUsername    *string   `json:"displayUsername" db:"display_username"`
	TwoFactorEnabled   bool      `json:"twoFactorEnabled" db:"two_factor_enabled"`
	OnboardingComplete bool      `json:"onboardingComplete" db:"onboarding_complete"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`
}

// ProfileUpdate carries the optional fields of a profile edit. A nil pointer
// leaves the column untouched; a pointer to "" clears a nullable column.
type ProfileUpdate struct {
	Name            *string
	Username        *string
	DisplayUsername *string
}

// IsEmpty reports whether the update would change nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Username == nil && u.DisplayUsername == nil
}
