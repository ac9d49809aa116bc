// Package models - invitation.go defines organization invitations and the derived
// lifecycle status computed from acceptedAt, expiresAt and the current time.
package models

import "time"

// InvitationStatus is derived, never stored.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation is an offer of membership addressed to an email.
// Role is never "owner".
type Invitation struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"orgId" db:"organization_id"`
	Email          string     `json:"email" db:"email"`
	Role           string     `json:"role" db:"role"`
	Token          string     `json:"token" db:"token"`
	InvitedBy      *string    `json:"invitedBy,omitempty" db:"invited_by"`
	ExpiresAt      time.Time  `json:"expiresAt" db:"expires_at"`
	AcceptedAt     *time.Time `json:"acceptedAt,omitempty" db:"accepted_at"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
}

// StatusAt derives the lifecycle status at now. Accepted wins over expired;
// an invitation is expired only once now is strictly after expiresAt.
func (i *Invitation) StatusAt(now time.Time) InvitationStatus {
	if i.AcceptedAt != nil {
		return InvitationAccepted
	}
	if i.ExpiresAt.Before(now) {
		return InvitationExpired
	}
	return InvitationPending
}

// IsOpenAt reports whether the invitation can still be accepted or revoked.
func (i *Invitation) IsOpenAt(now time.Time) bool {
	return i.StatusAt(now) == InvitationPending
}
