package models

import (
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Invitation.StatusAt
// ---------------------------------------------------------------------------

func TestInvitation_StatusAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(7 * 24 * time.Hour)
	accepted := created.Add(time.Hour)

	tests := []struct {
		name       string
		acceptedAt *time.Time
		now        time.Time
		want       InvitationStatus
	}{
		{"fresh", nil, created, InvitationPending},
		{"exactly at expiry", nil, expires, InvitationPending},
		{"one day after expiry", nil, created.Add(8 * 24 * time.Hour), InvitationExpired},
		{"accepted", &accepted, created.Add(2 * time.Hour), InvitationAccepted},
		{"accepted then past expiry", &accepted, created.Add(30 * 24 * time.Hour), InvitationAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invitation{ExpiresAt: expires, AcceptedAt: tt.acceptedAt}
			if got := inv.StatusAt(tt.now); got != tt.want {
				t.Errorf("StatusAt() = %s, want %s", got, tt.want)
			}
			if open := inv.IsOpenAt(tt.now); open != (tt.want == InvitationPending) {
				t.Errorf("IsOpenAt() = %v for status %s", open, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// APIToken.ValidAt
// ---------------------------------------------------------------------------

func TestAPIToken_ValidAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		revokedAt *time.Time
		want      bool
	}{
		{"no expiry, not revoked", nil, nil, true},
		{"future expiry", &future, nil, true},
		{"expired", &past, nil, false},
		{"expires exactly now", &now, nil, false},
		{"revoked", &future, &past, false},
		{"revoked exactly now", nil, &now, false},
		{"revoked in the future", nil, &future, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &APIToken{ExpiresAt: tt.expiresAt, RevokedAt: tt.revokedAt}
			if got := tok.ValidAt(now); got != tt.want {
				t.Errorf("ValidAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProfileUpdate_IsEmpty(t *testing.T) {
	if !(ProfileUpdate{}).IsEmpty() {
		t.Error("zero ProfileUpdate should be empty")
	}
	name := "Ada"
	if (ProfileUpdate{Name: &name}).IsEmpty() {
		t.Error("ProfileUpdate with a name should not be empty")
	}
}
