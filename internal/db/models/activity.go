package models

import "time"

// Activity is an append-only audit entry. OrganizationID is nulled if the
// organization is deleted; the entry itself is kept.
type Activity struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"userId" db:"user_id"`
	OrganizationID *string   `json:"orgId" db:"organization_id"`
	Type           string    `json:"type" db:"type"`
	Description    *string   `json:"description" db:"description"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	OrgName        *string   `json:"orgName" db:"org_name"`
}
