// Package models - organization.go defines the tenant Organization, its membership rows
// and the joined read views used by the member and workspace listings.
package models

import "time"

// Organization is a tenant. Plan and BillingStatus are stored as free text and
// normalized through the billing package on read.
type Organization struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Slug          string    `json:"slug" db:"slug"`
	Plan          string    `json:"plan" db:"plan"`
	BillingStatus string    `json:"billingStatus" db:"billing_status"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// Membership links a user to an organization with a role.
// At most one row exists per (organization, user).
type Membership struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"orgId" db:"organization_id"`
	UserID         string    `json:"userId" db:"user_id"`
	Role           string    `json:"role" db:"role"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// MemberWithUser is a membership joined with the member's name and email.
type MemberWithUser struct {
	Membership
	UserName  string `json:"userName" db:"user_name"`
	UserEmail string `json:"userEmail" db:"user_email"`
}

// UserOrganization is one entry of a user's organization list.
type UserOrganization struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
	Role string `json:"role" db:"role"`
}

// OrganizationHealth is a per-organization invariant report row.
type OrganizationHealth struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Plan        string `db:"plan"`
	OwnerCount  int    `db:"owner_count"`
	MemberCount int    `db:"member_count"`
}
