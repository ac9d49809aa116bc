package models

import "time"

// DefaultProjectStatus is applied when a project is created without a status.
const DefaultProjectStatus = "active"

// Project belongs to exactly one organization. Status is free text.
type Project struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"orgId" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// ProjectUpdate carries the optional fields of a project edit.
type ProjectUpdate struct {
	Name   *string
	Status *string
}
