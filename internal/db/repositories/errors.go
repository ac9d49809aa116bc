// Package repositories implements the PostgreSQL data access layer.
// Repositories return (nil, nil) when a single-row lookup finds nothing, and
// the sentinel errors below for outcomes decided inside a transaction.
package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned by mutations whose target row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrOrganizationNotFound is returned when a locked organization row is missing.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrLastOwner is returned when a mutation would leave an organization without an owner.
	ErrLastOwner = errors.New("organization must retain at least one owner")

	// ErrMemberLimitReached is returned when the plan member cap is already met.
	ErrMemberLimitReached = errors.New("member limit reached for current plan")

	// ErrProjectLimitReached is returned when the plan project cap is already met.
	ErrProjectLimitReached = errors.New("project limit reached for current plan")

	// ErrInvitationClosed is returned for accepted or expired invitations.
	ErrInvitationClosed = errors.New("invitation is no longer valid")

	// ErrUsernameTaken is returned when a profile update collides on username.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrSlugTaken is returned when an organization slug is already in use.
	ErrSlugTaken = errors.New("organization slug is already taken")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isUniqueViolationOn(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}
