// activity_repository.go implements ActivityRepository for the append-only activity log
package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/tenantry/tenantry/internal/db/models"
)

// DefaultActivityLimit is the number of entries returned by the activity feed.
const DefaultActivityLimit = 10

// ActivityRepository handles database operations for activity entries
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends an activity entry
func (r *ActivityRepository) Create(ctx context.Context, a *models.Activity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activities (id, user_id, organization_id, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.OrganizationID, a.Type, a.Description, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

// ListRecentByUser returns the user's most recent entries, newest first,
// with the organization name when the organization still exists.
func (r *ActivityRepository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	query := `
		SELECT a.id, a.user_id, a.organization_id, a.type, a.description, a.created_at,
		       o.name AS org_name
		FROM activities a
		LEFT JOIN organizations o ON o.id = a.organization_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2
	`
	entries := make([]*models.Activity, 0)
	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return entries, nil
}
