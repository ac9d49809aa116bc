// project_repository.go implements ProjectRepository
package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tenantry/tenantry/internal/billing"
	"github.com/tenantry/tenantry/internal/db/models"
)

// ProjectRepository handles database operations for projects
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, organization_id, name, status, created_at, updated_at`

// ListByOrganization lists an organization's projects, oldest first
func (r *ProjectRepository) ListByOrganization(ctx context.Context, orgID string) ([]*models.Project, error) {
	projects := make([]*models.Project, 0)
	err := r.db.SelectContext(ctx, &projects,
		`SELECT `+projectColumns+` FROM projects WHERE organization_id = $1 ORDER BY created_at ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Create inserts p after checking the plan project cap under the organization lock.
func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	plan, err := lockOrganization(ctx, tx, p.OrganizationID)
	if err != nil {
		return err
	}

	limits := billing.LimitsFor(billing.NormalizePlan(plan))
	if limits.MaxProjects != nil {
		var count int
		if err := tx.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM projects WHERE organization_id = $1`, p.OrganizationID); err != nil {
			return fmt.Errorf("failed to count projects: %w", err)
		}
		if !limits.AllowsProjects(count) {
			return ErrProjectLimitReached
		}
	}

	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, organization_id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.OrganizationID, p.Name, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of upd to a project of orgID.
func (r *ProjectRepository) Update(ctx context.Context, orgID, projectID string, upd models.ProjectUpdate) error {
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now())

	args = append(args, projectID, orgID)
	query := fmt.Sprintf(`UPDATE projects SET %s WHERE id = $%d AND organization_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
