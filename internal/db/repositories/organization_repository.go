// organization_repository.go implements OrganizationRepository: organizations,
// memberships and the guarded membership mutations. Every mutation that reads
// a count before writing runs in a transaction that first locks the
// organization row, so concurrent mutations of one organization serialize.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tenantry/tenantry/internal/db/models"
)

// OrganizationRepository handles database operations for organizations and memberships
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

const (
	organizationColumns = `id, name, slug, plan, billing_status, created_at, updated_at`
	membershipColumns   = `id, organization_id, user_id, role, created_at`
)

// lockOrganization takes the row lock that serializes membership mutations
// for one organization and returns its stored plan.
func lockOrganization(ctx context.Context, tx *sqlx.Tx, orgID string) (string, error) {
	var plan string
	err := tx.GetContext(ctx, &plan, `SELECT plan FROM organizations WHERE id = $1 FOR UPDATE`, orgID)
	if err == sql.ErrNoRows {
		return "", ErrOrganizationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock organization: %w", err)
	}
	return plan, nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.GetContext(ctx, org, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// ListForUser returns every organization the user belongs to with the user's role.
func (r *OrganizationRepository) ListForUser(ctx context.Context, userID string) ([]*models.UserOrganization, error) {
	query := `
		SELECT o.id, o.name, o.slug, m.role
		FROM organization_members m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1
		ORDER BY m.created_at ASC
	`
	orgs := make([]*models.UserOrganization, 0)
	if err := r.db.SelectContext(ctx, &orgs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// CreateWorkspace creates org with ownerID as its owner and the given projects,
// but only if the user has no memberships yet. A per-user advisory lock makes
// concurrent first requests create exactly one workspace. Returns false when
// the user already belonged to an organization.
func (r *OrganizationRepository) CreateWorkspace(ctx context.Context, org *models.Organization, ownerID string, projects []*models.Project) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ownerID); err != nil {
		return false, fmt.Errorf("failed to lock user: %w", err)
	}

	var existing int
	if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM organization_members WHERE user_id = $1`, ownerID); err != nil {
		return false, fmt.Errorf("failed to count memberships: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	now := time.Now()
	org.CreatedAt, org.UpdatedAt = now, now
	_, err = tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, plan, billing_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		org.ID, org.Name, org.Slug, org.Plan, org.BillingStatus, org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolationOn(err, "organizations_slug_key") {
			return false, ErrSlugTaken
		}
		return false, fmt.Errorf("failed to create organization: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (id, organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, 'owner', $4)`,
		uuid.NewString(), org.ID, ownerID, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add owner: %w", err)
	}

	for _, p := range projects {
		p.OrganizationID = org.ID
		p.CreatedAt, p.UpdatedAt = now, now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO projects (id, organization_id, name, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, p.OrganizationID, p.Name, p.Status, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return false, fmt.Errorf("failed to create project: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit workspace: %w", err)
	}
	return true, nil
}

// === Membership Operations ===

// GetMembership retrieves a user's membership in an organization
func (r *OrganizationRepository) GetMembership(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	m := &models.Membership{}
	err := r.db.GetContext(ctx, m,
		`SELECT `+membershipColumns+` FROM organization_members WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// GetMember retrieves a membership row by its id, scoped to orgID
func (r *OrganizationRepository) GetMember(ctx context.Context, orgID, memberID string) (*models.Membership, error) {
	m := &models.Membership{}
	err := r.db.GetContext(ctx, m,
		`SELECT `+membershipColumns+` FROM organization_members WHERE id = $1 AND organization_id = $2`,
		memberID, orgID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// ListMembers lists an organization's members joined with user details
func (r *OrganizationRepository) ListMembers(ctx context.Context, orgID string) ([]*models.MemberWithUser, error) {
	query := `
		SELECT m.id, m.organization_id, m.user_id, m.role, m.created_at,
		       u.name AS user_name, u.email AS user_email
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ASC
	`
	members := make([]*models.MemberWithUser, 0)
	if err := r.db.SelectContext(ctx, &members, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// CountMembers returns the number of members of an organization
func (r *OrganizationRepository) CountMembers(ctx context.Context, orgID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM organization_members WHERE organization_id = $1`, orgID); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}

// ChangeMemberRole sets the role of memberID. Demoting the last owner fails
// with ErrLastOwner. Returns the membership as it was before the change.
func (r *OrganizationRepository) ChangeMemberRole(ctx context.Context, orgID, memberID, role string) (*models.Membership, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := lockOrganization(ctx, tx, orgID); err != nil {
		return nil, err
	}

	target, err := getMemberTx(ctx, tx, orgID, memberID)
	if err != nil {
		return nil, err
	}

	if target.Role == "owner" && role != "owner" {
		owners, err := countOwnersTx(ctx, tx, orgID)
		if err != nil {
			return nil, err
		}
		if owners <= 1 {
			return nil, ErrLastOwner
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE organization_members SET role = $1 WHERE id = $2`, role, memberID); err != nil {
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit role change: %w", err)
	}
	return target, nil
}

// RemoveMember deletes memberID. check runs under the organization lock with
// the target row and may veto the removal; removing the last owner fails with
// ErrLastOwner. Returns the removed membership.
func (r *OrganizationRepository) RemoveMember(ctx context.Context, orgID, memberID string, check func(target *models.Membership) error) (*models.Membership, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := lockOrganization(ctx, tx, orgID); err != nil {
		return nil, err
	}

	target, err := getMemberTx(ctx, tx, orgID, memberID)
	if err != nil {
		return nil, err
	}

	if check != nil {
		if err := check(target); err != nil {
			return nil, err
		}
	}

	if target.Role == "owner" {
		owners, err := countOwnersTx(ctx, tx, orgID)
		if err != nil {
			return nil, err
		}
		if owners <= 1 {
			return nil, ErrLastOwner
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM organization_members WHERE id = $1`, memberID); err != nil {
		return nil, fmt.Errorf("failed to remove member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit member removal: %w", err)
	}
	return target, nil
}

func getMemberTx(ctx context.Context, tx *sqlx.Tx, orgID, memberID string) (*models.Membership, error) {
	m := &models.Membership{}
	err := tx.GetContext(ctx, m,
		`SELECT `+membershipColumns+` FROM organization_members WHERE id = $1 AND organization_id = $2`,
		memberID, orgID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

func countOwnersTx(ctx context.Context, tx *sqlx.Tx, orgID string) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM organization_members WHERE organization_id = $1 AND role = 'owner'`, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return n, nil
}

// ListHealth reports owner and member counts for every organization.
func (r *OrganizationRepository) ListHealth(ctx context.Context) ([]*models.OrganizationHealth, error) {
	query := `
		SELECT o.id, o.name, o.plan,
		       COUNT(m.id) FILTER (WHERE m.role = 'owner') AS owner_count,
		       COUNT(m.id) AS member_count
		FROM organizations o
		LEFT JOIN organization_members m ON m.organization_id = o.id
		GROUP BY o.id, o.name, o.plan
		ORDER BY o.created_at ASC
	`
	rows := make([]*models.OrganizationHealth, 0)
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to report organization health: %w", err)
	}
	return rows, nil
}
