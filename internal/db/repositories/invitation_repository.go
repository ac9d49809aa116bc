// invitation_repository.go implements InvitationRepository, including the
// transactional accept path that enforces the plan member cap.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tenantry/tenantry/internal/billing"
	"github.com/tenantry/tenantry/internal/db/models"
)

// InvitationRepository handles database operations for organization invitations
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = `id, organization_id, email, role, token, invited_by, expires_at, accepted_at, created_at`

// AcceptResult describes the outcome of a successful accept.
type AcceptResult struct {
	Invitation *models.Invitation
	// Joined is false when the user was already a member.
	Joined bool
	// FirstMembership is true when this was the user's first organization.
	FirstMembership bool
}

// Create inserts a new invitation
func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organization_invitations (id, organization_id, email, role, token, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inv.ID, inv.OrganizationID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// ListByOrganization lists an organization's invitations, newest first
func (r *InvitationRepository) ListByOrganization(ctx context.Context, orgID string) ([]*models.Invitation, error) {
	invitations := make([]*models.Invitation, 0)
	err := r.db.SelectContext(ctx, &invitations,
		`SELECT `+invitationColumns+` FROM organization_invitations WHERE organization_id = $1 ORDER BY created_at DESC`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// GetByID retrieves an invitation scoped to orgID
func (r *InvitationRepository) GetByID(ctx context.Context, orgID, id string) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := r.db.GetContext(ctx, inv,
		`SELECT `+invitationColumns+` FROM organization_invitations WHERE id = $1 AND organization_id = $2`,
		id, orgID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// GetByToken retrieves an invitation by its opaque token
func (r *InvitationRepository) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := r.db.GetContext(ctx, inv,
		`SELECT `+invitationColumns+` FROM organization_invitations WHERE token = $1`, token)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// DeleteOpen deletes an invitation that is still pending at now.
// Returns ErrInvitationClosed if it was accepted or expired in the meantime.
func (r *InvitationRepository) DeleteOpen(ctx context.Context, orgID, id string, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM organization_invitations
		WHERE id = $1 AND organization_id = $2 AND accepted_at IS NULL AND expires_at >= $3`,
		id, orgID, now)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrInvitationClosed
	}
	return nil
}

// Accept redeems token for userID at now in a single transaction:
//
//  1. the invitation row is locked and must still be pending;
//  2. the organization row is locked (serializing with other membership mutations);
//  3. if the user is not yet a member the plan member cap is checked and the
//     membership inserted with the invitation's role, setting the onboarding
//     flag when it is the user's first membership;
//  4. accepted_at is stamped, also when the user was already a member.
func (r *InvitationRepository) Accept(ctx context.Context, token, userID string, now time.Time) (*AcceptResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	inv := &models.Invitation{}
	err = tx.GetContext(ctx, inv,
		`SELECT `+invitationColumns+` FROM organization_invitations WHERE token = $1 FOR UPDATE`, token)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	if !inv.IsOpenAt(now) {
		return nil, ErrInvitationClosed
	}

	plan, err := lockOrganization(ctx, tx, inv.OrganizationID)
	if err != nil {
		return nil, err
	}

	result := &AcceptResult{Invitation: inv}

	var isMember bool
	err = tx.GetContext(ctx, &isMember,
		`SELECT EXISTS(SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2)`,
		inv.OrganizationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	if !isMember {
		if err := r.join(ctx, tx, inv, userID, plan, now, result); err != nil {
			return nil, err
		}
	}

	acceptedAt := now
	if _, err := tx.ExecContext(ctx,
		`UPDATE organization_invitations SET accepted_at = $1 WHERE id = $2`, acceptedAt, inv.ID); err != nil {
		return nil, fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	inv.AcceptedAt = &acceptedAt

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit invitation accept: %w", err)
	}
	return result, nil
}

func (r *InvitationRepository) join(ctx context.Context, tx *sqlx.Tx, inv *models.Invitation, userID, plan string, now time.Time, result *AcceptResult) error {
	var existing int
	if err := tx.GetContext(ctx, &existing,
		`SELECT COUNT(*) FROM organization_members WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to count memberships: %w", err)
	}
	result.FirstMembership = existing == 0

	limits := billing.LimitsFor(billing.NormalizePlan(plan))
	if limits.MaxMembers != nil {
		var members int
		if err := tx.GetContext(ctx, &members,
			`SELECT COUNT(*) FROM organization_members WHERE organization_id = $1`, inv.OrganizationID); err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		if !limits.AllowsMembers(members) {
			return ErrMemberLimitReached
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO organization_members (id, organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), inv.OrganizationID, userID, inv.Role, now)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	result.Joined = true

	if result.FirstMembership {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET onboarding_complete = TRUE, updated_at = $1 WHERE id = $2`, now, userID); err != nil {
			return fmt.Errorf("failed to mark onboarding complete: %w", err)
		}
	}
	return nil
}

// PurgeExpired deletes never-accepted invitations that expired before cutoff.
func (r *InvitationRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM organization_invitations WHERE accepted_at IS NULL AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge invitations: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
