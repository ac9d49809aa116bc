// api_token_repository.go implements APITokenRepository: issuance, hashed
// lookup, revocation and the expiry notification bookkeeping.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tenantry/tenantry/internal/db/models"
)

// APITokenRepository handles database operations for API tokens
type APITokenRepository struct {
	db *sqlx.DB
}

// NewAPITokenRepository creates a new API token repository
func NewAPITokenRepository(db *sqlx.DB) *APITokenRepository {
	return &APITokenRepository{db: db}
}

const apiTokenColumns = `id, user_id, organization_id, name, token_hash, created_at, expires_at, revoked_at, last_used_at, expiry_notification_sent_at`

// Create inserts a new token
func (r *APITokenRepository) Create(ctx context.Context, t *models.APIToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_tokens (id, user_id, organization_id, name, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.OrganizationID, t.Name, t.TokenHash, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create API token: %w", err)
	}
	return nil
}

// GetByHash retrieves a token by the SHA-256 hash of its raw value
func (r *APITokenRepository) GetByHash(ctx context.Context, hash string) (*models.APIToken, error) {
	t := &models.APIToken{}
	err := r.db.GetContext(ctx, t, `SELECT `+apiTokenColumns+` FROM api_tokens WHERE token_hash = $1`, hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get API token: %w", err)
	}
	return t, nil
}

// GetByID retrieves a token by ID
func (r *APITokenRepository) GetByID(ctx context.Context, id string) (*models.APIToken, error) {
	t := &models.APIToken{}
	err := r.db.GetContext(ctx, t, `SELECT `+apiTokenColumns+` FROM api_tokens WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get API token: %w", err)
	}
	return t, nil
}

// ListByUser lists a user's tokens, newest first
func (r *APITokenRepository) ListByUser(ctx context.Context, userID string) ([]*models.APIToken, error) {
	tokens := make([]*models.APIToken, 0)
	err := r.db.SelectContext(ctx, &tokens,
		`SELECT `+apiTokenColumns+` FROM api_tokens WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API tokens: %w", err)
	}
	return tokens, nil
}

// Revoke stamps revoked_at on a token owned by userID if it is not already
// revoked. Returns true only when this call performed the revocation.
func (r *APITokenRepository) Revoke(ctx context.Context, id, userID string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE api_tokens SET revoked_at = $1 WHERE id = $2 AND user_id = $3 AND revoked_at IS NULL`,
		now, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke API token: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// UpdateLastUsed records a successful authentication with the token
func (r *APITokenRepository) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update token last used: %w", err)
	}
	return nil
}

// FindExpiring returns unrevoked tokens expiring within warningDays that have
// not had a warning sent yet, joined with their owner's email and name.
func (r *APITokenRepository) FindExpiring(ctx context.Context, warningDays int) ([]*models.APIToken, error) {
	cutoff := time.Now().Add(time.Duration(warningDays) * 24 * time.Hour)
	query := `
		SELECT t.id, t.user_id, t.organization_id, t.name, t.token_hash, t.created_at,
		       t.expires_at, t.revoked_at, t.last_used_at, t.expiry_notification_sent_at,
		       u.email AS user_email, u.name AS user_name
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.expires_at IS NOT NULL
		  AND t.expires_at > NOW()
		  AND t.expires_at <= $1
		  AND t.revoked_at IS NULL
		  AND t.expiry_notification_sent_at IS NULL
		ORDER BY t.expires_at ASC
	`
	tokens := make([]*models.APIToken, 0)
	if err := r.db.SelectContext(ctx, &tokens, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to find expiring tokens: %w", err)
	}
	return tokens, nil
}

// MarkExpiryNotificationSent records that the expiry warning was sent for a token,
// preventing duplicate emails on subsequent job runs.
func (r *APITokenRepository) MarkExpiryNotificationSent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_tokens SET expiry_notification_sent_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}
