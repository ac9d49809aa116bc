// user_repository.go implements UserRepository: profile reads and edits for
// accounts provisioned by the external auth service.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tenantry/tenantry/internal/db/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, name, username, display_username, two_factor_enabled, onboarding_complete, created_at, updated_at`

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	err := r.db.GetContext(ctx, user, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by exact email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := r.db.GetContext(ctx, user, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of upd. Empty strings clear the
// nullable username and display_username columns.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) error {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Username != nil {
		add("username", nullIfEmpty(*upd.Username))
	}
	if upd.DisplayUsername != nil {
		add("display_username", nullIfEmpty(*upd.DisplayUsername))
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now())

	args = append(args, userID)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
