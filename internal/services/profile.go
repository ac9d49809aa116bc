package services

import (
	"context"
	"errors"
	"strings"

	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/db/repositories"
)

var errUserNotFound = apperr.New(apperr.NotFound, "User not found")

// ProfileService reads and edits the caller's own profile.
type ProfileService struct {
	users    *repositories.UserRepository
	recorder ActivityRecorder
}

// NewProfileService creates the service.
func NewProfileService(users *repositories.UserRepository, recorder ActivityRecorder) *ProfileService {
	return &ProfileService{users: users, recorder: recorder}
}

// Get returns the caller's profile.
func (s *ProfileService) Get(ctx context.Context, p auth.Principal) (*models.User, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errUserNotFound
	}
	return user, nil
}

// Update applies upd and returns the refreshed profile. Name must not be blank
// when given; an empty username or display username clears it.
func (s *ProfileService) Update(ctx context.Context, p auth.Principal, upd models.ProfileUpdate) (*models.User, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	if upd.IsEmpty() {
		return nil, apperr.New(apperr.InvalidInput, "Nothing to update")
	}

	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	upd.Name, upd.Username, upd.DisplayUsername = trim(upd.Name), trim(upd.Username), trim(upd.DisplayUsername)
	if upd.Name != nil && *upd.Name == "" {
		return nil, apperr.New(apperr.InvalidInput, "Name cannot be empty")
	}

	if err := s.users.UpdateProfile(ctx, p.UserID, upd); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUsernameTaken):
			return nil, apperr.New(apperr.Conflict, "Username is already taken")
		case errors.Is(err, repositories.ErrNotFound):
			return nil, errUserNotFound
		}
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      p.UserID,
		Type:        audit.TypeProfileUpdated,
		Description: "Updated profile",
	})
	return s.Get(ctx, p)
}
