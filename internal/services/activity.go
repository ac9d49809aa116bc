package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/db/models"
)

// ActivityFeed reads a user's recent activity.
type ActivityFeed interface {
	List(ctx context.Context, userID string) ([]*models.Activity, error)
}

// Publisher ships an entry that has no activity row.
type Publisher interface {
	Publish(ctx context.Context, entry *audit.LogEntry)
}

// ActivityService serves the activity feed and contact submissions.
type ActivityService struct {
	feed      ActivityFeed
	publisher Publisher
}

// NewActivityService creates the service.
func NewActivityService(feed ActivityFeed, publisher Publisher) *ActivityService {
	return &ActivityService{feed: feed, publisher: publisher}
}

// Recent returns the caller's most recent activity, newest first.
func (s *ActivityService) Recent(ctx context.Context, p auth.Principal) ([]*models.Activity, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	return s.feed.List(ctx, p.UserID)
}

// ContactRequest is a contact form submission. Only Message is required.
type ContactRequest struct {
	Message string `json:"message"`
	Email   string `json:"email"`
	Context string `json:"context"`
}

// SubmitContact logs and ships a contact message. Anonymous callers are allowed.
func (s *ActivityService) SubmitContact(ctx context.Context, p auth.Principal, req ContactRequest) error {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return apperr.New(apperr.InvalidInput, "Message is required")
	}

	metadata := map[string]interface{}{}
	if email := strings.TrimSpace(req.Email); email != "" {
		metadata["email"] = email
	}
	if c := strings.TrimSpace(req.Context); c != "" {
		metadata["context"] = c
	}

	slog.Info("contact submission received", "user_id", p.UserID, "email", metadata["email"], "length", len(message))
	s.publisher.Publish(ctx, &audit.LogEntry{
		Type:        audit.TypeContactSubmitted,
		UserID:      p.UserID,
		Description: message,
		Metadata:    metadata,
	})
	return nil
}
