package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/safego"
	"github.com/tenantry/tenantry/internal/telemetry"
)

// Activity types
const (
	TypeOrgCreated         = "org.created"
	TypeInvitationCreated  = "org.invitation.created"
	TypeInvitationRevoked  = "org.invitation.revoked"
	TypeInvitationAccepted = "org.invitation.accepted"
	TypeMemberRoleChanged  = "org.member.role_changed"
	TypeMemberRemoved      = "org.member.removed"
	TypeProjectCreated     = "project.created"
	TypeProjectUpdated     = "project.updated"
	TypeAPITokenCreated    = "api_token.created"
	TypeAPITokenRevoked    = "api_token.revoked"
	TypeProfileUpdated     = "user.profile.updated"
	TypeContactSubmitted   = "contact.submitted"
	TypeAccessDenied       = "access.denied"
)

const (
	defaultRecordTimeout    = 5 * time.Second
	defaultActivityFeedSize = 10
)

// Entry is one activity to record. OrgID and Description are optional.
type Entry struct {
	UserID      string
	OrgID       string
	Type        string
	Description string
}

// ActivityStore persists and reads activity rows
type ActivityStore interface {
	Create(ctx context.Context, a *models.Activity) error
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.Activity, error)
}

// Recorder writes activity entries in the background after the mutation that
// produced them has committed. A failed write is logged and counted, never
// returned to the caller.
type Recorder struct {
	store   ActivityStore
	shipper Shipper
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRecorder creates a recorder. shipper may be nil.
func NewRecorder(store ActivityStore, shipper Shipper) *Recorder {
	return &Recorder{store: store, shipper: shipper, timeout: defaultRecordTimeout}
}

// Record schedules e for writing and returns immediately. The write runs with
// its own timeout and survives cancellation of ctx.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	safego.Go(func() {
		defer r.wg.Done()
		wctx, cancel := context.WithTimeout(bg, r.timeout)
		defer cancel()
		if err := r.Write(wctx, e); err != nil {
			telemetry.ActivityRecordFailuresTotal.Inc()
			slog.Error("failed to record activity", "type", e.Type, "user_id", e.UserID, "error", err)
		}
	})
}

// Write persists e and ships it synchronously. Shipping errors are logged only.
func (r *Recorder) Write(ctx context.Context, e Entry) error {
	a := &models.Activity{
		ID:        uuid.NewString(),
		UserID:    e.UserID,
		Type:      e.Type,
		CreatedAt: time.Now(),
	}
	if e.OrgID != "" {
		orgID := e.OrgID
		a.OrganizationID = &orgID
	}
	if e.Description != "" {
		desc := e.Description
		a.Description = &desc
	}

	if err := r.store.Create(ctx, a); err != nil {
		return err
	}

	if r.shipper != nil {
		// errors already logged per shipper
		_ = r.shipper.Ship(ctx, &LogEntry{
			ID:             a.ID,
			Timestamp:      a.CreatedAt,
			Type:           e.Type,
			UserID:         e.UserID,
			OrganizationID: e.OrgID,
			Description:    e.Description,
		})
	}
	return nil
}

// Publish ships an entry that has no activity row, such as a contact
// submission. Runs in the background like Record.
func (r *Recorder) Publish(ctx context.Context, entry *LogEntry) {
	if r.shipper == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	safego.Go(func() {
		defer r.wg.Done()
		sctx, cancel := context.WithTimeout(bg, r.timeout)
		defer cancel()
		_ = r.shipper.Ship(sctx, entry)
	})
}

// List returns the user's most recent activity, newest first.
func (r *Recorder) List(ctx context.Context, userID string) ([]*models.Activity, error) {
	return r.store.ListRecentByUser(ctx, userID, defaultActivityFeedSize)
}

// Wait blocks until every scheduled write has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
