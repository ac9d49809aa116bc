package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tenantry/tenantry/internal/telemetry"
)

const defaultRetentionDays = 30

// InvitationPurger deletes invitations that expired before cutoff and were never accepted.
type InvitationPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// InvitationPurgeJob removes stale invitations once they have been expired
// for longer than the retention window.
type InvitationPurgeJob struct {
	invitations InvitationPurger
	retention   time.Duration
	now         func() time.Time
}

// NewInvitationPurgeJob creates the job. retentionDays <= 0 uses 30.
func NewInvitationPurgeJob(invitations InvitationPurger, retentionDays int) *InvitationPurgeJob {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &InvitationPurgeJob{
		invitations: invitations,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
		now:         time.Now,
	}
}

// Name implements Job.
func (j *InvitationPurgeJob) Name() string {
	return "invitation-purge"
}

// Run implements Job.
func (j *InvitationPurgeJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)
	n, err := j.invitations.PurgeExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge expired invitations: %w", err)
	}
	if n > 0 {
		telemetry.InvitationsPurgedTotal.Add(float64(n))
		slog.Info("purged expired invitations", "count", n, "cutoff", cutoff)
	}
	return nil
}
