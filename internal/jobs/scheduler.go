// Package jobs contains the background jobs (invitation purge, token expiry warnings) and the
// cron scheduler that runs them. Each job is a plain Run(ctx) so tests can call it directly.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules. A job still running when its next
// tick fires is skipped for that tick; a panicking job is recovered and logged.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	names  []string
}

// NewScheduler creates an idle scheduler. Schedules accept the standard five
// field syntax plus descriptors such as @daily and @every 6h.
func NewScheduler() *Scheduler {
	logger := slogCronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job under spec.
func (s *Scheduler) Add(spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { runJob(s.ctx, job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, job.Name(), err)
	}
	s.mu.Lock()
	s.names = append(s.names, job.Name())
	s.mu.Unlock()
	return nil
}

// Jobs returns the names of the registered jobs in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("job scheduler started", "jobs", s.Jobs())
}

// Stop cancels running jobs and waits for them to return, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		slog.Info("job scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job scheduler did not stop: %w", ctx.Err())
	}
}

// runJob runs job once and logs its outcome.
func runJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		slog.Error("job failed", "job", job.Name(), "duration", time.Since(start), "error", err)
		return
	}
	slog.Debug("job finished", "job", job.Name(), "duration", time.Since(start))
}

// slogCronLogger adapts cron's logger interface to slog.
type slogCronLogger struct{}

func (slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
