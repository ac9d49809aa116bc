package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_Add(t *testing.T) {
	s := NewScheduler()

	require.NoError(t, s.Add("@every 6h", &countingJob{name: "purge"}))
	require.NoError(t, s.Add("0 3 * * *", &countingJob{name: "expiry"}))

	err := s.Add("every tuesday", &countingJob{name: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid schedule "every tuesday" for job bad`)

	assert.Equal(t, []string{"purge", "expiry"}, s.Jobs())
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Add("@daily", &countingJob{name: "daily"}))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestRunJob(t *testing.T) {
	ok := &countingJob{name: "ok"}
	runJob(context.Background(), ok)
	assert.Equal(t, int32(1), ok.runs.Load())

	failing := &countingJob{name: "failing", err: errors.New("boom")}
	runJob(context.Background(), failing)
	assert.Equal(t, int32(1), failing.runs.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	skipped := &countingJob{name: "skipped"}
	runJob(ctx, skipped)
	assert.Equal(t, int32(0), skipped.runs.Load(), "cancelled scheduler must not start jobs")
}
