package scheduler

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

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts its runs" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(10*time.Minute), s.Next(now))
	assert.Equal(t, "@every 10m0s", s.String())
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})

	err := s.Register(nil, NewIntervalSchedule(time.Minute))
	assert.ErrorIs(t, err, ErrNilJob)

	job := &countingJob{name: "expire_challenges"}
	err = s.Register(job, nil)
	assert.ErrorIs(t, err, ErrNilSchedule)

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	err = s.Register(job, NewIntervalSchedule(time.Minute))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})

	job := &countingJob{name: "cleanup_notifications"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.RunNow(context.Background(), "cleanup_notifications"))
	assert.Equal(t, int32(1), job.runs.Load())

	err := s.RunNow(context.Background(), "no_such_job")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNowPropagatesJobError(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})

	job := &countingJob{name: "rebuild_leaderboard", err: errors.New("redis down")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	assert.Error(t, s.RunNow(context.Background(), "rebuild_leaderboard"))
}

func TestScheduler_StartStopLifecycle(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	require.NoError(t, s.Register(&countingJob{name: "noop"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
}
