package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerLifecycle(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	l, err := New(nil, loc, nil)
	require.NoError(t, err)

	s, err := NewScheduler(l, "", "", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	assert.True(t, s.IsRunning())

	runs := s.NextRuns()
	require.Len(t, runs, 2)
	for _, r := range runs {
		local := r.In(loc)
		assert.Equal(t, 0, local.Hour())
		assert.Equal(t, 0, local.Minute())
	}

	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestSchedulerRestartKeepsTwoJobs(t *testing.T) {
	l, err := New(nil, nil, nil)
	require.NoError(t, err)
	s, err := NewScheduler(l, "", "", nil)
	require.NoError(t, err)

	for range 3 {
		ctx, cancel := context.WithCancel(context.Background())
		s.Start(ctx)
		s.Start(ctx)
		assert.True(t, s.IsRunning())
		assert.Len(t, s.NextRuns(), 2)
		s.Stop()
		assert.False(t, s.IsRunning())
		cancel()
	}
	assert.Len(t, s.cron.Entries(), 2)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	l, err := New(nil, nil, nil)
	require.NoError(t, err)
	s, err := NewScheduler(l, "", "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 5*time.Millisecond)

	// a stale context from an earlier run does not stop a later one
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	s.Start(ctx2)
	cancel()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, s.IsRunning())
	s.Stop()
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	l, err := New(nil, nil, nil)
	require.NoError(t, err)
	_, err = NewScheduler(l, "not a cron", "", nil)
	assert.Error(t, err)
	_, err = NewScheduler(l, "", "every tuesday", nil)
	assert.Error(t, err)
}
