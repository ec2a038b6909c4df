package orchestration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mfgplan/pkg/application/services/orchestration"
	"github.com/vsinha/mfgplan/pkg/infrastructure/events"
	"github.com/vsinha/mfgplan/pkg/infrastructure/locking"
)

func TestRunner_RunsJobAndReleasesScope(t *testing.T) {
	ctx := context.Background()
	locker := locking.NewLocalLocker()
	runner := orchestration.NewRunner(locker, time.Minute, nil, nil)

	calls := 0
	job := func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}
	require.NoError(t, runner.Run(ctx, "mrp:2025-06", job))
	require.NoError(t, runner.Run(ctx, "mrp:2025-06", job))
	assert.Equal(t, 2, calls)
}

func TestRunner_BusyScope(t *testing.T) {
	ctx := context.Background()
	locker := locking.NewLocalLocker()
	runner := orchestration.NewRunner(locker, time.Minute, nil, nil)

	held, err := locker.Obtain(ctx, "plan:H1", time.Minute)
	require.NoError(t, err)

	ran := false
	err = runner.Run(ctx, "plan:H1", func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, orchestration.ErrScopeBusy)
	assert.False(t, ran)

	// other scopes are unaffected
	require.NoError(t, runner.Run(ctx, "plan:H2", func(context.Context) error { return nil }))

	require.NoError(t, held.Release(ctx))
	require.NoError(t, runner.Run(ctx, "plan:H1", func(context.Context) error { return nil }))
}

func TestRunner_TimeoutPublishesJobFailed(t *testing.T) {
	ctx := context.Background()
	store := events.NewInMemoryEventStore(nil)
	locker := locking.NewLocalLocker()
	runner := orchestration.NewRunner(locker, 20*time.Millisecond, store, nil)

	err := runner.Run(ctx, "mrp:2025-06", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	published, err := store.ReadEvents("mrp:2025-06", 0)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, events.JobFailedEvent, published[0].Type())
	failed, ok := published[0].Data().(events.JobFailed)
	require.True(t, ok)
	assert.Equal(t, "mrp:2025-06", failed.Scope)
	assert.Contains(t, failed.Error, "exceeded")

	// the scope is free again after a failed job
	lock, err := locker.Obtain(ctx, "mrp:2025-06", time.Minute)
	require.NoError(t, err)
	require.NoError(t, lock.Release(ctx))
}

func TestRunner_JobErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	runner := orchestration.NewRunner(nil, 0, nil, nil)
	err := runner.Run(context.Background(), "overlay:2025-06:2025-08", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
