package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilops/vigil/internal/executor"
	"github.com/vigilops/vigil/internal/model"
)

func newTestPool(queue Queue, store MonitorStore, exec Executor, sink ResultSink) *Pool {
	return NewPool(queue, store, exec, sink, 2, 1000, time.Minute)
}

func claimJobFor(t *testing.T, queue *fakeQueue, monitor *model.Monitor) *model.ScheduledJob {
	t.Helper()
	ctx := context.Background()
	created, err := queue.Enqueue(ctx, monitor.ID.Hex(), uuid.New().String(), time.Now().UTC())
	require.NoError(t, err)
	require.True(t, created)
	job, err := queue.ClaimDue(ctx, "test-worker", claimVisibility)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func TestProcessSuccessSchedulesNextInterval(t *testing.T) {
	monitor := testMonitor(60)
	queue := newFakeQueue()
	store := newFakeStore(monitor)
	sink := &fakeSink{}
	pool := newTestPool(queue, store, &fakeExec{}, sink)

	job := claimJobFor(t, queue, monitor)
	before := time.Now().UTC()
	pool.process(context.Background(), job)

	require.Len(t, sink.saved(), 1)
	assert.Equal(t, model.StatusUp, sink.saved()[0].Status)

	// The completed job is replaced by exactly one next-interval job.
	next := queue.job(monitor.ID.Hex())
	require.NotNil(t, next)
	assert.Equal(t, model.JobStatePending, next.State)
	assert.WithinDuration(t, before.Add(monitor.Interval()), next.RunAt, 2*time.Second)
	assert.Equal(t, 1, queue.size())
}

func TestProcessDeletedMonitorSkips(t *testing.T) {
	monitor := testMonitor(60)
	queue := newFakeQueue()
	store := newFakeStore() // monitor not in store
	sink := &fakeSink{}
	exec := &fakeExec{}
	pool := newTestPool(queue, store, exec, sink)

	job := claimJobFor(t, queue, monitor)
	pool.process(context.Background(), job)

	// Skip, not an error: no check, no result, no next job.
	assert.Equal(t, 0, exec.callCount())
	assert.Empty(t, sink.saved())
	assert.Equal(t, 0, queue.size())
}

func TestProcessDeactivatedMonitorSkips(t *testing.T) {
	monitor := testMonitor(60)
	monitor.Active = false
	queue := newFakeQueue()
	store := newFakeStore(monitor)
	exec := &fakeExec{}
	pool := newTestPool(queue, store, exec, &fakeSink{})

	job := claimJobFor(t, queue, monitor)
	pool.process(context.Background(), job)

	assert.Equal(t, 0, exec.callCount())
	assert.Equal(t, 0, queue.size())
}

func TestProcessTransientFailureLeavesJobForRetry(t *testing.T) {
	monitor := testMonitor(60)
	queue := newFakeQueue()
	store := newFakeStore(monitor)
	sink := &fakeSink{}
	exec := &fakeExec{err: executor.Transientf("navigation timeout")}
	pool := newTestPool(queue, store, exec, sink)

	job := claimJobFor(t, queue, monitor)
	pool.process(context.Background(), job)

	// The down result is recorded and the same job goes back to pending with a
	// backoff delay; no second job appears for the monitor.
	require.Len(t, sink.saved(), 1)
	assert.Equal(t, model.StatusDown, sink.saved()[0].Status)

	retried := queue.job(monitor.ID.Hex())
	require.NotNil(t, retried)
	assert.Equal(t, model.JobStatePending, retried.State)
	assert.Equal(t, 1, retried.Attempt)
	assert.Equal(t, 1, queue.size())
}

func TestProcessExhaustedRetriesStillSchedulesNextInterval(t *testing.T) {
	monitor := testMonitor(60)
	queue := newFakeQueue()
	store := newFakeStore(monitor)
	exec := &fakeExec{err: executor.Transientf("browser disconnected")}
	pool := newTestPool(queue, store, exec, &fakeSink{})

	ctx := context.Background()
	job := claimJobFor(t, queue, monitor)
	job.Attempt = MaxAttempts // final attempt
	pool.process(ctx, job)

	// Abandoned, but scheduling continuity survives: a fresh next-interval job
	// exists with its attempt counter reset.
	next := queue.job(monitor.ID.Hex())
	require.NotNil(t, next)
	assert.Equal(t, 0, next.Attempt)
	assert.Equal(t, model.JobStatePending, next.State)
}

func TestProcessConfigErrorDoesNotRetry(t *testing.T) {
	monitor := testMonitor(60)
	queue := newFakeQueue()
	store := newFakeStore(monitor)
	sink := &fakeSink{}
	exec := &fakeExec{err: executor.Configf("disallowed URL scheme")}
	pool := newTestPool(queue, store, exec, sink)

	job := claimJobFor(t, queue, monitor)
	pool.process(context.Background(), job)

	require.Len(t, sink.saved(), 1)
	assert.Equal(t, model.StatusDown, sink.saved()[0].Status)

	// Misconfiguration is never retried; the monitor moves straight to its
	// regular cadence.
	next := queue.job(monitor.ID.Hex())
	require.NotNil(t, next)
	assert.Equal(t, 0, next.Attempt)
}

func TestProcessStopDuringCheckDoesNotReschedule(t *testing.T) {
	monitor := testMonitor(60)
	queue := newFakeQueue()
	store := newFakeStore(monitor)
	sink := &fakeSink{}
	exec := &fakeExec{}
	pool := newTestPool(queue, store, exec, sink)
	d := NewDistributedScheduler(queue, store, pool)

	job := claimJobFor(t, queue, monitor)
	exec.onExecute = func() {
		require.NoError(t, d.StopMonitor(context.Background(), monitor.ID.Hex()))
	}

	pool.process(context.Background(), job)

	// The in-flight check finishes and its result is recorded, but the stopped
	// monitor must not come back on the schedule.
	require.Len(t, sink.saved(), 1)
	assert.Equal(t, 0, queue.size())
}

func TestProcessStopDuringFailedCheckDoesNotReschedule(t *testing.T) {
	monitor := testMonitor(60)
	queue := newFakeQueue()
	store := newFakeStore(monitor)
	exec := &fakeExec{err: executor.Transientf("browser disconnected")}
	pool := newTestPool(queue, store, exec, &fakeSink{})
	d := NewDistributedScheduler(queue, store, pool)

	job := claimJobFor(t, queue, monitor)
	job.Attempt = MaxAttempts // would be abandoned if the job still existed
	exec.onExecute = func() {
		require.NoError(t, d.StopMonitor(context.Background(), monitor.ID.Hex()))
	}

	pool.process(context.Background(), job)

	assert.Equal(t, 0, queue.size())
}

func TestIdlePollingDoesNotConsumeRateWindow(t *testing.T) {
	queue := newFakeQueue()
	store := newFakeStore()
	// Two tokens refilling over an hour: any token spent on an empty poll
	// would be visible below.
	pool := NewPool(queue, store, &fakeExec{}, &fakeSink{}, 2, 2, time.Hour)

	pool.Start(context.Background())
	time.Sleep(50 * time.Millisecond) // each worker polls the empty queue at least once

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pool.Stop(stopCtx)

	assert.Greater(t, pool.limiter.Tokens(), 1.9)
}

func TestAtMostOneOutstandingJobPerMonitor(t *testing.T) {
	monitor := testMonitor(60)
	queue := newFakeQueue()
	ctx := context.Background()

	created, err := queue.Enqueue(ctx, monitor.ID.Hex(), uuid.New().String(), time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, created)

	// A duplicate enqueue collapses into the outstanding job.
	created, err = queue.Enqueue(ctx, monitor.ID.Hex(), uuid.New().String(), time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, queue.size())
}
