package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilops/vigil/internal/model"
)

func TestLocalFireRunsCheckAndReschedules(t *testing.T) {
	monitor := testMonitor(60)
	store := newFakeStore(monitor)
	sink := &fakeSink{}
	exec := &fakeExec{}
	s := NewLocalScheduler(store, exec, sink)

	id := monitor.ID.Hex()
	s.entries[id] = &localEntry{}
	s.fire(id)

	assert.Equal(t, 1, exec.callCount())
	require.Len(t, sink.saved(), 1)
	assert.Equal(t, model.StatusUp, sink.saved()[0].Status)

	s.mu.Lock()
	entry := s.entries[id]
	s.mu.Unlock()
	require.NotNil(t, entry, "monitor must be rescheduled after a run")
	assert.Equal(t, stateScheduled, entry.state)
	assert.NotNil(t, entry.timer)

	entry.timer.Stop()
}

func TestLocalFailedCheckStillReschedules(t *testing.T) {
	monitor := testMonitor(60)
	store := newFakeStore(monitor)
	sink := &fakeSink{}
	exec := &fakeExec{err: errors.New("navigation timeout")}
	s := NewLocalScheduler(store, exec, sink)

	id := monitor.ID.Hex()
	s.entries[id] = &localEntry{}
	s.fire(id)

	// The failure is recorded as a down result and never halts the schedule.
	require.Len(t, sink.saved(), 1)
	assert.Equal(t, model.StatusDown, sink.saved()[0].Status)

	s.mu.Lock()
	entry := s.entries[id]
	s.mu.Unlock()
	require.NotNil(t, entry)
	assert.Equal(t, stateScheduled, entry.state)

	entry.timer.Stop()
}

func TestLocalDeactivatedMonitorStopsScheduling(t *testing.T) {
	monitor := testMonitor(60)
	monitor.Active = false
	store := newFakeStore(monitor)
	sink := &fakeSink{}
	exec := &fakeExec{}
	s := NewLocalScheduler(store, exec, sink)

	id := monitor.ID.Hex()
	s.entries[id] = &localEntry{}
	s.fire(id)

	assert.Equal(t, 0, exec.callCount())
	assert.Equal(t, 0, s.ActiveCount())
}

func TestLocalDeletedMonitorStopsScheduling(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	exec := &fakeExec{}
	s := NewLocalScheduler(store, exec, sink)

	monitor := testMonitor(60)
	id := monitor.ID.Hex()
	s.entries[id] = &localEntry{}
	s.fire(id)

	assert.Equal(t, 0, exec.callCount())
	assert.Equal(t, 0, s.ActiveCount())
}

func TestLocalStoppedEntryDoesNotRun(t *testing.T) {
	monitor := testMonitor(60)
	store := newFakeStore(monitor)
	sink := &fakeSink{}
	exec := &fakeExec{}
	s := NewLocalScheduler(store, exec, sink)

	id := monitor.ID.Hex()
	s.entries[id] = &localEntry{stopped: true}
	s.fire(id)

	assert.Equal(t, 0, exec.callCount())
	assert.Empty(t, sink.saved())
}

func TestLocalStopWhileRunningSuppressesReschedule(t *testing.T) {
	monitor := testMonitor(60)
	store := newFakeStore(monitor)
	sink := &fakeSink{}
	exec := &fakeExec{}
	s := NewLocalScheduler(store, exec, sink)

	id := monitor.ID.Hex()
	exec.onExecute = func() {
		require.NoError(t, s.StopMonitor(context.Background(), id))
	}

	s.entries[id] = &localEntry{}
	s.fire(id)

	// The in-flight check finishes and its result is still recorded.
	assert.Equal(t, 1, exec.callCount())
	require.Len(t, sink.saved(), 1)

	// But the entry is gone and no timer was armed for a next run.
	assert.Equal(t, 0, s.ActiveCount())
}

func TestLocalStopMonitorIdempotent(t *testing.T) {
	monitor := testMonitor(60)
	store := newFakeStore(monitor)
	s := NewLocalScheduler(store, &fakeExec{}, &fakeSink{})
	ctx := context.Background()

	require.NoError(t, s.StartMonitor(ctx, monitor.ID.Hex()))
	assert.Equal(t, 1, s.ActiveCount())

	require.NoError(t, s.StopMonitor(ctx, monitor.ID.Hex()))
	require.NoError(t, s.StopMonitor(ctx, monitor.ID.Hex()))
	assert.Equal(t, 0, s.ActiveCount())
}

func TestLocalStartMonitorIdempotent(t *testing.T) {
	monitor := testMonitor(60)
	store := newFakeStore(monitor)
	s := NewLocalScheduler(store, &fakeExec{}, &fakeSink{})
	ctx := context.Background()

	require.NoError(t, s.StartMonitor(ctx, monitor.ID.Hex()))
	require.NoError(t, s.StartMonitor(ctx, monitor.ID.Hex()))

	// One timer per monitor, never two.
	assert.Equal(t, 1, s.ActiveCount())

	require.NoError(t, s.StopMonitor(ctx, monitor.ID.Hex()))
}

func TestLocalStartAllSchedulesActiveMonitors(t *testing.T) {
	m1 := testMonitor(60)
	m2 := testMonitor(30)
	inactive := testMonitor(60)
	inactive.Active = false
	store := newFakeStore(m1, m2, inactive)
	s := NewLocalScheduler(store, &fakeExec{}, &fakeSink{})

	require.NoError(t, s.StartAll(context.Background()))
	assert.Equal(t, 2, s.ActiveCount())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = s.Shutdown(ctx)
}
