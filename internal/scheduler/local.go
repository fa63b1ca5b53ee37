package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vigilops/vigil/internal/database"
)

// Per-monitor scheduling states. Transitions: Stopped -> Scheduled -> Running ->
// Scheduled -> ..., terminal Stopped on explicit stop or deactivation.
type monitorState int

const (
	stateScheduled monitorState = iota
	stateRunning
)

type localEntry struct {
	state   monitorState
	timer   *time.Timer
	stopped bool // set by StopMonitor; suppresses rescheduling of an in-flight run
}

// LocalScheduler runs entirely in one process: one timer per active monitor,
// each independently rescheduled after its check completes. Timers for different
// monitors are independent; for a single monitor checks are strictly sequential
// because the next timer is only armed after the current run finishes.
type LocalScheduler struct {
	store MonitorStore
	sink  ResultSink
	exec  Executor

	mu      sync.Mutex
	entries map[string]*localEntry
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewLocalScheduler creates a local scheduler
func NewLocalScheduler(store MonitorStore, exec Executor, sink ResultSink) *LocalScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalScheduler{
		store:   store,
		sink:    sink,
		exec:    exec,
		entries: make(map[string]*localEntry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// StartAll schedules every active monitor with a jittered first run.
func (s *LocalScheduler) StartAll(ctx context.Context) error {
	monitors, err := s.store.FindActive(ctx)
	if err != nil {
		return err
	}

	for _, monitor := range monitors {
		s.schedule(monitor.ID.Hex(), Jitter(FirstRunJitterMax))
	}

	slog.Info("Local scheduler started", "monitors", len(monitors))
	return nil
}

// StartMonitor schedules one monitor without touching the others. Idempotent: a
// monitor that is already scheduled or running is left alone.
func (s *LocalScheduler) StartMonitor(ctx context.Context, id string) error {
	s.mu.Lock()
	_, exists := s.entries[id]
	s.mu.Unlock()
	if exists {
		return nil
	}

	s.schedule(id, Jitter(FirstRunJitterMax))
	return nil
}

// StopMonitor cancels the monitor's pending timer. A monitor currently running
// finishes its in-flight check (the result is still recorded) but is not
// rescheduled afterwards. Idempotent.
func (s *LocalScheduler) StopMonitor(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[id]
	if !exists {
		return nil
	}

	entry.stopped = true
	if entry.state == stateScheduled && entry.timer != nil {
		entry.timer.Stop()
		delete(s.entries, id)
	}
	// A running entry is removed by the run itself when it observes stopped.

	slog.Info("Monitor stopped", "monitor_id", id)
	return nil
}

// ActiveCount returns the number of monitors currently scheduled or running.
func (s *LocalScheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Shutdown cancels all timers and waits for in-flight checks, bounded by ctx.
func (s *LocalScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for id, entry := range s.entries {
		entry.stopped = true
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(s.entries, id)
	}
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Local scheduler stopped")
		return nil
	case <-ctx.Done():
		slog.Warn("Timeout waiting for in-flight checks during shutdown")
		return ctx.Err()
	}
}

// schedule arms the timer for a monitor's next run.
func (s *LocalScheduler) schedule(id string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[id]
	if entry == nil {
		entry = &localEntry{}
		s.entries[id] = entry
	}
	if entry.stopped {
		return
	}

	entry.state = stateScheduled
	entry.timer = time.AfterFunc(delay, func() { s.fire(id) })
}

// fire runs one check cycle for a monitor and reschedules it.
func (s *LocalScheduler) fire(id string) {
	s.mu.Lock()
	entry, exists := s.entries[id]
	if !exists || entry.stopped {
		s.mu.Unlock()
		return
	}
	entry.state = stateRunning
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	// Re-fetch the configuration so edits take effect on the very next check.
	monitor, err := s.store.FindByID(s.ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrMonitorNotFound) {
			slog.Info("Monitor deleted, stopping schedule", "monitor_id", id)
			s.remove(id)
			return
		}
		slog.Error("Failed to fetch monitor, retrying next interval",
			"monitor_id", id,
			"error", err,
		)
		// Without the configuration the interval is unknown; retry on backoff.
		s.schedule(id, RetryBackoff(1))
		return
	}

	if !monitor.Active {
		slog.Info("Monitor deactivated, stopping schedule", "monitor_id", id)
		s.remove(id)
		return
	}

	correlationID := uuid.New().String()
	start := time.Now()

	// Executor failures are converted into down results at its boundary; the
	// classification error is only logged here since local mode has no broker
	// retry.
	result, execErr := s.exec.Execute(s.ctx, monitor, correlationID)
	if execErr != nil {
		slog.Warn("Check failed",
			"monitor_id", id,
			"monitor_name", monitor.Name,
			"correlation_id", correlationID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", execErr,
		)
	}

	if result != nil {
		if err := s.sink.Save(s.ctx, result); err != nil {
			slog.Error("Failed to save check result",
				"monitor_id", id,
				"correlation_id", correlationID,
				"error", err,
			)
		}
	}

	// Reschedule unless stopped while running. A failed check still gets a
	// next-interval run; failures never halt the schedule.
	s.mu.Lock()
	if entry.stopped {
		delete(s.entries, id)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.schedule(id, NextDelay(monitor, false))
}

func (s *LocalScheduler) remove(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}
