package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vigilops/vigil/internal/model"
)

// DistributedScheduler submits monitor checks to the shared broker queue and
// runs a worker pool consuming them. The broker is the single source of truth
// for what runs next; this type keeps no per-monitor state.
type DistributedScheduler struct {
	queue Queue
	store MonitorStore
	pool  *Pool
}

// NewDistributedScheduler creates a distributed scheduler
func NewDistributedScheduler(queue Queue, store MonitorStore, pool *Pool) *DistributedScheduler {
	return &DistributedScheduler{
		queue: queue,
		store: store,
		pool:  pool,
	}
}

// StartAll purges stale jobs left from previous runs and enqueues one jittered
// job per active monitor, then starts the worker pool. The purge is a full
// reset, safe only at process-wide startup; during steady state it would cancel
// in-flight checks claimed by other workers.
func (d *DistributedScheduler) StartAll(ctx context.Context) error {
	if _, err := d.queue.Purge(ctx); err != nil {
		return err
	}

	monitors, err := d.store.FindActive(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	enqueued := 0
	for _, monitor := range monitors {
		runAt := now.Add(Jitter(FirstRunJitterMax))
		created, err := d.queue.Enqueue(ctx, monitor.ID.Hex(), uuid.New().String(), runAt)
		if err != nil {
			slog.Error("Failed to enqueue monitor at startup",
				"monitor_id", monitor.ID.Hex(),
				"error", err,
			)
			continue
		}
		if created {
			enqueued++
		}
	}

	slog.Info("Distributed scheduler started",
		"monitors", len(monitors),
		"enqueued", enqueued,
	)

	d.pool.Start(ctx)
	return nil
}

// StartMonitor enqueues one immediate job for the monitor without touching
// others' jobs. A duplicate enqueue collapses into the outstanding job.
func (d *DistributedScheduler) StartMonitor(ctx context.Context, id string) error {
	_, err := d.queue.Enqueue(ctx, id, uuid.New().String(), time.Now().UTC())
	return err
}

// StopMonitor removes every queued job referencing the monitor. Idempotent: a
// monitor with no jobs is a no-op.
func (d *DistributedScheduler) StopMonitor(ctx context.Context, id string) error {
	removed, err := d.queue.RemoveByMonitor(ctx, id)
	if err != nil {
		return err
	}
	if removed > 0 {
		slog.Info("Monitor stopped", "monitor_id", id, "jobs_removed", removed)
	}
	return nil
}

// Depths reports queue depths for stats.
func (d *DistributedScheduler) Depths(ctx context.Context) (model.QueueDepths, error) {
	return d.queue.Depths(ctx)
}

// Shutdown drains the worker pool.
func (d *DistributedScheduler) Shutdown(ctx context.Context) error {
	d.pool.Stop(ctx)
	return nil
}
