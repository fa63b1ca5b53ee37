package scheduler

import (
	"context"
	"log/slog"

	"github.com/vigilops/vigil/internal/config"
	"github.com/vigilops/vigil/internal/database"
)

// ResourceCloser releases a shared resource at shutdown (the shared browser
// process, in practice).
type ResourceCloser interface {
	Shutdown(ctx context.Context) error
}

// Facade is the single entry point the rest of the application uses to start and
// stop monitoring. It selects the scheduling substrate at construction time:
// queue mode when enabled and the broker is reachable, traditional mode
// otherwise. A failed queue-mode construction falls back to traditional for the
// remainder of the process lifetime; there is no re-promotion without a restart.
// Callers see identical behavior either way apart from the mode field in stats.
type Facade struct {
	cfg     *config.Config
	mode    string
	local   *LocalScheduler
	dist    *DistributedScheduler
	broker  *database.MongoDB
	closers []ResourceCloser
}

// NewFacade constructs the facade, attempting queue mode first when configured.
func NewFacade(ctx context.Context, cfg *config.Config, store MonitorStore, exec Executor, sink ResultSink, closers ...ResourceCloser) *Facade {
	f := &Facade{
		cfg:     cfg,
		closers: closers,
	}

	if cfg.QueueEnabled {
		dist, broker, err := buildDistributedFn(ctx, cfg, store, exec, sink)
		if err == nil {
			f.mode = ModeQueue
			f.dist = dist
			f.broker = broker
			slog.Info("Scheduling mode selected", "mode", f.mode)
			return f
		}
		// InfrastructureError at startup: caught once, never surfaced to
		// monitor owners. The process degrades to the local substrate.
		slog.Error("Failed to initialize distributed scheduler, falling back to traditional mode",
			"error", err,
		)
	}

	f.mode = ModeTraditional
	f.local = NewLocalScheduler(store, exec, sink)
	slog.Info("Scheduling mode selected", "mode", f.mode)
	return f
}

// buildDistributedFn is swapped out in tests to simulate broker failures.
var buildDistributedFn = buildDistributed

// buildDistributed connects to the broker and assembles the queue-mode stack.
func buildDistributed(ctx context.Context, cfg *config.Config, store MonitorStore, exec Executor, sink ResultSink) (*DistributedScheduler, *database.MongoDB, error) {
	broker, err := database.Connect(ctx, cfg.BrokerConnectionURI(), cfg.BrokerDatabase, cfg.BrokerTimeout)
	if err != nil {
		return nil, nil, err
	}

	if err := database.CreateIndexes(ctx, broker); err != nil {
		_ = broker.Disconnect(ctx)
		return nil, nil, err
	}

	queue := database.NewQueueRepository(broker)
	pool := NewPool(queue, store, exec, sink, cfg.WorkerConcurrency, cfg.RateLimitMaxJobs, cfg.RateLimitWindow)
	return NewDistributedScheduler(queue, store, pool), broker, nil
}

// Mode returns the active scheduling mode.
func (f *Facade) Mode() string {
	return f.mode
}

// StartAllMonitors starts monitoring for every active monitor.
func (f *Facade) StartAllMonitors(ctx context.Context) error {
	if f.mode == ModeQueue {
		return f.dist.StartAll(ctx)
	}
	return f.local.StartAll(ctx)
}

// StartMonitor starts monitoring a single monitor. Idempotent.
func (f *Facade) StartMonitor(ctx context.Context, id string) error {
	if f.mode == ModeQueue {
		return f.dist.StartMonitor(ctx, id)
	}
	return f.local.StartMonitor(ctx, id)
}

// StopMonitor stops future checks for a single monitor. Idempotent; an in-flight
// check is allowed to finish and its result is still recorded.
func (f *Facade) StopMonitor(ctx context.Context, id string) error {
	if f.mode == ModeQueue {
		return f.dist.StopMonitor(ctx, id)
	}
	return f.local.StopMonitor(ctx, id)
}

// GetStats reports the scheduler state for operators.
func (f *Facade) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{Mode: f.mode}

	if f.mode == ModeQueue {
		depths, err := f.dist.Depths(ctx)
		if err != nil {
			return stats, err
		}
		stats.QueueDepths = &depths
		return stats, nil
	}

	stats.ActiveCount = f.local.ActiveCount()
	return stats, nil
}

// HealthCheck reports broker reachability for the operator-facing endpoint.
// disabled: queue mode is off by configuration. unhealthy: queue mode was
// requested but the broker is not serving it, either because the startup fallback fired
// or the broker became unreachable later.
func (f *Facade) HealthCheck(ctx context.Context) Health {
	if !f.cfg.QueueEnabled {
		return Health{Status: HealthDisabled, Mode: f.mode}
	}

	if f.mode != ModeQueue {
		return Health{
			Status: HealthUnhealthy,
			Mode:   f.mode,
			Detail: "queue mode requested but process fell back to traditional scheduling at startup",
		}
	}

	if err := f.broker.Ping(ctx); err != nil {
		return Health{
			Status: HealthUnhealthy,
			Mode:   f.mode,
			Detail: "broker unreachable: " + err.Error(),
		}
	}

	return Health{Status: HealthHealthy, Mode: f.mode}
}

// Shutdown drains in-flight work, releases broker connections and any shared
// resources (the shared browser process).
func (f *Facade) Shutdown(ctx context.Context) error {
	var firstErr error

	if f.mode == ModeQueue {
		if err := f.dist.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := f.broker.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	} else {
		if err := f.local.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, closer := range f.closers {
		if err := closer.Shutdown(ctx); err != nil {
			slog.Error("Failed to release shared resource", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
