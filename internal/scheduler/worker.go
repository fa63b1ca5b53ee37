package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vigilops/vigil/internal/database"
	"github.com/vigilops/vigil/internal/executor"
	"github.com/vigilops/vigil/internal/model"
)

const (
	// claimVisibility is how long a claimed job stays invisible to other
	// workers. A worker that crashes mid-check loses its claim after this, and
	// the broker re-delivers the job, so the monitor never loses its place in
	// the schedule.
	claimVisibility = 5 * time.Minute

	// pollInterval is how long an idle worker sleeps between claim attempts.
	pollInterval = time.Second
)

// Pool is a set of worker goroutines pulling jobs from the broker. Concurrency
// is bounded by the pool size; outbound check traffic is additionally bounded by
// a rate window shared across all workers in the process, so deploying more
// workers does not multiply the burst hitting downstream targets.
type Pool struct {
	queue   Queue
	store   MonitorStore
	sink    ResultSink
	exec    Executor
	workers int
	limiter *rate.Limiter

	workerID string
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool creates a worker pool. maxJobs/window define the shared rate window.
func NewPool(queue Queue, store MonitorStore, exec Executor, sink ResultSink, workers, maxJobs int, window time.Duration) *Pool {
	// Worker identifier (hostname in Kubernetes)
	workerID, err := os.Hostname()
	if err != nil {
		workerID = uuid.New().String()
		slog.Warn("Failed to get hostname, using UUID as worker ID", "worker_id", workerID)
	}

	return &Pool{
		queue:    queue,
		store:    store,
		sink:     sink,
		exec:     exec,
		workers:  workers,
		limiter:  rate.NewLimiter(rate.Limit(float64(maxJobs)/window.Seconds()), maxJobs),
		workerID: workerID,
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	slog.Info("Starting worker pool",
		"worker_id", p.workerID,
		"workers", p.workers,
		"rate_limit", p.limiter.Limit(),
	)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop drains the pool, waiting for in-flight checks bounded by ctx.
func (p *Pool) Stop(ctx context.Context) {
	slog.Info("Stopping worker pool", "worker_id", p.workerID)

	p.stopOnce.Do(func() { close(p.stopChan) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped")
	case <-ctx.Done():
		slog.Warn("Timeout waiting for workers to finish")
	}
}

// worker is the claim loop for one goroutine.
func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	slog.Debug("Worker started", "worker", id)

	for {
		select {
		case <-p.stopChan:
			slog.Debug("Worker stopped", "worker", id)
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.ClaimDue(ctx, p.workerID, claimVisibility)
		if err != nil {
			slog.Error("Failed to claim job", "worker", id, "error", err)
			p.sleep(pollInterval)
			continue
		}
		if job == nil {
			p.sleep(pollInterval)
			continue
		}

		// The rate window gates executed jobs, never idle polls: this is what
		// caps outbound check traffic across the whole pool without idle
		// workers draining the window.
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		p.process(ctx, job)
	}
}

func (p *Pool) sleep(d time.Duration) {
	select {
	case <-p.stopChan:
	case <-time.After(d):
	}
}

// process executes one claimed job and schedules the monitor's next check.
func (p *Pool) process(ctx context.Context, job *model.ScheduledJob) {
	monitorID := job.MonitorID.Hex()

	// Re-fetch the configuration at execution time, not enqueue time, so edits
	// take effect on the very next check without a queue flush.
	monitor, err := p.store.FindByID(ctx, monitorID)
	if err != nil {
		if errors.Is(err, database.ErrMonitorNotFound) {
			// Deleted between enqueue and dequeue: skip, not an error.
			slog.Info("Monitor no longer exists, dropping job", "monitor_id", monitorID)
			p.complete(ctx, job)
			return
		}
		slog.Error("Failed to fetch monitor for job", "monitor_id", monitorID, "error", err)
		if _, ferr := p.queue.Fail(ctx, job, RetryBackoff(job.Attempt), MaxAttempts); ferr != nil {
			slog.Error("Failed to release job", "monitor_id", monitorID, "error", ferr)
		}
		return
	}

	if !monitor.Active {
		slog.Info("Monitor deactivated, dropping job", "monitor_id", monitorID)
		p.complete(ctx, job)
		return
	}

	correlationID := uuid.New().String()
	start := time.Now()

	// Bound the check by the claim visibility so a hung check cannot hold a
	// worker slot past the point where the broker re-delivers the job.
	checkCtx, cancel := context.WithTimeout(ctx, claimVisibility)
	result, execErr := p.exec.Execute(checkCtx, monitor, correlationID)
	cancel()

	if result != nil {
		if err := p.sink.Save(ctx, result); err != nil {
			slog.Error("Failed to save check result",
				"monitor_id", monitorID,
				"correlation_id", correlationID,
				"error", err,
			)
		}
	}

	duration := time.Since(start)

	switch {
	case execErr == nil:
		slog.Info("Check completed",
			"monitor_id", monitorID,
			"monitor_name", monitor.Name,
			"correlation_id", correlationID,
			"status", result.Status,
			"duration_ms", duration.Milliseconds(),
		)
		// The job vanishing mid-run means the monitor was stopped during the
		// check; its result is recorded but it must not come back on the
		// schedule.
		if p.complete(ctx, job) {
			p.enqueueNext(ctx, monitor)
		}

	case executor.IsConfig(execErr):
		// Misconfiguration never succeeds on retry; surface it and move on to
		// the regular cadence so the monitor keeps reporting down.
		slog.Error("Check misconfigured",
			"monitor_id", monitorID,
			"monitor_name", monitor.Name,
			"correlation_id", correlationID,
			"error", execErr,
		)
		if p.complete(ctx, job) {
			p.enqueueNext(ctx, monitor)
		}

	default:
		slog.Warn("Check failed, leaving job for broker retry",
			"monitor_id", monitorID,
			"monitor_name", monitor.Name,
			"correlation_id", correlationID,
			"attempt", job.Attempt,
			"duration_ms", duration.Milliseconds(),
			"error", execErr,
		)
		abandoned, ferr := p.queue.Fail(ctx, job, RetryBackoff(job.Attempt), MaxAttempts)
		if ferr != nil {
			slog.Error("Failed to release job for retry", "monitor_id", monitorID, "error", ferr)
			return
		}
		if abandoned {
			// Retries exhausted: the job is gone, but the next regular-interval
			// job is still created.
			p.enqueueNext(ctx, monitor)
		}
	}
}

// complete removes the claimed job, reporting whether it still existed. On a
// broker error the claim simply expires and the job is re-delivered, so false is
// the safe answer either way.
func (p *Pool) complete(ctx context.Context, job *model.ScheduledJob) bool {
	existed, err := p.queue.Complete(ctx, job.ID)
	if err != nil {
		slog.Error("Failed to complete job", "monitor_id", job.MonitorID.Hex(), "error", err)
		return false
	}
	return existed
}

func (p *Pool) enqueueNext(ctx context.Context, monitor *model.Monitor) {
	runAt := time.Now().UTC().Add(NextDelay(monitor, false))
	if _, err := p.queue.Enqueue(ctx, monitor.ID.Hex(), uuid.New().String(), runAt); err != nil {
		slog.Error("Failed to enqueue next check",
			"monitor_id", monitor.ID.Hex(),
			"error", err,
		)
	}
}
