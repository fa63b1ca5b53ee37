package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vigilops/vigil/internal/model"
)

// QueueRepository is the broker side of the distributed scheduler: a persistent
// job queue shared by all worker processes. All claim operations are single
// atomic FindOneAndUpdate calls, so two workers can never hold the same job.
type QueueRepository struct {
	collection *mongo.Collection
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(db *MongoDB) *QueueRepository {
	return &QueueRepository{
		collection: db.GetCollection(CollectionScheduledJobs),
	}
}

// Enqueue submits a job for a monitor, eligible to run at runAt. Returns true if
// a new job was created, false if a job for this monitor was already outstanding
// (the duplicate collapses into the existing job; the unique monitor_id index
// makes the upsert race-safe across workers).
func (r *QueueRepository) Enqueue(ctx context.Context, monitorID, token string, runAt time.Time) (bool, error) {
	objID, err := primitive.ObjectIDFromHex(monitorID)
	if err != nil {
		return false, fmt.Errorf("invalid monitor id: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{"monitor_id": objID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"monitor_id": objID,
			"token":      token,
			"state":      model.JobStatePending,
			"run_at":     runAt.UTC(),
			"attempt":    0,
			"created_at": now,
		},
	}

	result, err := r.collection.UpdateOne(ctxTimeout, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// A concurrent enqueue for the same monitor can still trip the unique
		// index between the filter evaluation and the insert. That is the
		// collapse case, not a failure.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to enqueue job: %w", err)
	}

	created := result.UpsertedCount > 0
	if created {
		slog.Debug("Job enqueued",
			"monitor_id", monitorID,
			"token", token,
			"run_at", runAt.UTC().Format(time.RFC3339),
		)
	}

	return created, nil
}

// ClaimDue atomically claims one due job for the given worker. A job is due when
// it is pending and its run_at has passed, or when it is active but its claim
// expired (the owning worker crashed mid-check). Returns nil when nothing is due.
func (r *QueueRepository) ClaimDue(ctx context.Context, workerID string, visibility time.Duration) (*model.ScheduledJob, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{
		"$or": []bson.M{
			{"state": model.JobStatePending, "run_at": bson.M{"$lte": now}},
			{"state": model.JobStateActive, "claim_expires": bson.M{"$lt": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"state":         model.JobStateActive,
			"claimed_by":    workerID,
			"claim_expires": now.Add(visibility),
		},
		"$inc": bson.M{"attempt": 1},
	}

	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "run_at", Value: 1}}).
		SetReturnDocument(options.After)

	var job model.ScheduledJob
	err := r.collection.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	slog.Debug("Job claimed",
		"monitor_id", job.MonitorID.Hex(),
		"worker_id", workerID,
		"attempt", job.Attempt,
	)

	return &job, nil
}

// Complete removes a finished job from the queue. Returns whether the job
// document still existed: a stop issued while the check was running removes the
// active job, and the worker must not schedule a follow-up in that case. The
// next-interval job is enqueued separately by the worker after the result is
// persisted.
func (r *QueueRepository) Complete(ctx context.Context, jobID primitive.ObjectID) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteOne(ctxTimeout, bson.M{"_id": jobID})
	if err != nil {
		return false, fmt.Errorf("failed to complete job: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// Fail releases a claimed job back to pending after the given backoff delay, or
// removes it once maxAttempts is exhausted. Returns true when the job was
// abandoned so the caller can still schedule the next regular-interval job.
func (r *QueueRepository) Fail(ctx context.Context, job *model.ScheduledJob, delay time.Duration, maxAttempts int) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if job.Attempt >= maxAttempts {
		result, err := r.collection.DeleteOne(ctxTimeout, bson.M{"_id": job.ID})
		if err != nil {
			return false, fmt.Errorf("failed to abandon job: %w", err)
		}
		if result.DeletedCount == 0 {
			// The job was already removed by a stop; the monitor must not be
			// rescheduled.
			return false, nil
		}
		slog.Warn("Job abandoned after exhausting retries",
			"monitor_id", job.MonitorID.Hex(),
			"attempts", job.Attempt,
		)
		return true, nil
	}

	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"state":  model.JobStatePending,
			"run_at": now.Add(delay),
		},
		"$unset": bson.M{
			"claimed_by":    "",
			"claim_expires": "",
		},
	}

	if _, err := r.collection.UpdateOne(ctxTimeout, bson.M{"_id": job.ID}, update); err != nil {
		return false, fmt.Errorf("failed to release job for retry: %w", err)
	}

	slog.Debug("Job released for retry",
		"monitor_id", job.MonitorID.Hex(),
		"attempt", job.Attempt,
		"delay_ms", delay.Milliseconds(),
	)

	return false, nil
}

// RemoveByMonitor deletes every pending or delayed job referencing the monitor.
// Safe to call for a monitor with no jobs (idempotent stop).
func (r *QueueRepository) RemoveByMonitor(ctx context.Context, monitorID string) (int64, error) {
	objID, err := primitive.ObjectIDFromHex(monitorID)
	if err != nil {
		return 0, fmt.Errorf("invalid monitor id: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{"monitor_id": objID})
	if err != nil {
		return 0, fmt.Errorf("failed to remove jobs for monitor: %w", err)
	}

	return result.DeletedCount, nil
}

// Purge removes every job in the queue. This is the full reset performed at
// process-wide startup; it must never run during steady-state operation since it
// would cancel in-flight checks claimed by other workers.
func (r *QueueRepository) Purge(ctx context.Context) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to purge queue: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Info("Purged stale jobs at startup", "count", result.DeletedCount)
	}

	return result.DeletedCount, nil
}

// Depths reports queue depth by state for the stats endpoint.
func (r *QueueRepository) Depths(ctx context.Context) (model.QueueDepths, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	var depths model.QueueDepths
	var err error

	depths.Waiting, err = r.collection.CountDocuments(ctxTimeout, bson.M{
		"state":  model.JobStatePending,
		"run_at": bson.M{"$lte": now},
	})
	if err != nil {
		return depths, fmt.Errorf("failed to count waiting jobs: %w", err)
	}

	depths.Delayed, err = r.collection.CountDocuments(ctxTimeout, bson.M{
		"state":  model.JobStatePending,
		"run_at": bson.M{"$gt": now},
	})
	if err != nil {
		return depths, fmt.Errorf("failed to count delayed jobs: %w", err)
	}

	depths.Active, err = r.collection.CountDocuments(ctxTimeout, bson.M{
		"state": model.JobStateActive,
	})
	if err != nil {
		return depths, fmt.Errorf("failed to count active jobs: %w", err)
	}

	return depths, nil
}
