package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates all required indexes.
//
// The unique index on scheduled_jobs.monitor_id is load-bearing: it is what
// guarantees at most one outstanding job per monitor across all workers. Enqueue
// relies on it to collapse duplicate submissions into the existing job.
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	jobIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "monitor_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "state", Value: 1}, {Key: "run_at", Value: 1}},
		},
	}
	if _, err := db.GetCollection(CollectionScheduledJobs).Indexes().CreateMany(idxCtx, jobIndexes); err != nil {
		return fmt.Errorf("failed to create scheduled_jobs indexes: %w", err)
	}

	monitorIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "active", Value: 1}},
		},
	}
	if _, err := db.GetCollection(CollectionMonitors).Indexes().CreateMany(idxCtx, monitorIndexes); err != nil {
		return fmt.Errorf("failed to create monitors indexes: %w", err)
	}

	resultIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "monitor_id", Value: 1}, {Key: "checked_at", Value: -1}},
		},
	}
	if _, err := db.GetCollection(CollectionCheckResults).Indexes().CreateMany(idxCtx, resultIndexes); err != nil {
		return fmt.Errorf("failed to create check_results indexes: %w", err)
	}

	slog.Info("Database indexes created")
	return nil
}
