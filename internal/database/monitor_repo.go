package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vigilops/vigil/internal/model"
)

// ErrMonitorNotFound is returned when a monitor id resolves to no document.
// Workers treat it as a skip condition, not a failure: the monitor may have been
// deleted between enqueue and dequeue.
var ErrMonitorNotFound = errors.New("monitor not found")

// MonitorRepository reads monitor configurations. The scheduler only ever reads
// from this collection; writes belong to the configuration store.
type MonitorRepository struct {
	collection *mongo.Collection
}

// NewMonitorRepository creates a new monitor repository
func NewMonitorRepository(db *MongoDB) *MonitorRepository {
	return &MonitorRepository{
		collection: db.GetCollection(CollectionMonitors),
	}
}

// FindActive returns all monitors with the active flag set.
func (r *MonitorRepository) FindActive(ctx context.Context) ([]model.Monitor, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.collection.Find(ctxTimeout, bson.M{"active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to find active monitors: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var monitors []model.Monitor
	if err := cursor.All(ctxTimeout, &monitors); err != nil {
		return nil, fmt.Errorf("failed to decode monitors: %w", err)
	}

	return monitors, nil
}

// FindByID retrieves a monitor by its hex id.
func (r *MonitorRepository) FindByID(ctx context.Context, id string) (*model.Monitor, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid monitor id: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var monitor model.Monitor
	err = r.collection.FindOne(ctxTimeout, bson.M{"_id": objID}).Decode(&monitor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMonitorNotFound
		}
		return nil, fmt.Errorf("failed to get monitor: %w", err)
	}

	return &monitor, nil
}
