package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vigilops/vigil/internal/model"
)

// ResultRepository persists check results for downstream consumers.
type ResultRepository struct {
	collection *mongo.Collection
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *MongoDB) *ResultRepository {
	return &ResultRepository{
		collection: db.GetCollection(CollectionCheckResults),
	}
}

// Save stores a check result.
func (r *ResultRepository) Save(ctx context.Context, result *model.CheckResult) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if result.ID.IsZero() {
		result.ID = primitive.NewObjectID()
	}
	if result.CheckedAt.IsZero() {
		result.CheckedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctxTimeout, result); err != nil {
		return fmt.Errorf("failed to save check result: %w", err)
	}

	return nil
}
