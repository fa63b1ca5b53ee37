package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Scheduled job states
const (
	JobStatePending = "pending"
	JobStateActive  = "active"
)

// ScheduledJob represents one pending future check in the broker queue.
//
// At most one job may be outstanding per monitor at any time; the broker enforces
// this with a unique index on monitor_id, so a duplicate enqueue collapses into
// the existing job instead of creating a second one.
type ScheduledJob struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	MonitorID    primitive.ObjectID `json:"monitor_id" bson:"monitor_id"`
	Token        string             `json:"token" bson:"token"` // uniqueness token for the enqueue
	State        string             `json:"state" bson:"state"`
	RunAt        time.Time          `json:"run_at" bson:"run_at"` // earliest-eligible-run time
	Attempt      int                `json:"attempt" bson:"attempt"`
	ClaimedBy    string             `json:"claimed_by,omitempty" bson:"claimed_by,omitempty"`
	ClaimExpires time.Time          `json:"claim_expires,omitempty" bson:"claim_expires,omitempty"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
}

// QueueDepths reports outstanding job counts by state.
type QueueDepths struct {
	Waiting int64 `json:"waiting"`
	Delayed int64 `json:"delayed"`
	Active  int64 `json:"active"`
}
