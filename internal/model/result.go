package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Check result statuses
const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusPending = "pending"
)

// CheckResult is produced once per executed check. The scheduler hands it to the
// persistence collaborator and does not retain it afterwards.
type CheckResult struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	MonitorID     primitive.ObjectID `json:"monitor_id" bson:"monitor_id"`
	CorrelationID string             `json:"correlation_id" bson:"correlation_id"`
	Status        string             `json:"status" bson:"status"`
	PingMs        int64              `json:"ping_ms" bson:"ping_ms"`
	Message       string             `json:"message,omitempty" bson:"message,omitempty"`
	Screenshot    string             `json:"screenshot,omitempty" bson:"screenshot,omitempty"`
	Video         string             `json:"video,omitempty" bson:"video,omitempty"`
	CheckedAt     time.Time          `json:"checked_at" bson:"checked_at"`
}

// DownResult builds a down CheckResult for a monitor with the given diagnostic message.
func DownResult(monitorID primitive.ObjectID, correlationID, message string) *CheckResult {
	return &CheckResult{
		MonitorID:     monitorID,
		CorrelationID: correlationID,
		Status:        StatusDown,
		Message:       message,
		CheckedAt:     time.Now().UTC(),
	}
}
