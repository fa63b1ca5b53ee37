package scheduler

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vigilops/vigil/internal/model"
)

// Scheduling modes reported in stats.
const (
	ModeTraditional = "traditional"
	ModeQueue       = "queue"
)

// Health statuses for the operational surface.
const (
	HealthDisabled  = "disabled"
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
)

// MonitorStore is the consumed configuration-store collaborator. The scheduler
// only reads monitor configurations, always re-fetching at execution time.
type MonitorStore interface {
	FindActive(ctx context.Context) ([]model.Monitor, error)
	FindByID(ctx context.Context, id string) (*model.Monitor, error)
}

// ResultSink receives check results. The scheduler does not retain a result
// after handing it off.
type ResultSink interface {
	Save(ctx context.Context, result *model.CheckResult) error
}

// Executor runs one check for a monitor, converting failures into results at its
// boundary. The returned error carries the retry classification.
type Executor interface {
	Execute(ctx context.Context, monitor *model.Monitor, correlationID string) (*model.CheckResult, error)
}

// Queue is the broker interface used in queue mode. It is the single source of
// truth for what runs next; workers hold no scheduling state of their own.
type Queue interface {
	Enqueue(ctx context.Context, monitorID, token string, runAt time.Time) (bool, error)
	ClaimDue(ctx context.Context, workerID string, visibility time.Duration) (*model.ScheduledJob, error)
	Complete(ctx context.Context, jobID primitive.ObjectID) (bool, error)
	Fail(ctx context.Context, job *model.ScheduledJob, delay time.Duration, maxAttempts int) (bool, error)
	RemoveByMonitor(ctx context.Context, monitorID string) (int64, error)
	Purge(ctx context.Context) (int64, error)
	Depths(ctx context.Context) (model.QueueDepths, error)
}

// Stats describes the scheduler state for operators. ActiveCount is set in
// traditional mode, QueueDepths in queue mode.
type Stats struct {
	Mode        string             `json:"mode"`
	ActiveCount int                `json:"active_count,omitempty"`
	QueueDepths *model.QueueDepths `json:"queue_depths,omitempty"`
}

// Health describes broker reachability for the operator-facing check endpoint.
type Health struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
	Detail string `json:"detail,omitempty"`
}
