package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vigilops/vigil/internal/model"
)

// Checker performs one health check of a specific type against a monitor and
// produces a result record. One implementation is registered per check type.
type Checker interface {
	Type() string
	Check(ctx context.Context, monitor *model.Monitor, correlationID string) (*model.CheckResult, error)
}

// Registry dispatches check execution to the Checker registered for the
// monitor's type.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewRegistry creates an empty checker registry
func NewRegistry() *Registry {
	return &Registry{
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker implementation. Registering the same type twice
// replaces the previous implementation.
func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[c.Type()] = c
}

// Lookup returns the checker for a check type.
func (r *Registry) Lookup(checkType string) (Checker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checkers[checkType]
	return c, ok
}

// Execute runs the check for the monitor's type. Every failure is converted into
// a down CheckResult at this boundary; scheduling continuity matters more than
// surfacing failures loudly. The returned error carries the retry classification
// for the caller (nil or ConfigError: do not retry; TransientError: retryable).
func (r *Registry) Execute(ctx context.Context, monitor *model.Monitor, correlationID string) (result *model.CheckResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Check executor panicked",
				"monitor_id", monitor.ID.Hex(),
				"correlation_id", correlationID,
				"panic", rec,
			)
			err = Transientf("check executor panicked: %v", rec)
			result = model.DownResult(monitor.ID, correlationID, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	checker, ok := r.Lookup(monitor.Type)
	if !ok {
		err = Configf("no checker registered for type %q", monitor.Type)
		return model.DownResult(monitor.ID, correlationID, err.Error()), err
	}

	result, err = checker.Check(ctx, monitor, correlationID)
	if result == nil {
		message := "check failed"
		if err != nil {
			message = err.Error()
		}
		result = model.DownResult(monitor.ID, correlationID, message)
	}

	return result, err
}
