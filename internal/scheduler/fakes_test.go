package scheduler

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vigilops/vigil/internal/database"
	"github.com/vigilops/vigil/internal/model"
)

// --- fakes ---

type fakeStore struct {
	mu       sync.Mutex
	monitors map[string]*model.Monitor
}

func newFakeStore(monitors ...*model.Monitor) *fakeStore {
	s := &fakeStore{monitors: make(map[string]*model.Monitor)}
	for _, m := range monitors {
		s.monitors[m.ID.Hex()] = m
	}
	return s
}

func (s *fakeStore) FindActive(ctx context.Context) ([]model.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []model.Monitor
	for _, m := range s.monitors {
		if m.Active {
			active = append(active, *m)
		}
	}
	return active, nil
}

func (s *fakeStore) FindByID(ctx context.Context, id string) (*model.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[id]
	if !ok {
		return nil, database.ErrMonitorNotFound
	}
	copied := *m
	return &copied, nil
}

type fakeSink struct {
	mu      sync.Mutex
	results []*model.CheckResult
}

func (s *fakeSink) Save(ctx context.Context, result *model.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func (s *fakeSink) saved() []*model.CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.CheckResult(nil), s.results...)
}

type fakeExec struct {
	mu        sync.Mutex
	calls     int
	err       error
	onExecute func() // runs mid-check, before the result is returned
}

func (e *fakeExec) Execute(ctx context.Context, monitor *model.Monitor, correlationID string) (*model.CheckResult, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	hook := e.onExecute
	e.mu.Unlock()

	if hook != nil {
		hook()
	}

	result := &model.CheckResult{
		MonitorID:     monitor.ID,
		CorrelationID: correlationID,
		Status:        model.StatusUp,
		CheckedAt:     time.Now().UTC(),
	}
	if err != nil {
		result.Status = model.StatusDown
		result.Message = err.Error()
	}
	return result, err
}

func (e *fakeExec) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeQueue is an in-memory broker honoring the one-job-per-monitor invariant.
type fakeQueue struct {
	mu     sync.Mutex
	jobs   map[string]*model.ScheduledJob // keyed by monitor id
	purges int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: make(map[string]*model.ScheduledJob)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, monitorID, token string, runAt time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.jobs[monitorID]; exists {
		return false, nil
	}
	objID, err := primitive.ObjectIDFromHex(monitorID)
	if err != nil {
		return false, err
	}
	q.jobs[monitorID] = &model.ScheduledJob{
		ID:        primitive.NewObjectID(),
		MonitorID: objID,
		Token:     token,
		State:     model.JobStatePending,
		RunAt:     runAt,
		CreatedAt: time.Now().UTC(),
	}
	return true, nil
}

func (q *fakeQueue) ClaimDue(ctx context.Context, workerID string, visibility time.Duration) (*model.ScheduledJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now().UTC()
	for _, job := range q.jobs {
		if job.State == model.JobStatePending && !job.RunAt.After(now) {
			job.State = model.JobStateActive
			job.ClaimedBy = workerID
			job.ClaimExpires = now.Add(visibility)
			job.Attempt++
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (q *fakeQueue) Complete(ctx context.Context, jobID primitive.ObjectID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for monitorID, job := range q.jobs {
		if job.ID == jobID {
			delete(q.jobs, monitorID)
			return true, nil
		}
	}
	return false, nil
}

func (q *fakeQueue) Fail(ctx context.Context, job *model.ScheduledJob, delay time.Duration, maxAttempts int) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	stored, ok := q.jobs[job.MonitorID.Hex()]
	if !ok {
		return false, nil
	}
	if job.Attempt >= maxAttempts {
		delete(q.jobs, job.MonitorID.Hex())
		return true, nil
	}
	stored.State = model.JobStatePending
	stored.RunAt = time.Now().UTC().Add(delay)
	stored.ClaimedBy = ""
	return false, nil
}

func (q *fakeQueue) RemoveByMonitor(ctx context.Context, monitorID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[monitorID]; ok {
		delete(q.jobs, monitorID)
		return 1, nil
	}
	return 0, nil
}

func (q *fakeQueue) Purge(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := int64(len(q.jobs))
	q.jobs = make(map[string]*model.ScheduledJob)
	q.purges++
	return count, nil
}

func (q *fakeQueue) Depths(ctx context.Context) (model.QueueDepths, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now().UTC()
	var depths model.QueueDepths
	for _, job := range q.jobs {
		switch {
		case job.State == model.JobStateActive:
			depths.Active++
		case job.RunAt.After(now):
			depths.Delayed++
		default:
			depths.Waiting++
		}
	}
	return depths, nil
}

func (q *fakeQueue) job(monitorID string) *model.ScheduledJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[monitorID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func (q *fakeQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
