package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vigilops/vigil/internal/config"
	"github.com/vigilops/vigil/internal/model"
	"github.com/vigilops/vigil/internal/scheduler"
)

type staticStore struct {
	monitors []model.Monitor
}

func (s *staticStore) FindActive(ctx context.Context) ([]model.Monitor, error) {
	return s.monitors, nil
}

func (s *staticStore) FindByID(ctx context.Context, id string) (*model.Monitor, error) {
	for i := range s.monitors {
		if s.monitors[i].ID.Hex() == id {
			return &s.monitors[i], nil
		}
	}
	return nil, nil
}

type noopSink struct{}

func (noopSink) Save(ctx context.Context, result *model.CheckResult) error { return nil }

type noopExec struct{}

func (noopExec) Execute(ctx context.Context, monitor *model.Monitor, correlationID string) (*model.CheckResult, error) {
	return &model.CheckResult{MonitorID: monitor.ID, Status: model.StatusUp}, nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{QueueEnabled: false}
	store := &staticStore{monitors: []model.Monitor{
		{ID: primitive.NewObjectID(), Active: true, IntervalSeconds: 60},
	}}
	facade := scheduler.NewFacade(context.Background(), cfg, store, noopExec{}, noopSink{})
	t.Cleanup(func() { _ = facade.Shutdown(context.Background()) })
	return NewRouter(NewHealthHandler(facade, "test"))
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, scheduler.HealthDisabled, body.Status)
	assert.Equal(t, scheduler.ModeTraditional, body.Mode)
	assert.Equal(t, "test", body.Version)
}

func TestStatsEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var stats scheduler.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, scheduler.ModeTraditional, stats.Mode)
}
