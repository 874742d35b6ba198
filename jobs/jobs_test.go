package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdmops/console/internal/feed"
	"github.com/mdmops/console/internal/health"
	jobmetrics "github.com/mdmops/console/internal/jobs"
	"github.com/mdmops/console/internal/rbac"
	"github.com/mdmops/console/internal/shared"
)

type stubRunner struct {
	statuses []health.ServiceStatus
	err      error
}

func (s stubRunner) RunAll(ctx context.Context) ([]health.ServiceStatus, error) {
	return s.statuses, s.err
}

type stubRefresher struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (s *stubRefresher) Refresh(ctx context.Context, sheetID, sheetName string) (feed.Table, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sheetID+"|"+sheetName)
	if s.fail[sheetID] {
		return feed.Table{}, time.Time{}, errors.New("fetch failed")
	}
	return feed.Table{Headers: []string{"status"}, Rows: [][]any{{"done"}}}, time.Now(), nil
}

func TestHealthCheckJobCountsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	runner := stubRunner{statuses: []health.ServiceStatus{
		{Name: "api", Result: health.Result{Status: health.StatusUp}},
		{Name: "backend", Result: health.Result{Status: health.StatusDown}},
		{Name: "sheets", Result: health.Result{Status: health.StatusUp}},
	}}
	job := NewHealthCheckJob(runner, nil, metrics)

	require.NoError(t, job.Handle(context.Background(), NewHealthCheckTask()))

	runs, err := testutil.GatherAndCount(reg, "console_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	results, err := testutil.GatherAndCount(reg, "console_health_checks_total")
	require.NoError(t, err)
	assert.Equal(t, 2, results)
}

func TestHealthCheckJobReportsWriteFailure(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewHealthCheckJob(stubRunner{err: errors.New("store offline")}, nil, metrics)

	err := job.Handle(context.Background(), NewHealthCheckTask())
	assert.EqualError(t, err, "store offline")
}

func TestHealthCheckJobNotConfigured(t *testing.T) {
	var job *HealthCheckJob
	assert.Error(t, job.Handle(context.Background(), NewHealthCheckTask()))
}

func TestFeedsWarmupRefreshesConfiguredFeeds(t *testing.T) {
	refresher := &stubRefresher{}
	job := NewFeedsWarmupJob(refresher, []FeedRef{
		{Name: "email-tracker", SheetID: "s1", SheetName: "Tracker"},
		{Name: "recons", SheetID: "s2", SheetName: "Progress"},
		{Name: "unset"},
	}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewFeedsWarmupTask(FeedsWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, []string{"s1|Tracker", "s2|Progress"}, refresher.calls)
}

func TestFeedsWarmupSelectsAndReportsFailures(t *testing.T) {
	refresher := &stubRefresher{fail: map[string]bool{"s2": true}}
	job := NewFeedsWarmupJob(refresher, []FeedRef{
		{Name: "email-tracker", SheetID: "s1", SheetName: "Tracker"},
		{Name: "recons", SheetID: "s2", SheetName: "Progress"},
	}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewFeedsWarmupTask(FeedsWarmupPayload{Feeds: []string{"recons"}})
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "recons")
	assert.Equal(t, []string{"s2|Progress"}, refresher.calls)
}

func TestFeedsWarmupMalformedPayloadSkipsRetry(t *testing.T) {
	job := NewFeedsWarmupJob(&stubRefresher{}, nil, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskFeedsWarmup, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestEvery(t *testing.T) {
	assert.Equal(t, "@every 1m0s", Every(time.Minute))
	assert.Empty(t, Every(0))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

type staticRoles map[string]rbac.PermissionMap

func (s staticRoles) RoleFor(ctx context.Context, actor string) (string, error) {
	return actor, nil
}

func (s staticRoles) PermissionsFor(ctx context.Context, role string) (rbac.PermissionMap, error) {
	return s[role], nil
}

func serveJobs(t *testing.T, actor string, inspector QueueInspector) *httptest.ResponseRecorder {
	t.Helper()
	store := rbac.NewSessionStore(staticRoles{"ops": {"system.*": true}, "viewer": {"home.view": true}}, nil, rbac.SessionConfig{}, nil)
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(inspector, nil, rbac.Middleware{Sessions: store}).MountRoutes)
	req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	sess := &shared.Session{}
	sess.SetActor(actor)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJobsHealthEndpoint(t *testing.T) {
	rec := serveJobs(t, "ops", stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Failed: 1}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":0,"retry":0,"failedToday":1,"processedToday":0}`, rec.Body.String())

	rec = serveJobs(t, "ops", stubInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serveJobs(t, "ops", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serveJobs(t, "viewer", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
