package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesroom/salesroom/internal/dashboard"
	jobmetrics "github.com/salesroom/salesroom/internal/jobs"
	"github.com/salesroom/salesroom/internal/rates"
)

type stubRefresher struct {
	calls  int
	result dashboard.RefreshResult
	err    error
}

func (s *stubRefresher) Refresh(context.Context) (dashboard.RefreshResult, error) {
	s.calls++
	return s.result, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestNewFeedRefreshTask(t *testing.T) {
	task, err := NewFeedRefreshTask(FeedRefreshPayload{})
	require.NoError(t, err)
	assert.Equal(t, TaskFeedRefresh, task.Type())

	var payload FeedRefreshPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "unspecified", payload.Reason)
}

func TestFeedRefreshJobRecordsSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	refresher := &stubRefresher{result: dashboard.RefreshResult{
		Snapshot: dashboard.SnapshotInfo{ID: "snap-1", Source: "sheet", FetchedAt: time.Now()},
		Records:  42,
		Quote:    rates.Quote{Base: "USD", Quote: "TWD", Rate: 31.9, Source: rates.SourceName},
	}}
	job := NewFeedRefreshJob(refresher, discardLogger(), jobmetrics.NewMetrics(reg))

	task, err := NewFeedRefreshTask(FeedRefreshPayload{Reason: "cron"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, refresher.calls)

	body := scrape(t, reg)
	assert.Contains(t, body, `salesroom_feed_snapshot_records{source="sheet"} 42`)
	assert.Contains(t, body, `salesroom_jobs_total{job="feed:refresh",status="success"} 1`)
}

func TestFeedRefreshJobFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	boom := errors.New("upstream down")
	job := NewFeedRefreshJob(&stubRefresher{err: boom}, discardLogger(), jobmetrics.NewMetrics(reg))

	task, err := NewFeedRefreshTask(FeedRefreshPayload{Reason: "manual"})
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, boom)

	body := scrape(t, reg)
	assert.Contains(t, body, `salesroom_jobs_failures_total{job="feed:refresh"} 1`)
	assert.NotContains(t, body, `salesroom_feed_snapshot_records{`)
}

func TestFeedRefreshJobBadPayload(t *testing.T) {
	refresher := &stubRefresher{}
	job := NewFeedRefreshJob(refresher, discardLogger(), nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskFeedRefresh, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, refresher.calls)
}

func TestFeedRefreshJobUnconfigured(t *testing.T) {
	var job *FeedRefreshJob
	task, err := NewFeedRefreshTask(FeedRefreshPayload{Reason: "manual"})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func serveHealth(t *testing.T, inspector QueueInspector) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(inspector, discardLogger()).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rec
}

func TestHealthReportsQueue(t *testing.T) {
	rec := serveHealth(t, stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}})
	require.Equal(t, http.StatusOK, rec.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, queueHealth{Queue: QueueDefault, Pending: 3, Retry: 1}, body)
}

func TestHealthWithoutInspector(t *testing.T) {
	rec := serveHealth(t, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queue":"default"`)
}

func TestHealthInspectorError(t *testing.T) {
	rec := serveHealth(t, stubInspector{err: errors.New("redis gone")})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/problem+json"))
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	task, err := NewFeedRefreshTask(FeedRefreshPayload{Reason: "cron"})
	require.NoError(t, err)
	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Logger:    discardLogger(),
		Cron:      []CronRegistration{{Spec: "not a cron", Task: task}},
	})
	require.Error(t, err)
}
