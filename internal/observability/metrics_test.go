package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	body := scrape(t, NewMetrics())
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected runtime collectors, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/dashboard")

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "salesroom_http_requests_total{code=\"418\",route=\"/api/dashboard\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "salesroom_http_request_duration_seconds_bucket{route=\"/api/dashboard\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestPipelineMetricsObserveRun(t *testing.T) {
	metrics := NewMetrics()
	metrics.Pipeline().ObserveRun("report", RunStats{Records: 10, Undated: 2, Foreign: 3, Filtered: 6}, 20*time.Millisecond)
	metrics.Pipeline().ObserveRate("fallback", 32.5, true)

	body := scrape(t, metrics)
	for _, want := range []string{
		`salesroom_pipeline_records_total{stage="ingested"} 10`,
		`salesroom_pipeline_records_total{stage="filtered"} 6`,
		`salesroom_pipeline_undated_records_total 2`,
		`salesroom_pipeline_foreign_records_total 3`,
		`salesroom_exchange_rate{source="fallback"} 32.5`,
		`salesroom_exchange_rate_fallback_total 1`,
		`salesroom_pipeline_duration_seconds_count{operation="report"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}
}

func TestNilPipelineMetricsAreNoop(t *testing.T) {
	var m *PipelineMetrics
	m.ObserveRun("report", RunStats{Records: 1}, time.Millisecond)
	m.ObserveRate("live", 31, false)
}
