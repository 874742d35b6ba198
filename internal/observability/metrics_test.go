package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	jobmetrics "github.com/mdmops/console/internal/jobs"
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

func TestMetricsHandlerExposesJobCollectors(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	_ = jobs.Track("health_check").End(nil)

	body := scrape(t, metrics)
	if !strings.Contains(body, "console_jobs_total") {
		t.Fatalf("expected body to contain console_jobs_total, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "console_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "console_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestFeedAndHealthCollectors(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveFeed("feeds", 20*time.Millisecond, nil)
	metrics.ObserveFeed("feeds", time.Millisecond, errors.New("boom"))
	latency := int64(120)
	metrics.SetHealth("backend", "DEGRADED", &latency)
	metrics.SetHealth("sheets", "Unknown", nil)

	body := scrape(t, metrics)
	for _, want := range []string{
		`console_feed_loads_total{cache="feeds",result="ok"} 1`,
		`console_feed_loads_total{cache="feeds",result="error"} 1`,
		`console_health_status{service="backend"} 0.5`,
		`console_health_status{service="sheets"} -1`,
		`console_health_latency_milliseconds{service="backend"} 120`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveFeed("x", 0, nil)
	nilMetrics.SetHealth("x", "UP", nil)
}
