package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk console.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	feedLoads       *prometheus.CounterVec
	feedDuration    *prometheus.HistogramVec
	healthStatus    *prometheus.GaugeVec
	healthLatency   *prometheus.GaugeVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	feedLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_feed_loads_total",
		Help: "Spreadsheet feed loads by cache and result.",
	}, []string{"cache", "result"})
	feedDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_feed_load_duration_seconds",
		Help:    "Spreadsheet feed load duration per cache.",
		Buckets: prometheus.DefBuckets,
	}, []string{"cache"})
	healthStatus := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "console_health_status",
		Help: "Last health check per service: 1 up, 0.5 degraded, 0 down, -1 unknown.",
	}, []string{"service"})
	healthLatency := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "console_health_latency_milliseconds",
		Help: "Latency of the last health check per service.",
	}, []string{"service"})
	registry.MustRegister(requests, duration, feedLoads, feedDuration, healthStatus, healthLatency)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		feedLoads:       feedLoads,
		feedDuration:    feedDuration,
		healthStatus:    healthStatus,
		healthLatency:   healthLatency,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveFeed records one feed load. Its signature matches swr.Observer.
func (m *Metrics) ObserveFeed(cache string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.feedLoads.WithLabelValues(cache, result).Inc()
	m.feedDuration.WithLabelValues(cache).Observe(elapsed.Seconds())
}

// SetHealth records the outcome of a health check.
func (m *Metrics) SetHealth(service, status string, latencyMs *int64) {
	if m == nil {
		return
	}
	value := -1.0
	switch status {
	case "UP":
		value = 1
	case "DEGRADED":
		value = 0.5
	case "DOWN":
		value = 0
	}
	m.healthStatus.WithLabelValues(service).Set(value)
	if latencyMs != nil {
		m.healthLatency.WithLabelValues(service).Set(float64(*latencyMs))
	} else {
		m.healthLatency.DeleteLabelValues(service)
	}
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
