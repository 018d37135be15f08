// Package metrics exposes the Prometheus instrumentation shared by the
// HTTP server and the snapshot worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	registry *prometheus.Registry

	buildsTotal    *prometheus.CounterVec
	buildDuration  *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	snapshotsTotal prometheus.Counter
	snapshotErrors prometheus.Counter
	exportsTotal   *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	m := &Registry{
		registry: r,
		buildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestionale_model_builds_total",
			Help: "Model builds by model name and cache outcome.",
		}, []string{"model", "cache"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gestionale_model_build_duration_seconds",
			Help:    "Model build latency by model name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestionale_http_requests_total",
			Help: "HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gestionale_http_request_duration_seconds",
			Help:    "HTTP request latency by path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		snapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gestionale_snapshots_total",
			Help: "Model snapshots persisted by the worker.",
		}),
		snapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gestionale_snapshot_errors_total",
			Help: "Snapshot cycles that failed.",
		}),
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestionale_exports_total",
			Help: "Report exports by model and outcome.",
		}, []string{"model", "outcome"}),
	}

	r.MustRegister(
		m.buildsTotal,
		m.buildDuration,
		m.httpRequests,
		m.httpDuration,
		m.snapshotsTotal,
		m.snapshotErrors,
		m.exportsTotal,
	)

	return m
}

// ObserveBuild records one model build.
func (m *Registry) ObserveBuild(model string, duration time.Duration, cacheHit bool) {
	outcome := "miss"
	if cacheHit {
		outcome = "hit"
	}
	m.buildsTotal.WithLabelValues(model, outcome).Inc()
	if !cacheHit {
		m.buildDuration.WithLabelValues(model).Observe(duration.Seconds())
	}
}

// ObserveHTTP records one served request.
func (m *Registry) ObserveHTTP(method, path string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// ObserveSnapshot records one snapshot cycle.
func (m *Registry) ObserveSnapshot(err error) {
	if err != nil {
		m.snapshotErrors.Inc()
		return
	}
	m.snapshotsTotal.Inc()
}

// ObserveExport records one export attempt.
func (m *Registry) ObserveExport(model string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.exportsTotal.WithLabelValues(model, outcome).Inc()
}

// Handler returns the scrape endpoint handler.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
