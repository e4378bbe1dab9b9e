// Package metrics holds the Prometheus collectors for a publishing run.
// A CLI run is short-lived, so instead of serving /metrics the registry is
// written once in text format (for a node-exporter textfile collector).
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors of one run on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "msys2pkg_api_requests_total",
				Help: "Total number of release API requests by method and status.",
			},
			[]string{"method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "msys2pkg_api_request_duration_seconds",
				Help:    "Release API request duration in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"method"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "msys2pkg_api_retries_total",
				Help: "Total number of retried release API requests by reason.",
			},
			[]string{"method", "reason"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "msys2pkg_step_duration_seconds",
				Help:    "Duration of each replacement step.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"step", "result"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "msys2pkg_runs_total",
				Help: "Total number of replacement runs by package and outcome.",
			},
			[]string{"package", "outcome"},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.retriesTotal,
		m.stepDuration,
		m.runsTotal,
	)
	return m
}

// Registry exposes the registry for gathering in tests and exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one completed HTTP exchange. A status of 0 means
// the request never produced a response.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(method, label).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveRetry records one retried request.
func (m *Metrics) ObserveRetry(method, reason string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(method, reason).Inc()
}

// ObserveStep records the duration of one replacement step.
func (m *Metrics) ObserveStep(step string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.stepDuration.WithLabelValues(step, result).Observe(elapsed.Seconds())
}

// ObserveRun records the terminal outcome of a run.
func (m *Metrics) ObserveRun(pkg, outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(pkg, outcome).Inc()
}

// WriteTextfile writes all collected metrics to path in the Prometheus
// text exposition format. The write is atomic (temp file and rename).
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
