// Package metrics defines the Prometheus collectors for graph resolution,
// plan compilation and the resolution cache.
//
// Every recording method is safe to call on a nil *Metrics, so components
// can take metrics as an optional dependency.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graphsql"

// Metrics holds the graphsql collectors.
type Metrics struct {
	CacheRequests   *prometheus.CounterVec
	Resolutions     *prometheus.CounterVec
	Compilations    *prometheus.CounterVec
	CompileDuration prometheus.Histogram
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "requests_total",
				Help:      "Cache lookups by backend and result (hit or miss)",
			},
			[]string{"backend", "result"},
		),

		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "resolutions_total",
				Help:      "Graph strings resolved, by strategy",
			},
			[]string{"strategy"},
		),

		Compilations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "plan",
				Name:      "compilations_total",
				Help:      "Plan compilations by outcome (ok or error code)",
			},
			[]string{"outcome"},
		),

		CompileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "plan",
				Name:      "compile_duration_seconds",
				Help:      "Time spent parsing and compiling graph expressions",
				Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
			},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.CacheRequests, m.Resolutions, m.Compilations, m.CompileDuration} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding fresh graphsql collectors plus the
// Go runtime and process collectors.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	m := New()
	reg.MustRegister(m.CacheRequests, m.Resolutions, m.Compilations, m.CompileDuration)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, m
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// CacheHit records a cache hit on backend.
func (m *Metrics) CacheHit(backend string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(backend, "hit").Inc()
}

// CacheMiss records a cache miss on backend.
func (m *Metrics) CacheMiss(backend string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(backend, "miss").Inc()
}

// Resolved records which strategy produced a graph string.
func (m *Metrics) Resolved(strategy string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(strategy).Inc()
}

// Compiled records a compilation outcome and its duration. outcome is "ok"
// or the failing error code.
func (m *Metrics) Compiled(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Compilations.WithLabelValues(outcome).Inc()
	m.CompileDuration.Observe(d.Seconds())
}
