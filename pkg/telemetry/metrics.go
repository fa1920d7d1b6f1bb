package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the apply engine.
// A nil or disabled Metrics is a no-op, so callers never guard calls.
type Metrics struct {
	config MetricsConfig

	runsStarted     *prometheus.CounterVec
	runsCompleted   *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	itemsReconciled *prometheus.CounterVec
	itemDuration    *prometheus.HistogramVec
	lockContention  prometheus.Counter
	lockReclaims    prometheus.Counter
	activeRuns      prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op metrics instance.
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of apply runs started",
			},
			[]string{"holder"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of apply runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of apply runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		itemsReconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_reconciled_total",
				Help:      "Total number of items reconciled",
			},
			[]string{"type", "status"},
		),
		itemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "item_duration_seconds",
				Help:      "Duration of per-item reconciliation in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		lockContention: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_contention_total",
				Help:      "Total number of acquisitions refused because the node lock was held",
			},
		),
		lockReclaims: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_reclaims_total",
				Help:      "Total number of expired locks forcibly reclaimed",
			},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Number of apply runs currently holding a node lock",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.itemsReconciled,
		m.itemDuration,
		m.lockContention,
		m.lockReclaims,
		m.activeRuns,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// enabled reports whether this instance records anything.
func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RunStarted records the start of an apply run.
func (m *Metrics) RunStarted(holder string) {
	if !m.enabled() {
		return
	}
	m.runsStarted.WithLabelValues(holder).Inc()
	m.activeRuns.Inc()
}

// RunCompleted records the completion of an apply run.
func (m *Metrics) RunCompleted(status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// ItemReconciled records one item outcome.
func (m *Metrics) ItemReconciled(itemType, status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.itemsReconciled.WithLabelValues(itemType, status).Inc()
	m.itemDuration.WithLabelValues(itemType).Observe(duration.Seconds())
}

// LockContention records a refused acquisition.
func (m *Metrics) LockContention() {
	if !m.enabled() {
		return
	}
	m.lockContention.Inc()
}

// LockReclaimed records a forcible reclaim of an expired lock.
func (m *Metrics) LockReclaimed() {
	if !m.enabled() {
		return
	}
	m.lockReclaims.Inc()
}

// Handler returns an HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
