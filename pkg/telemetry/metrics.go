package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/akinizer/akinizer/pkg/engine"
)

// Metrics provides Prometheus metrics for provisioning runs. A disabled
// instance accepts every call and records nothing.
type Metrics struct {
	config MetricsConfig

	targetsTotal   *prometheus.CounterVec
	targetDuration *prometheus.HistogramVec
	errorsByKind   *prometheus.CounterVec
	unitsRunning   prometheus.Gauge
	runsCompleted  *prometheus.CounterVec
	runDuration    prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		targetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "targets_total",
				Help:      "Total number of dispatched targets by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		targetDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "target_duration_seconds",
				Help:      "Duration of target dispatch in seconds",
				Buckets:   buckets,
			},
			[]string{"action"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of failed targets by error kind",
			},
			[]string{"kind"},
		),
		unitsRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "units_running",
				Help:      "Number of leaf units currently running",
			},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of completed runs by status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of whole runs in seconds",
				Buckets:   buckets,
			},
		),
	}

	if err := registry.Register(m.targetsTotal); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	registry.MustRegister(
		m.targetDuration,
		m.errorsByKind,
		m.unitsRunning,
		m.runsCompleted,
		m.runDuration,
	)

	return m, nil
}

// UnitFinished implements engine.Observer.
func (m *Metrics) UnitFinished(_ context.Context, r engine.Report) {
	if m.registry == nil {
		return
	}
	m.targetsTotal.WithLabelValues(string(r.Target.Action), string(r.Outcome)).Inc()
	m.targetDuration.WithLabelValues(string(r.Target.Action)).Observe(r.Duration.Seconds())
	if r.Err != nil {
		kind := engine.KindOf(r.Err)
		if kind == "" {
			kind = "unclassified"
		}
		m.errorsByKind.WithLabelValues(string(kind)).Inc()
	}
}

// Inc marks a leaf unit as started.
func (m *Metrics) Inc() {
	if m.registry != nil {
		m.unitsRunning.Inc()
	}
}

// Dec marks a leaf unit as finished.
func (m *Metrics) Dec() {
	if m.registry != nil {
		m.unitsRunning.Dec()
	}
}

// RecordRunCompleted records the status and duration of a run.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// Registry returns the underlying registry; nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in the text exposition format,
// atomically, for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m.registry == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// FlushTextfile writes the configured textfile, if any.
func (m *Metrics) FlushTextfile() error {
	return m.WriteTextfile(m.config.TextfilePath)
}
