package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for resolutions.
const (
	OutcomeResolved = "resolved"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics provides Prometheus metrics for the resolution pipeline.
type Metrics struct {
	config MetricsConfig

	resolutions  *prometheus.CounterVec
	errorsByKind *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	violations   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics(cfg MetricsConfig) *Metrics {
	namespace := cfg.Namespace
	buckets := cfg.StepBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Total number of configuration resolutions",
			},
			[]string{"mode", "outcome"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of configuration errors by kind",
			},
			[]string{"kind"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of resolution steps in seconds",
				Buckets:   buckets,
			},
			[]string{"step"},
		),
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations by policy and severity",
			},
			[]string{"policy", "severity"},
		),
	}

	registry.MustRegister(
		m.resolutions,
		m.errorsByKind,
		m.stepDuration,
		m.violations,
	)

	return m
}

// RecordResolution records a finished resolution.
func (m *Metrics) RecordResolution(mode, outcome string) {
	m.resolutions.WithLabelValues(mode, outcome).Inc()
}

// RecordError records a configuration error by kind.
func (m *Metrics) RecordError(kind string) {
	if kind == "" {
		kind = "internal"
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// RecordStep records the duration of one resolution step.
func (m *Metrics) RecordStep(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordViolation records a policy violation.
func (m *Metrics) RecordViolation(policy, severity string) {
	m.violations.WithLabelValues(policy, severity).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current metrics to the configured text file, if any.
func (m *Metrics) WriteTextfile() error {
	if m.config.TextfilePath == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.config.TextfilePath, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", m.config.TextfilePath, err)
	}
	return nil
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
