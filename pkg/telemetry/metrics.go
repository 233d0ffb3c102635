package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the reconciliation engine.
type Metrics struct {
	config MetricsConfig

	// Step metrics
	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec

	// Remote operation metrics
	mutatingCalls     *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	pollAttempts      prometheus.Counter
	writeConflicts    prometheus.Counter

	// Convergence metrics
	targetsRemaining prometheus.Gauge

	// Error metrics
	errorsByKind *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a no-op instance.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of reconciliation steps by outcome",
			},
			[]string{"outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of reconciliation steps in seconds",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),
		mutatingCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutating_calls_total",
				Help:      "Total number of mutating remote calls by operation kind",
			},
			[]string{"kind"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Wall time awaiting remote operations in seconds",
				Buckets:   buckets,
			},
			[]string{"kind", "status"},
		),
		pollAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_attempts_total",
				Help:      "Total number of operation status polls",
			},
		),
		writeConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "write_conflicts_total",
				Help:      "Total number of mutating calls rejected by the single-writer constraint",
			},
		),
		targetsRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "targets_remaining",
				Help:      "Number of desired targets not yet reconciled",
			},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of classified remote errors by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.stepsTotal,
		m.stepDuration,
		m.mutatingCalls,
		m.operationDuration,
		m.pollAttempts,
		m.writeConflicts,
		m.targetsRemaining,
		m.errorsByKind,
	)

	return m, nil
}

// RecordStep records a completed reconciliation step with its outcome.
func (m *Metrics) RecordStep(outcome string, duration time.Duration) {
	if m.stepsTotal == nil {
		return
	}
	m.stepsTotal.WithLabelValues(outcome).Inc()
	m.stepDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordMutatingCall increments the counter for issued mutating calls.
func (m *Metrics) RecordMutatingCall(kind string) {
	if m.mutatingCalls == nil {
		return
	}
	m.mutatingCalls.WithLabelValues(kind).Inc()
}

// RecordOperation records the wall time spent awaiting a remote operation.
func (m *Metrics) RecordOperation(kind, status string, duration time.Duration) {
	if m.operationDuration == nil {
		return
	}
	m.operationDuration.WithLabelValues(kind, status).Observe(duration.Seconds())
}

// RecordPollAttempt increments the poll counter.
func (m *Metrics) RecordPollAttempt() {
	if m.pollAttempts == nil {
		return
	}
	m.pollAttempts.Inc()
}

// RecordWriteConflict increments the conflict counter.
func (m *Metrics) RecordWriteConflict() {
	if m.writeConflicts == nil {
		return
	}
	m.writeConflicts.Inc()
}

// SetTargetsRemaining sets the number of targets still pending.
func (m *Metrics) SetTargetsRemaining(count float64) {
	if m.targetsRemaining == nil {
		return
	}
	m.targetsRemaining.Set(count)
}

// RecordError records a classified error by kind.
func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server exposing the metrics endpoint.
// It is a no-op when metrics are disabled or no listen address is set.
func (m *Metrics) StartMetricsServer(logger *Logger) {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.WithError(err).Warn("metrics server stopped")
			}
		}
	}()
}
