package audit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink records decision outcomes as Prometheus metrics rather
// than persisting the records themselves. It is typically composed
// with a durable Sink via MultiSink.
type MetricsSink struct {
	registry *prometheus.Registry

	decisionsTotal   *prometheus.CounterVec
	fallbackTotal    *prometheus.CounterVec
	exhaustedTotal   *prometheus.CounterVec
	decisionAttempts *prometheus.HistogramVec
}

// NewMetricsSink registers its collectors against reg. Pass a fresh
// *prometheus.Registry per process (or the default one via
// prometheus.DefaultRegisterer's registry) to avoid duplicate
// registration when constructing more than one Broker in tests.
func NewMetricsSink(reg *prometheus.Registry) *MetricsSink {
	m := &MetricsSink{registry: reg}

	m.decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skillgov",
			Subsystem: "broker",
			Name:      "decisions_total",
			Help:      "Total number of finalized agent decisions by outcome",
		},
		[]string{"agent_type", "outcome"},
	)

	m.fallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skillgov",
			Subsystem: "broker",
			Name:      "fallback_count",
			Help:      "Total number of decisions that finalized via the default-skill fallback",
		},
		[]string{"agent_type"},
	)

	m.exhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skillgov",
			Subsystem: "broker",
			Name:      "exhausted_count",
			Help:      "Total number of decisions that finalized with the parse_exhausted outcome",
		},
		[]string{"agent_type"},
	)

	m.decisionAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "skillgov",
			Subsystem: "broker",
			Name:      "decision_attempts",
			Help:      "Number of INVOKE_MODEL rounds a decision took before finalizing",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		},
		[]string{"agent_type", "outcome"},
	)

	reg.MustRegister(m.decisionsTotal, m.fallbackTotal, m.exhaustedTotal, m.decisionAttempts)
	return m
}

func (m *MetricsSink) Write(_ context.Context, rec Record) error {
	m.decisionsTotal.WithLabelValues(rec.AgentType, rec.Outcome).Inc()
	m.decisionAttempts.WithLabelValues(rec.AgentType, rec.Outcome).Observe(float64(len(rec.Attempts)))

	switch rec.Outcome {
	case "fallback":
		m.fallbackTotal.WithLabelValues(rec.AgentType).Inc()
	case "parse_exhausted":
		m.exhaustedTotal.WithLabelValues(rec.AgentType).Inc()
	}
	return nil
}

func (m *MetricsSink) Close() error {
	return nil
}

var _ Sink = (*MetricsSink)(nil)
