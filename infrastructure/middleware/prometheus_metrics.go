// Package middleware provides cross-cutting concerns for the evaluation
// engine: tracing, metrics, and input limits wrapped around units so the
// measurement code stays free of them.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-metricvote/internal/ports"
)

// scoreBuckets resolves inefficiency scores near 1, where most of them fall.
var scoreBuckets = []float64{0, 1, 1.01, 1.05, 1.1, 1.25, 1.5, 2, 3, 5, 10}

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It tracks unit latency, evaluation outcomes, and the distribution of
// scores per metric and rule.
type PrometheusMetrics struct {
	executionLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	scores           *prometheus.HistogramVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and registers
// its metrics with reg. A nil reg uses the default Prometheus registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		executionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metricvote_execution_duration_seconds",
				Help:    "Execution time of evaluation operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "unit"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metricvote_operations_total",
				Help: "Total number of evaluation operations by outcome.",
			},
			[]string{"operation", "status", "unit"},
		),
		scores: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metricvote_score",
				Help:    "Distribution of measured scores.",
				Buckets: scoreBuckets,
			},
			[]string{"metric", "rule"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "metricvote_state",
				Help: "Current state values of the evaluation engine.",
			},
			[]string{"metric", "unit"},
		),
	}
}

// unitLabel returns the "unit" label or "unknown" when it is missing or empty.
func unitLabel(labels map[string]string) string {
	if unit := labels["unit"]; unit != "" {
		return unit
	}
	return "unknown"
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.executionLatency.WithLabelValues(operation, unitLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters. The "status" label defaults to "success".
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	status := labels["status"]
	if status == "" {
		status = "success"
	}
	pm.operationCounter.WithLabelValues(metric, status, unitLabel(labels)).Add(value)
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric, unitLabel(labels)).Set(value)
}

// RecordHistogram implements the MetricsCollector interface. Values for
// the "score" histogram are bucketed by the "metric" and "rule" labels;
// anything else is treated as a duration in seconds.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	if metric == "score" {
		pm.scores.WithLabelValues(labels["metric"], labels["rule"]).Observe(value)
		return
	}
	pm.executionLatency.WithLabelValues(metric, unitLabel(labels)).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
