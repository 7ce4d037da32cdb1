package ports

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/ahrav/go-metricvote/internal/domain"
)

// ElectionRule is a committee-selection rule. The metric engine treats it
// as an external collaborator and only relies on index validity.
type ElectionRule interface {
	// Name returns the rule's identifier, used as the key of its winner
	// set in a sample.
	Name() string

	// SelectWinners returns exactly k distinct candidate indices in
	// [0, len(candidates)). Randomized rules and tie-breaks draw only
	// from src so results are reproducible per source.
	SelectWinners(voters, candidates domain.Points, k int, src rand.Source) ([]int, error)
}

// BatchStore loads and saves batches of simulated elections.
// Implementations decide the on-disk encoding.
type BatchStore interface {
	// Load reads and validates the batch stored at path.
	Load(ctx context.Context, path string) (*domain.Batch, error)

	// Save writes batch to path, replacing any existing content.
	Save(ctx context.Context, path string, batch *domain.Batch) error
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric, such as evaluated samples
	// or failed units.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric, such as the
	// number of evaluations in flight.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram, such as an
	// inefficiency score.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
