package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ahrav/go-metricvote/infrastructure/middleware"
	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/measure"
)

// lineSample places two blocs of three voters around 1 and 9 with
// candidates at 1, 9 and 5.
func lineSample(winners map[string][]int) domain.Sample {
	return domain.Sample{
		Voters:     domain.Points{{0}, {1}, {2}, {8}, {9}, {10}},
		Candidates: domain.Points{{1}, {9}, {5}},
		Labels:     []int{0, 0, 0, 1, 1, 1},
		Winners:    winners,
	}
}

func lineBatch() *domain.Batch {
	return &domain.Batch{
		Metadata: domain.BatchMetadata{Name: "line", CommitteeSize: 2},
		Samples: []domain.Sample{
			// Winners at 9 and 5 leave bloc 0 six times worse off.
			lineSample(map[string][]int{"sntv": {1, 2}}),
			lineSample(map[string][]int{"sntv": {0, 1}}),
		},
	}
}

func baseConfig() *ExperimentConfig {
	return &ExperimentConfig{
		Version:  "1.0.0",
		Metadata: Metadata{Name: "test"},
		Seed:     42,
		Rules:    []RuleConfig{{Name: "sntv"}},
		Groups:   []GroupConfig{{Label: 0}, {Label: 1}, {Overall: true}},
		Aggregators: []AggregatorConfig{
			{Type: "arithmetic_mean"},
			{Type: "max_pool"},
		},
		Concurrency: ConcurrencyConfig{Workers: 2},
	}
}

func newTestRunner(t *testing.T, config *ExperimentConfig, opts ...RunnerOption) *Runner {
	t.Helper()
	runner, err := NewRunner(config, NewDefaultUnitRegistry(), opts...)
	require.NoError(t, err)
	return runner
}

func findSummary(t *testing.T, report *domain.Report, rule, metric, method string) domain.Summary {
	t.Helper()
	for _, s := range report.Summaries {
		if s.Rule == rule && s.Metric == metric && s.Method == method {
			return s
		}
	}
	require.Failf(t, "summary not found", "%s %s %s", rule, metric, method)
	return domain.Summary{}
}

func TestRunner_RecordedWinners(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	runner := newTestRunner(t, baseConfig(), WithClock(func() time.Time { return fixed }))

	report, err := runner.Run(context.Background(), lineBatch())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "line", report.Batch)
	assert.Equal(t, 2, report.Samples)
	assert.Equal(t, fixed, report.Timestamp)
	require.Len(t, report.Summaries, 6)

	tests := []struct {
		metric string
		method string
		value  float64
	}{
		{metric: "group_inefficiency/label=0", method: "arithmetic_mean", value: 3.5},
		{metric: "group_inefficiency/label=0", method: "max_pool", value: 6},
		{metric: "group_inefficiency/label=1", method: "arithmetic_mean", value: 1},
		{metric: "group_inefficiency/label=1", method: "max_pool", value: 1},
		// Candidates at 1 and 9 cost the electorate 52 against the best 50.
		{metric: "group_inefficiency/overall", method: "arithmetic_mean", value: 1.02},
		{metric: "group_inefficiency/overall", method: "max_pool", value: 1.04},
	}
	for _, tt := range tests {
		s := findSummary(t, report, "sntv", tt.metric, tt.method)
		assert.InDelta(t, tt.value, s.Value, 1e-12, "%s %s", tt.metric, tt.method)
		assert.Equal(t, 2, s.Count)
	}

	label0 := findSummary(t, report, "sntv", "group_inefficiency/label=0", "arithmetic_mean")
	assert.InDelta(t, 1, label0.Min, 1e-12)
	assert.InDelta(t, 6, label0.Max, 1e-12)
}

func TestRunner_SummariesSorted(t *testing.T) {
	config := baseConfig()
	config.Rules = []RuleConfig{{Name: "sntv"}, {Name: "bloc", Recompute: true}}

	report, err := newTestRunner(t, config).Run(context.Background(), lineBatch())
	require.NoError(t, err)
	require.Len(t, report.Summaries, 12)

	for i := 1; i < len(report.Summaries); i++ {
		a, b := report.Summaries[i-1], report.Summaries[i]
		key := func(s domain.Summary) string { return s.Rule + "\x00" + s.Metric + "\x00" + s.Method }
		assert.Less(t, key(a), key(b))
	}
	assert.Equal(t, "bloc", report.Summaries[0].Rule)
}

func TestRunner_ComputesMissingWinners(t *testing.T) {
	batch := lineBatch()
	for i := range batch.Samples {
		batch.Samples[i].Winners = nil
	}

	report, err := newTestRunner(t, baseConfig()).Run(context.Background(), batch)
	require.NoError(t, err)

	// Single non-transferable vote elects the candidates at 1 and 9, which
	// serve each bloc as well as any candidate could but cost the whole
	// electorate 52 against the best pair's 50.
	for _, s := range report.Summaries {
		want := 1.0
		if s.Metric == "group_inefficiency/overall" {
			want = 1.04
		}
		assert.InDelta(t, want, s.Value, 1e-12, "%s %s", s.Metric, s.Method)
	}
}

func TestRunner_RandomBlocReproducible(t *testing.T) {
	config := baseConfig()
	config.Groups = nil
	config.RandomBloc = &RandomBlocConfig{Representatives: []int{0, 1, 2}, Trials: 4}
	config.Concurrency.Workers = 4

	batch := lineBatch()
	for range 6 {
		batch.Samples = append(batch.Samples, lineSample(map[string][]int{"sntv": {1, 2}}))
	}

	first, err := newTestRunner(t, config).Run(context.Background(), batch)
	require.NoError(t, err)
	second, err := newTestRunner(t, config).Run(context.Background(), batch)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Summaries, second.Summaries)

	for _, metric := range []string{"random_bloc/t=1", "random_bloc/t=2"} {
		s := findSummary(t, first, "sntv", metric, "arithmetic_mean")
		assert.Equal(t, len(batch.Samples)*4, s.Count)
		assert.GreaterOrEqual(t, s.Min, 1.0)
	}
	zero := findSummary(t, first, "sntv", "random_bloc/t=0", "max_pool")
	assert.Zero(t, zero.Value)

	config.Seed++
	third, err := newTestRunner(t, config).Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Len(t, third.Summaries, len(first.Summaries))
}

func TestRunner_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config func(*ExperimentConfig)
		batch  func(*domain.Batch) *domain.Batch
		errIs  error
	}{
		{
			name:  "nil batch",
			batch: func(*domain.Batch) *domain.Batch { return nil },
			errIs: ErrInvalidBatch,
		},
		{
			name: "unnamed batch",
			batch: func(b *domain.Batch) *domain.Batch {
				b.Metadata.Name = ""
				return b
			},
			errIs: ErrInvalidBatch,
		},
		{
			name: "ragged sample",
			batch: func(b *domain.Batch) *domain.Batch {
				b.Samples[1].Voters[2] = []float64{2, 2}
				return b
			},
			errIs: domain.ErrInvalidSample,
		},
		{
			name: "recorded winner out of range",
			batch: func(b *domain.Batch) *domain.Batch {
				b.Samples[0].Winners["sntv"] = []int{0, 3}
				return b
			},
			errIs: ErrInvalidBatch,
		},
		{
			name: "no committee size for missing winners",
			batch: func(b *domain.Batch) *domain.Batch {
				b.Metadata.CommitteeSize = 0
				b.Samples[1].Winners = nil
				return b
			},
			errIs: domain.ErrInvalidConfiguration,
		},
		{
			name: "entitlement exceeds committee",
			config: func(c *ExperimentConfig) {
				c.RandomBloc = &RandomBlocConfig{Representatives: []int{3}, Trials: 1}
			},
			errIs: domain.ErrInvalidConfiguration,
		},
		{
			name: "entitlement unreachable for small electorate",
			config: func(c *ExperimentConfig) {
				c.Rules = []RuleConfig{{Name: "sntv", CommitteeSize: 3, Recompute: true}}
				c.RandomBloc = &RandomBlocConfig{Representatives: []int{2}, Trials: 1}
			},
			batch: func(b *domain.Batch) *domain.Batch {
				// Two voters and three seats: one voter is owed one seat,
				// both are owed three, so no bloc is owed exactly two.
				b.Samples[1].Voters = domain.Points{{0}, {10}}
				b.Samples[1].Labels = []int{0, 1}
				return b
			},
			errIs: measure.ErrUnreachableEntitlement,
		},
		{
			name: "sample over limits",
			config: func(c *ExperimentConfig) {
				c.Limits = middleware.Limits{MaxVoters: 5}
			},
			errIs: middleware.ErrLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := baseConfig()
			if tt.config != nil {
				tt.config(config)
			}
			batch := lineBatch()
			if tt.batch != nil {
				batch = tt.batch(batch)
			}

			report, err := newTestRunner(t, config).Run(context.Background(), batch)
			require.ErrorIs(t, err, tt.errIs)
			assert.Nil(t, report)
		})
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRunner(t, baseConfig()).Run(ctx, lineBatch())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(nil, NewDefaultUnitRegistry())
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = NewRunner(baseConfig(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

// countingMetrics tallies counters by metric and status.
type countingMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (c *countingMetrics) RecordLatency(string, time.Duration, map[string]string) {}

func (c *countingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[metric+"/"+labels["status"]] += value
}

func (c *countingMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[metric] = value
}

func (c *countingMetrics) RecordHistogram(string, float64, map[string]string) {}

func TestRunner_ObservabilityWiring(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := newCountingMetrics()

	report, err := newTestRunner(t, baseConfig(), WithLogger(zap.New(core)), WithMetrics(metrics)).
		Run(context.Background(), lineBatch())
	require.NoError(t, err)

	assert.Equal(t, 2.0, metrics.counters["samples_evaluated_total/success"])
	assert.InDelta(t, 3.5, metrics.gauges["sntv/group_inefficiency/label=0/arithmetic_mean"], 1e-12)

	started := logs.FilterMessage("run started").All()
	require.Len(t, started, 1)
	assert.Equal(t, report.RunID, started[0].ContextMap()["run_id"])
	assert.Len(t, logs.FilterMessage("run finished").All(), 1)
}
