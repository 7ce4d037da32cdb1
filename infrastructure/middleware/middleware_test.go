package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/ports"
)

// mockUnit records whether it ran and optionally appends a measurement.
type mockUnit struct {
	name    string
	err     error
	measure *domain.Measurement
	ran     bool
}

func (m *mockUnit) Name() string    { return m.name }
func (m *mockUnit) Validate() error { return nil }

func (m *mockUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	m.ran = true
	if m.err != nil {
		return state, m.err
	}
	if m.measure != nil {
		return state.AppendMeasurements(*m.measure), nil
	}
	return state, nil
}

// recordingMetrics captures calls to the collector.
type recordingMetrics struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
	latencies  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (r *recordingMetrics) RecordLatency(string, time.Duration, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies++
}

func (r *recordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric+"/"+labels["status"]] += value
}

func (r *recordingMetrics) RecordGauge(string, float64, map[string]string) {}

func (r *recordingMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric+"/"+labels["metric"]] = append(r.histograms[metric+"/"+labels["metric"]], value)
}

var _ ports.MetricsCollector = (*recordingMetrics)(nil)

func sampleState(voters, candidates, d int) domain.State {
	vs := make(domain.Points, voters)
	for i := range vs {
		vs[i] = make([]float64, d)
	}
	cs := make(domain.Points, candidates)
	for i := range cs {
		cs[i] = make([]float64, d)
	}
	return domain.NewState().WithMultiple(map[string]any{
		domain.KeyVoters.Name():     vs,
		domain.KeyCandidates.Name(): cs,
	})
}

func TestLimitGuard(t *testing.T) {
	limits := Limits{MaxVoters: 10, MaxCandidates: 4, MaxCells: 60}

	tests := []struct {
		name      string
		state     domain.State
		wantLimit string
	}{
		{name: "within limits", state: sampleState(10, 3, 2)},
		{name: "no positions", state: domain.NewState()},
		{name: "too many voters", state: sampleState(11, 3, 1), wantLimit: "voters"},
		{name: "too many candidates", state: sampleState(5, 5, 1), wantLimit: "candidates"},
		{name: "too many cells", state: sampleState(10, 4, 2), wantLimit: "cells"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &mockUnit{name: "costs"}
			metrics := newRecordingMetrics()
			guard, err := NewLimitGuard(limits, next, metrics)
			require.NoError(t, err)
			assert.Equal(t, "costs", guard.Name())

			_, err = guard.Execute(context.Background(), tt.state)
			if tt.wantLimit == "" {
				require.NoError(t, err)
				assert.True(t, next.ran)
				return
			}

			assert.False(t, next.ran)
			assert.ErrorIs(t, err, ErrLimitExceeded)
			var limitErr *LimitExceededError
			require.ErrorAs(t, err, &limitErr)
			assert.Equal(t, tt.wantLimit, limitErr.Limit)
			assert.Equal(t, 1.0, metrics.counters["limit_exceeded_total/"+tt.wantLimit])
		})
	}
}

func TestLimitGuard_Unlimited(t *testing.T) {
	next := &mockUnit{name: "costs"}
	guard, err := NewLimitGuard(Limits{}, next, nil)
	require.NoError(t, err)

	_, err = guard.Execute(context.Background(), sampleState(1000, 50, 3))
	require.NoError(t, err)
	assert.True(t, next.ran)

	_, err = NewLimitGuard(Limits{}, nil, nil)
	assert.Error(t, err)
}

func TestTracedUnit(t *testing.T) {
	t.Run("records measurements", func(t *testing.T) {
		metrics := newRecordingMetrics()
		next := &mockUnit{name: "gi", measure: &domain.Measurement{Metric: "group_inefficiency/label=0", Score: 1.25}}
		traced := NewTracedUnit(next, metrics)

		state := domain.With(domain.NewState(), domain.KeyRule, "sntv").
			WithExecutionContext(domain.ExecutionContext{RunID: "r", SampleIndex: 2})
		out, err := traced.Execute(context.Background(), state)
		require.NoError(t, err)

		ms, _ := domain.Get(out, domain.KeyMeasurements)
		assert.Len(t, ms, 1)
		assert.Equal(t, 1, metrics.latencies)
		assert.Equal(t, 1.0, metrics.counters["unit_executions_total/"])
		assert.Equal(t, []float64{1.25}, metrics.histograms["score/group_inefficiency/label=0"])
	})

	t.Run("records failures", func(t *testing.T) {
		metrics := newRecordingMetrics()
		boom := errors.New("boom")
		traced := NewTracedUnit(&mockUnit{name: "gi", err: boom}, metrics)

		_, err := traced.Execute(context.Background(), domain.NewState())
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1.0, metrics.counters["unit_executions_total/error"])
		assert.Empty(t, metrics.histograms)
	})

	t.Run("nil metrics", func(t *testing.T) {
		traced := NewTracedUnit(&mockUnit{name: "gi"}, nil)
		_, err := traced.Execute(context.Background(), domain.NewState())
		assert.NoError(t, err)
		assert.NoError(t, traced.Validate())
	})
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(reg)

	pm.RecordLatency("unit_execution", 20*time.Millisecond, map[string]string{"unit": "costs"})
	pm.RecordCounter("unit_executions_total", 1, map[string]string{"unit": "costs"})
	pm.RecordCounter("unit_executions_total", 2, map[string]string{"unit": "costs"})
	pm.RecordGauge("samples_in_flight", 4, nil)
	pm.RecordHistogram("score", 1.2, map[string]string{"metric": "random_bloc/t=1", "rule": "bloc"})

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]int)
	for _, f := range families {
		byName[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, map[string]int{
		"metricvote_execution_duration_seconds": 1,
		"metricvote_operations_total":           1,
		"metricvote_score":                      1,
		"metricvote_state":                      1,
	}, byName)

	for _, f := range families {
		switch f.GetName() {
		case "metricvote_operations_total":
			metric := f.GetMetric()[0]
			assert.Equal(t, 3.0, metric.GetCounter().GetValue())
		case "metricvote_state":
			metric := f.GetMetric()[0]
			assert.Equal(t, 4.0, metric.GetGauge().GetValue())
			assert.Equal(t, "unknown", labelValue(metric.GetLabel(), "unit"))
		case "metricvote_score":
			assert.Equal(t, uint64(1), f.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
}

// labelValue returns the value of the named label pair.
func labelValue[L interface {
	GetName() string
	GetValue() string
}](labels []L, name string) string {
	for _, l := range labels {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}
