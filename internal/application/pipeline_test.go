package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-metricvote/internal/domain"
)

// stepExec appends one measurement named after itself, optionally after a
// delay, or fails with err.
type stepExec struct {
	id    string
	delay time.Duration
	err   error
	calls atomic.Int32
}

func (s *stepExec) ID() string { return s.id }

func (s *stepExec) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
	if s.err != nil {
		return state, s.err
	}
	return state.AppendMeasurements(domain.Measurement{Metric: s.id, Score: 1}), nil
}

func metricNames(t *testing.T, state domain.State) []string {
	t.Helper()
	ms, _ := domain.Get(state, domain.KeyMeasurements)
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Metric
	}
	return names
}

func TestPipeline_ExecutesInOrder(t *testing.T) {
	p := NewPipeline("p")
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, p.Add(&stepExec{id: id}))
	}

	out, err := p.Execute(context.Background(), domain.NewState())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, metricNames(t, out))
	assert.Equal(t, "p", p.ID())
}

func TestPipeline_StopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	last := &stepExec{id: "c"}

	p := NewPipeline("p")
	require.NoError(t, p.Add(&stepExec{id: "a"}))
	require.NoError(t, p.Add(&stepExec{id: "b", err: boom}))
	require.NoError(t, p.Add(last))

	out, err := p.Execute(context.Background(), domain.NewState())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "execution failed at b")
	assert.Equal(t, []string{"a"}, metricNames(t, out))
	assert.Zero(t, last.calls.Load())
}

func TestPipeline_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step := &stepExec{id: "a"}
	p := NewPipeline("p")
	require.NoError(t, p.Add(step))

	_, err := p.Execute(ctx, domain.NewState())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, step.calls.Load())
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline("p")
	require.NoError(t, p.Add(&stepExec{id: "a"}))

	assert.Error(t, p.Add(nil))
	assert.ErrorContains(t, p.Add(&stepExec{id: "a"}), "already exists")

	execs := p.Executables()
	require.Len(t, execs, 1)
	execs[0] = nil
	assert.NotNil(t, p.Executables()[0], "Executables must return a copy")
}

func TestLayer_MergesInInsertionOrder(t *testing.T) {
	l := NewLayer("l")
	// The first executable finishes last; the merge must not depend on it.
	require.NoError(t, l.Add(&stepExec{id: "slow", delay: 20 * time.Millisecond}))
	require.NoError(t, l.Add(&stepExec{id: "fast"}))
	require.NoError(t, l.Add(&stepExec{id: "mid", delay: 5 * time.Millisecond}))

	base := domain.NewState().AppendMeasurements(domain.Measurement{Metric: "base"})
	out, err := l.Execute(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "slow", "fast", "mid"}, metricNames(t, out))
	assert.Equal(t, []string{"base"}, metricNames(t, base), "input state must be unchanged")
}

func TestLayer_Empty(t *testing.T) {
	base := domain.With(domain.NewState(), domain.KeyRule, "sntv")
	out, err := NewLayer("l").Execute(context.Background(), base)
	require.NoError(t, err)
	rule, ok := domain.Get(out, domain.KeyRule)
	require.True(t, ok)
	assert.Equal(t, "sntv", rule)
}

func TestLayer_ErrorCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	l := NewLayer("l")
	require.NoError(t, l.Add(&stepExec{id: "fail", err: boom}))
	require.NoError(t, l.Add(&stepExec{id: "slow", delay: time.Minute}))

	start := time.Now()
	_, err := l.Execute(context.Background(), domain.NewState())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "layer l")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLayer_ConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	l := NewLayer("l")
	l.SetConcurrencyLimit(2)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, l.Add(&gaugeExec{id: id, inFlight: &inFlight, peak: &peak}))
	}

	_, err := l.Execute(context.Background(), domain.NewState())
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

// gaugeExec tracks the peak number of concurrent executions.
type gaugeExec struct {
	id             string
	inFlight, peak *atomic.Int32
}

func (g *gaugeExec) ID() string { return g.id }

func (g *gaugeExec) Execute(_ context.Context, state domain.State) (domain.State, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return state, nil
}

func TestMeasurementMerge(t *testing.T) {
	base := domain.NewState().AppendMeasurements(domain.Measurement{Metric: "base"})
	branchA := base.AppendMeasurements(domain.Measurement{Metric: "a1"}, domain.Measurement{Metric: "a2"})
	branchB := domain.With(base, domain.KeyRule, "ignored").AppendMeasurements(domain.Measurement{Metric: "b"})

	tests := []struct {
		name    string
		states  []domain.State
		want    []string
		wantErr bool
	}{
		{name: "concatenates branch additions", states: []domain.State{branchA, branchB}, want: []string{"base", "a1", "a2", "b"}},
		{name: "order follows input", states: []domain.State{branchB, branchA}, want: []string{"base", "b", "a1", "a2"}},
		{name: "no additions keeps base", states: []domain.State{base, base}, want: []string{"base"}},
		{name: "dropped measurements rejected", states: []domain.State{domain.NewState()}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := MeasurementMerge{}.Merge(base, tt.states)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidState)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, metricNames(t, out))
			_, hasRule := domain.Get(out, domain.KeyRule)
			assert.False(t, hasRule, "non-measurement keys come from the base state")
		})
	}
}
