package units

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/measure"
)

func TestRandomBlocUnit_Execute(t *testing.T) {
	unit, err := NewRandomBlocUnit("stress", RandomBlocConfig{Representatives: 1, Trials: 5})
	require.NoError(t, err)

	out, err := unit.Execute(context.Background(), withCosts(t, lineState(), []int{1, 2}))
	require.NoError(t, err)

	wantSize, err := measure.BlocSize(6, 2, 1)
	require.NoError(t, err)

	ms := measurements(t, out)
	require.Len(t, ms, 5)
	for _, m := range ms {
		assert.Equal(t, "random_bloc/t=1", m.Metric)
		assert.GreaterOrEqual(t, m.Score, 1.0)
		assert.Len(t, m.Bloc, wantSize)
		assert.IsIncreasing(t, m.Bloc)
	}
}

func TestRandomBlocUnit_Reproducible(t *testing.T) {
	unit, err := NewRandomBlocUnit("stress", RandomBlocConfig{Representatives: 1, Trials: 8})
	require.NoError(t, err)

	state := withCosts(t, lineState(), []int{1, 2})
	first, err := unit.Execute(context.Background(), state)
	require.NoError(t, err)
	second, err := unit.Execute(context.Background(), state)
	require.NoError(t, err)

	if diff := cmp.Diff(measurements(t, first), measurements(t, second)); diff != "" {
		t.Errorf("same seed produced different blocs (-first +second):\n%s", diff)
	}
}

func TestRandomBlocUnit_ZeroEntitlement(t *testing.T) {
	unit, err := NewRandomBlocUnit("stress", RandomBlocConfig{Representatives: 0, Trials: 2})
	require.NoError(t, err)

	out, err := unit.Execute(context.Background(), withCosts(t, lineState(), []int{1, 2}))
	require.NoError(t, err)

	for _, m := range measurements(t, out) {
		assert.Equal(t, 0.0, m.Score)
		assert.Empty(t, m.Bloc)
	}
}

func TestRandomBlocUnit_Errors(t *testing.T) {
	unit, err := NewRandomBlocUnit("stress", RandomBlocConfig{Representatives: 3, Trials: 1})
	require.NoError(t, err)

	_, err = unit.Execute(context.Background(), withCosts(t, lineState(), []int{1, 2}))
	assert.ErrorIs(t, err, measure.ErrEntitlementTooLarge)

	_, err = unit.Execute(context.Background(), lineState())
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = unit.Execute(ctx, withCosts(t, lineState(), []int{1, 2}))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewRandomBlocFromConfig("stress", map[string]any{"trials": 0})
	assert.ErrorContains(t, err, "configuration validation failed")
}
