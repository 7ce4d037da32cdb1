package units

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/measure"
)

func TestCostMatrixUnit_Execute(t *testing.T) {
	configs := map[string]CostMatrixConfig{
		"fast euclidean":    DefaultCostMatrixConfig(),
		"generic euclidean": {Distance: measure.MetricEuclidean},
		"manhattan":         {Distance: measure.MetricManhattan},
		"chebyshev":         {Distance: measure.MetricChebyshev},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			unit, err := NewCostMatrixUnit("costs", cfg)
			require.NoError(t, err)

			out, err := unit.Execute(context.Background(), lineState())
			require.NoError(t, err)

			costs, ok := domain.Get(out, KeyCostMatrix)
			require.True(t, ok)
			m, n := costs.Dims()
			assert.Equal(t, 3, m)
			assert.Equal(t, 6, n)

			// In one dimension every built-in metric is |a - b|.
			assert.Equal(t, []float64{1, 0, 1, 7, 8, 9}, costs.Row(0))
			assert.Equal(t, []float64{5, 4, 3, 3, 4, 5}, costs.Row(2))
		})
	}
}

func TestCostMatrixUnit_SharedNotCopied(t *testing.T) {
	state := withCosts(t, lineState(), []int{0})

	first, _ := domain.Get(state, KeyCostMatrix)
	second, _ := domain.Get(state, KeyCostMatrix)
	assert.Same(t, first, second)
}

func TestCostMatrixUnit_Errors(t *testing.T) {
	unit, err := NewCostMatrixUnit("costs", DefaultCostMatrixConfig())
	require.NoError(t, err)

	_, err = unit.Execute(context.Background(), domain.NewState())
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	ragged := domain.With(lineState(), domain.KeyCandidates, domain.Points{{1, 1}})
	_, err = unit.Execute(context.Background(), ragged)
	assert.ErrorIs(t, err, measure.ErrDimensionMismatch)

	_, err = NewCostMatrixFromConfig("costs", map[string]any{"distance": "cosine"})
	assert.ErrorContains(t, err, "configuration validation failed")

	_, err = NewCostMatrixUnit("", DefaultCostMatrixConfig())
	assert.ErrorIs(t, err, ErrEmptyUnitName)
}
