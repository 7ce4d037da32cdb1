package units

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-metricvote/internal/domain"
)

// lineState returns a one-dimensional sample: two blocs of three voters
// around 1 and 9, and candidates at 1, 9 and 5.
func lineState() domain.State {
	state := domain.With(domain.NewState(), domain.KeyVoters, domain.Points{{0}, {1}, {2}, {8}, {9}, {10}})
	state = domain.With(state, domain.KeyCandidates, domain.Points{{1}, {9}, {5}})
	state = domain.With(state, domain.KeyLabels, []int{0, 0, 0, 1, 1, 1})
	return state.WithExecutionContext(domain.ExecutionContext{RunID: "test", Seed: 42})
}

// withCosts runs a default CostMatrixUnit over state and sets winners.
func withCosts(t *testing.T, state domain.State, winners []int) domain.State {
	t.Helper()

	unit, err := NewCostMatrixUnit("costs", DefaultCostMatrixConfig())
	require.NoError(t, err)
	state, err = unit.Execute(context.Background(), state)
	require.NoError(t, err)

	return domain.With(state, domain.KeyWinners, winners)
}

// measurements returns the measurements recorded in state.
func measurements(t *testing.T, state domain.State) []domain.Measurement {
	t.Helper()

	ms, ok := domain.Get(state, domain.KeyMeasurements)
	require.True(t, ok, "measurements missing from state")
	return ms
}
