package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// fixedCosts is a 3 x 4 cost matrix with distinct row and column sums.
func fixedCosts() mat.Matrix {
	return mat.NewDense(3, 4, []float64{
		1, 2, 3, 4, // 10
		0, 0, 1, 1, // 2
		5, 5, 5, 5, // 20
	})
}

func TestAggregateCosts(t *testing.T) {
	costs := fixedCosts()

	assert.Equal(t, 32.0, TotalCost(costs))
	assert.Equal(t, []float64{10, 2, 20}, CandidateCosts(costs))
	assert.Equal(t, []float64{6, 7, 9, 10}, VoterCosts(costs))
}

func TestBestSubsetCost(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		want    float64
		wantErr error
	}{
		{name: "empty subset costs nothing", size: 0, want: 0},
		{name: "cheapest row", size: 1, want: 2},
		{name: "two cheapest rows", size: 2, want: 12},
		{name: "all rows", size: 3, want: 32},
		{name: "too large", size: 4, wantErr: ErrSizeTooLarge},
		{name: "negative", size: -1, wantErr: ErrNegativeSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BestSubsetCost(fixedCosts(), tt.size)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBestSubsetCost_SizeErrorDetails(t *testing.T) {
	_, err := BestSubsetCost(fixedCosts(), 5)
	var sizeErr *SizeError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, 5, sizeErr.Size)
	assert.Equal(t, 3, sizeErr.Available)
}

// TestBestSubsetCost_GreedyProxy pins the row-sum proxy: an optimal
// assignment would pair each voter with its own zero-cost candidate, but
// the greedy selection ranks whole rows and keeps the approximation error.
func TestBestSubsetCost_GreedyProxy(t *testing.T) {
	costs := mat.NewDense(3, 2, []float64{
		0, 10,
		10, 0,
		4, 4,
	})

	got, err := BestSubsetCost(costs, 2)
	require.NoError(t, err)
	assert.Equal(t, 18.0, got)
}

func TestRestrict(t *testing.T) {
	costs := fixedCosts()

	view := Restrict(costs, []int{2, 0}, []int{3, 1})
	r, c := view.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 5.0, view.At(0, 0))
	assert.Equal(t, 2.0, view.At(1, 1))
	assert.Equal(t, []float64{10, 6}, CandidateCosts(view))

	tr := view.T()
	assert.Equal(t, view.At(0, 1), tr.At(1, 0))

	t.Run("nil keeps every index", func(t *testing.T) {
		all := Restrict(costs, nil, nil)
		assert.Equal(t, CandidateCosts(costs), CandidateCosts(all))
	})

	t.Run("empty selection has zero width", func(t *testing.T) {
		empty := Restrict(costs, nil, []int{})
		r, c := empty.Dims()
		assert.Equal(t, 3, r)
		assert.Equal(t, 0, c)
		assert.Equal(t, []float64{0, 0, 0}, CandidateCosts(empty))

		got, err := BestSubsetCost(empty, 2)
		require.NoError(t, err)
		assert.Zero(t, got)
	})
}
