package measure

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TotalCost returns the sum of every entry of the cost matrix.
func TotalCost(c mat.Matrix) float64 { return mat.Sum(c) }

// CandidateCosts returns, for each candidate row, its summed distance to
// every voter column.
func CandidateCosts(c mat.Matrix) []float64 {
	rows, cols := c.Dims()
	sums := make([]float64, rows)
	buf := make([]float64, cols)
	for i := range sums {
		sums[i] = floats.Sum(mat.Row(buf, i, c))
	}
	return sums
}

// VoterCosts returns, for each voter column, its summed distance to every
// candidate row.
func VoterCosts(c mat.Matrix) []float64 {
	rows, cols := c.Dims()
	sums := make([]float64, cols)
	buf := make([]float64, rows)
	for j := range sums {
		sums[j] = floats.Sum(mat.Col(buf, j, c))
	}
	return sums
}

// BestSubsetCost returns the lowest total cost of serving every voter
// column with a subset of size candidate rows.
//
// The selection is greedy on aggregate row cost: rows are ranked by their
// summed distance across the voter columns and the size cheapest sums are
// added. It is a proxy for cheapest coverage, not a min-cost bipartite
// assignment, and must stay that way for scores to remain comparable.
func BestSubsetCost(c mat.Matrix, size int) (float64, error) {
	if size < 0 {
		return 0, fmt.Errorf("%w: size=%d", ErrNegativeSize, size)
	}
	rows, _ := c.Dims()
	if size > rows {
		return 0, &SizeError{Size: size, Available: rows}
	}

	costs := CandidateCosts(c)
	slices.Sort(costs)
	return floats.Sum(costs[:size]), nil
}

// Restrict returns a read-only view of c limited to the given rows and
// columns, in the order given. A nil index slice keeps every row or
// column; an empty non-nil slice keeps none. Indices must be in range.
//
// Unlike mat.Dense, the view may have zero rows or columns, which is how
// an empty bloc or empty winner set is represented.
func Restrict(c mat.Matrix, rows, cols []int) mat.Matrix {
	return &restriction{base: c, rows: rows, cols: cols}
}

type restriction struct {
	base mat.Matrix
	rows []int
	cols []int
}

func (r *restriction) Dims() (int, int) {
	rows, cols := r.base.Dims()
	if r.rows != nil {
		rows = len(r.rows)
	}
	if r.cols != nil {
		cols = len(r.cols)
	}
	return rows, cols
}

func (r *restriction) At(i, j int) float64 {
	if r.rows != nil {
		i = r.rows[i]
	}
	if r.cols != nil {
		j = r.cols[j]
	}
	return r.base.At(i, j)
}

func (r *restriction) T() mat.Matrix { return mat.Transpose{Matrix: r} }
