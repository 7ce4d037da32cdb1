package measure

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

var _ mat.Matrix = (*CostMatrix)(nil)

// CostMatrix is a dense m x n table whose entry (i, j) is the distance
// from candidate i to voter j. It is read-only once built; it satisfies
// mat.Matrix so it composes with the gonum routines used by the evaluator
// but exposes no mutating methods.
type CostMatrix struct {
	dense *mat.Dense
}

// Dims returns the number of candidates (rows) and voters (columns).
func (c *CostMatrix) Dims() (candidates, voters int) { return c.dense.Dims() }

// At returns the distance from candidate i to voter j.
func (c *CostMatrix) At(i, j int) float64 { return c.dense.At(i, j) }

// T returns the implicit transpose (voters x candidates).
func (c *CostMatrix) T() mat.Matrix { return mat.Transpose{Matrix: c} }

// Row returns a copy of candidate i's distances to every voter.
func (c *CostMatrix) Row(i int) []float64 { return mat.Row(nil, i, c.dense) }

// Immutable marks the matrix as safe to share between evaluation states
// without copying.
func (c *CostMatrix) Immutable() {}

// Builder selects how a CostMatrix is constructed. The zero value builds
// Euclidean matrices through the generic path.
type Builder struct {
	// Metric names the built-in distance to use when Distance is nil.
	Metric Metric

	// Distance overrides Metric with an arbitrary distance function.
	Distance DistanceFunc

	// FastPath enables the vectorized Euclidean construction. It only
	// applies when Distance is nil and Metric is Euclidean.
	FastPath bool
}

// Build constructs the cost matrix for the given positions.
func (b Builder) Build(voters, candidates [][]float64) (*CostMatrix, error) {
	if b.Distance != nil {
		return NewCostMatrix(voters, candidates, b.Distance)
	}
	if b.FastPath && b.Metric.IsEuclidean() {
		return NewEuclideanCostMatrix(voters, candidates)
	}
	dist, err := b.Metric.Func()
	if err != nil {
		return nil, err
	}
	return NewCostMatrix(voters, candidates, dist)
}

// NewCostMatrix builds the matrix by calling dist for every
// (candidate, voter) pair. It works for any valid distance function.
func NewCostMatrix(voters, candidates [][]float64, dist DistanceFunc) (*CostMatrix, error) {
	if dist == nil {
		return nil, ErrNilDistance
	}
	if _, err := checkPositions(voters, candidates); err != nil {
		return nil, err
	}

	m, n := len(candidates), len(voters)
	data := make([]float64, m*n)
	for i, cand := range candidates {
		row := data[i*n : (i+1)*n]
		for j, voter := range voters {
			row[j] = dist(voter, cand)
		}
	}
	return &CostMatrix{dense: mat.NewDense(m, n, data)}, nil
}

// NewEuclideanCostMatrix builds a Euclidean cost matrix without per-pair
// function calls. Voters are packed into one contiguous row-major buffer
// and each candidate row is filled by elementwise subtraction, squaring,
// summation over the coordinate axis and a square root. The result is
// identical to NewCostMatrix(voters, candidates, Euclidean).
func NewEuclideanCostMatrix(voters, candidates [][]float64) (*CostMatrix, error) {
	d, err := checkPositions(voters, candidates)
	if err != nil {
		return nil, err
	}

	m, n := len(candidates), len(voters)
	packed := make([]float64, n*d)
	for j, voter := range voters {
		copy(packed[j*d:(j+1)*d], voter)
	}

	data := make([]float64, m*n)
	for i, cand := range candidates {
		row := data[i*n : (i+1)*n]
		for j := range row {
			voter := packed[j*d : (j+1)*d]
			var sum float64
			for x, v := range voter {
				diff := v - cand[x]
				sum += diff * diff
			}
			row[j] = math.Sqrt(sum)
		}
	}
	return &CostMatrix{dense: mat.NewDense(m, n, data)}, nil
}

// checkPositions validates both position sets and returns their shared
// dimensionality.
func checkPositions(voters, candidates [][]float64) (int, error) {
	if len(voters) == 0 || len(candidates) == 0 {
		return 0, ErrEmptyPositions
	}
	d := len(voters[0])
	for j, v := range voters {
		if len(v) != d {
			return 0, &DimensionError{Set: "voters", Index: j, Want: d, Got: len(v)}
		}
	}
	for i, c := range candidates {
		if len(c) != d {
			return 0, &DimensionError{Set: "candidates", Index: i, Want: d, Got: len(c)}
		}
	}
	return d, nil
}
