package measure

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Labels given to voters when a sampled bloc is handed to the Scorer.
const (
	outsideBloc = 0
	insideBloc  = 1
)

// BlocResult is the outcome of one random bloc stress test.
type BlocResult struct {
	// Score is the group inefficiency of the winners for the sampled bloc.
	Score float64 `json:"score"`

	// Voters holds the sampled voter indices in ascending order.
	Voters []int `json:"voters"`
}

// Sampler stress-tests a winner set against randomly drawn voter blocs.
// It owns no randomness; every call takes its source explicitly so that
// concurrent callers with distinct sources stay reproducible.
type Sampler struct {
	// Scorer scores each sampled bloc.
	Scorer Scorer
}

// SampleAndScore draws a bloc of voters entitled to exactly t
// representatives and returns its inefficiency score together with the
// sampled voters.
//
// Voters are drawn without replacement with probability proportional to
// weights. When weights is nil the greedy vulnerability heuristic from
// GreedyWeights is used. An entitlement of zero yields a score of 0 and
// an empty bloc.
func (s Sampler) SampleAndScore(
	c mat.Matrix,
	winners []int,
	t int,
	weights []float64,
	src rand.Source,
) (BlocResult, error) {
	if src == nil {
		return BlocResult{}, ErrNilSource
	}
	m, n := c.Dims()
	if err := ValidateWinners(winners, m); err != nil {
		return BlocResult{}, err
	}

	size, err := BlocSize(n, len(winners), t)
	if err != nil {
		return BlocResult{}, err
	}
	if size == 0 {
		return BlocResult{Score: 0, Voters: []int{}}, nil
	}

	if weights == nil {
		if weights, err = GreedyWeights(c, winners, t); err != nil {
			return BlocResult{}, err
		}
	} else if err := validateWeights(weights, n); err != nil {
		return BlocResult{}, err
	}

	voters, err := drawBloc(weights, size, src)
	if err != nil {
		return BlocResult{}, err
	}

	labels := make([]int, n)
	for _, v := range voters {
		labels[v] = insideBloc
	}
	score, err := s.Scorer.Score(c, winners, labels, insideBloc)
	if err != nil {
		return BlocResult{}, fmt.Errorf("score sampled bloc: %w", err)
	}
	return BlocResult{Score: score, Voters: voters}, nil
}

// Trials runs SampleAndScore repeatedly with the same source. Greedy
// weights are computed once and shared by every trial.
func (s Sampler) Trials(c mat.Matrix, winners []int, t, trials int, src rand.Source) ([]BlocResult, error) {
	if trials < 0 {
		return nil, fmt.Errorf("%w: trials=%d", ErrNegativeSize, trials)
	}
	if src == nil {
		return nil, ErrNilSource
	}

	var weights []float64
	if t > 0 && t <= len(winners) {
		var err error
		if weights, err = GreedyWeights(c, winners, t); err != nil {
			return nil, err
		}
	}

	results := make([]BlocResult, 0, trials)
	for range trials {
		res, err := s.SampleAndScore(c, winners, t, weights, src)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// BlocSize returns the smallest number of voters, out of n, that a
// committee of k winners owes exactly t representatives under
// ProportionalSize.
func BlocSize(n, k, t int) (int, error) {
	switch {
	case t < 0:
		return 0, fmt.Errorf("%w: entitlement=%d", ErrNegativeSize, t)
	case t == 0:
		return 0, nil
	case t > k:
		return 0, fmt.Errorf("%w: entitlement=%d, winners=%d", ErrEntitlementTooLarge, t, k)
	}

	// Start just below the integer estimate and walk to the first size
	// whose float entitlement reaches t.
	size := max(t*n/k-2, 0)
	for size > 0 && ProportionalSize(size, n, k) >= t {
		size--
	}
	for size < n && ProportionalSize(size, n, k) < t {
		size++
	}
	if got := ProportionalSize(size, n, k); got != t {
		return 0, fmt.Errorf("%w: voters=%d, entitlement=%d, winners=%d",
			ErrUnreachableEntitlement, n, t, k)
	}
	return size, nil
}

// GreedyWeights estimates how poorly each voter is served by the winners.
// For voter j it divides the sum of the t smallest winner distances by the
// sum of the t smallest distances to any candidate, then normalizes the
// ratios to sum to 1.
//
// A 0/0 ratio counts as 1. A positive winner cost over a zero candidate
// cost takes the largest finite ratio seen, so such voters are weighted
// as the worst served without breaking normalization.
func GreedyWeights(c mat.Matrix, winners []int, t int) ([]float64, error) {
	if t < 0 {
		return nil, fmt.Errorf("%w: entitlement=%d", ErrNegativeSize, t)
	}
	if t > len(winners) {
		return nil, fmt.Errorf("%w: entitlement=%d, winners=%d", ErrEntitlementTooLarge, t, len(winners))
	}
	m, n := c.Dims()
	if err := ValidateWinners(winners, m); err != nil {
		return nil, err
	}

	ratios := make([]float64, n)
	unbounded := make([]bool, n)
	maxFinite := 1.0
	col := make([]float64, m)
	winnerCol := make([]float64, len(winners))
	for j := range n {
		mat.Col(col, j, c)
		for i, w := range winners {
			winnerCol[i] = col[w]
		}
		slices.Sort(col)
		slices.Sort(winnerCol)
		winnerCost := floats.Sum(winnerCol[:t])
		bestCost := floats.Sum(col[:t])

		switch {
		case bestCost == 0 && winnerCost == 0:
			ratios[j] = 1
		case bestCost == 0:
			unbounded[j] = true
		default:
			ratios[j] = winnerCost / bestCost
			maxFinite = max(maxFinite, ratios[j])
		}
	}
	for j, u := range unbounded {
		if u {
			ratios[j] = maxFinite
		}
	}

	floats.Scale(1/floats.Sum(ratios), ratios)
	return ratios, nil
}

func validateWeights(weights []float64, n int) error {
	if len(weights) != n {
		return fmt.Errorf("%w: weights=%d, voters=%d", ErrInvalidWeights, len(weights), n)
	}
	for j, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: weight %g at voter %d", ErrInvalidWeights, w, j)
		}
	}
	if floats.Sum(weights) <= 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	return nil
}

// drawBloc samples size distinct indices with probability proportional
// to weights and returns them sorted.
func drawBloc(weights []float64, size int, src rand.Source) ([]int, error) {
	sampler := sampleuv.NewWeighted(slices.Clone(weights), src)
	bloc := make([]int, 0, size)
	for len(bloc) < size {
		idx, ok := sampler.Take()
		if !ok {
			return nil, fmt.Errorf("%w: only %d voters have positive weight, need %d",
				ErrInvalidWeights, len(bloc), size)
		}
		bloc = append(bloc, idx)
	}
	slices.Sort(bloc)
	return bloc, nil
}
