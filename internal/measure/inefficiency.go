package measure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ZeroCostPolicy decides what a score is when the best achievable cost
// over the whole candidate pool is zero.
type ZeroCostPolicy string

const (
	// ZeroCostUnit scores 1 when both the winner-restricted and the
	// unrestricted costs are zero, and fails with ErrUndefinedScore when
	// only the unrestricted cost is zero.
	ZeroCostUnit ZeroCostPolicy = "unit"

	// ZeroCostStrict fails with ErrUndefinedScore whenever the
	// unrestricted cost is zero.
	ZeroCostStrict ZeroCostPolicy = "strict"
)

// ProportionalSize returns the number of representatives a bloc of
// blocSize voters out of n is owed by a committee of k winners:
// floor(blocSize / n * k), evaluated in float64 in that order.
func ProportionalSize(blocSize, n, k int) int {
	if n == 0 {
		return 0
	}
	return int(float64(blocSize) / float64(n) * float64(k))
}

// Scorer computes group inefficiency scores. The zero value uses
// ZeroCostUnit. Scorer holds no mutable state and is safe for concurrent
// use.
type Scorer struct {
	// ZeroCost selects the policy applied when the unrestricted best cost
	// is zero.
	ZeroCost ZeroCostPolicy
}

// Score returns the inefficiency of the winner set for the voters
// labelled target, with the representative set sized proportionally to
// the bloc's share of the electorate.
func (s Scorer) Score(c mat.Matrix, winners, labels []int, target int) (float64, error) {
	_, n := c.Dims()
	if len(labels) != n {
		return 0, fmt.Errorf("%w: labels=%d, voters=%d", ErrLabelMismatch, len(labels), n)
	}
	size := ProportionalSize(countLabel(labels, target), n, len(winners))
	return s.ScoreWithSize(c, winners, labels, target, size)
}

// ScoreWithSize is Score with an explicit representative set size.
//
// The score is cost1 / cost2, where cost1 is the best subset cost for the
// bloc using only winner rows and cost2 is the best subset cost using all
// candidate rows. Because the winners are a subset of the candidates the
// score is at least 1. A size of zero scores 0: no representation is owed.
func (s Scorer) ScoreWithSize(c mat.Matrix, winners, labels []int, target, size int) (float64, error) {
	m, n := c.Dims()
	if len(labels) != n {
		return 0, fmt.Errorf("%w: labels=%d, voters=%d", ErrLabelMismatch, len(labels), n)
	}
	if size < 0 {
		return 0, fmt.Errorf("%w: size=%d", ErrNegativeSize, size)
	}
	if size == 0 {
		return 0, nil
	}
	if err := ValidateWinners(winners, m); err != nil {
		return 0, err
	}

	blocDists := Restrict(c, nil, labelColumns(labels, target))

	cost1, err := BestSubsetCost(Restrict(blocDists, winners, nil), size)
	if err != nil {
		return 0, fmt.Errorf("winner subset: %w", err)
	}
	cost2, err := BestSubsetCost(blocDists, size)
	if err != nil {
		return 0, fmt.Errorf("candidate subset: %w", err)
	}
	return s.ratio(cost1, cost2)
}

func (s Scorer) ratio(cost1, cost2 float64) (float64, error) {
	if cost2 == 0 {
		if cost1 == 0 && s.ZeroCost != ZeroCostStrict {
			return 1, nil
		}
		return 0, fmt.Errorf("%w: winner cost=%g, best cost=0", ErrUndefinedScore, cost1)
	}
	score := cost1 / cost2
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%w: winner cost=%g, best cost=%g", ErrUndefinedScore, cost1, cost2)
	}
	return score, nil
}

// ValidateWinners checks that every winner index is within [0, m) and
// appears once.
func ValidateWinners(winners []int, m int) error {
	seen := make(map[int]struct{}, len(winners))
	for _, w := range winners {
		if w < 0 || w >= m {
			return fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidWinners, w, m)
		}
		if _, dup := seen[w]; dup {
			return fmt.Errorf("%w: index %d repeated", ErrInvalidWinners, w)
		}
		seen[w] = struct{}{}
	}
	return nil
}

func countLabel(labels []int, target int) int {
	var count int
	for _, l := range labels {
		if l == target {
			count++
		}
	}
	return count
}

// labelColumns returns the voter indices carrying target. The result is
// never nil so that an empty bloc restricts to zero columns.
func labelColumns(labels []int, target int) []int {
	cols := make([]int, 0, len(labels))
	for j, l := range labels {
		if l == target {
			cols = append(cols, j)
		}
	}
	return cols
}
