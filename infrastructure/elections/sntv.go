package elections

import (
	"math/rand/v2"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/ports"
)

var _ ports.ElectionRule = SNTV{}

// SNTV is the single non-transferable vote: every voter votes for its
// nearest candidate and the k candidates with the most votes win.
// A voter equidistant from several candidates picks one at random, and
// ties in vote counts are broken at random.
type SNTV struct{}

// Name implements ports.ElectionRule.
func (SNTV) Name() string { return "sntv" }

// SelectWinners implements ports.ElectionRule.
func (r SNTV) SelectWinners(voters, candidates domain.Points, k int, src rand.Source) ([]int, error) {
	costs, err := prepare(r.Name(), voters, candidates, k, src)
	if err != nil {
		return nil, err
	}
	rng := rand.New(src)

	m, n := costs.Dims()
	votes := make([]float64, m)
	for j := range n {
		favorite := topK(negatedColumn(costs, j), 1, rng)[0]
		votes[favorite]++
	}
	return topK(votes, k, rng), nil
}
