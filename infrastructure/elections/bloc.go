package elections

import (
	"math/rand/v2"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/ports"
)

var _ ports.ElectionRule = Bloc{}

// Bloc is bloc approval voting: every voter approves its k nearest
// candidates and the k candidates with the most approvals win. Ties at
// a voter's approval boundary and in approval counts are broken at random.
type Bloc struct{}

// Name implements ports.ElectionRule.
func (Bloc) Name() string { return "bloc" }

// SelectWinners implements ports.ElectionRule.
func (r Bloc) SelectWinners(voters, candidates domain.Points, k int, src rand.Source) ([]int, error) {
	costs, err := prepare(r.Name(), voters, candidates, k, src)
	if err != nil {
		return nil, err
	}
	rng := rand.New(src)

	m, n := costs.Dims()
	approvals := make([]float64, m)
	for j := range n {
		for _, c := range topK(negatedColumn(costs, j), k, rng) {
			approvals[c]++
		}
	}
	return topK(approvals, k, rng), nil
}
