// Package elections provides reference committee-selection rules that
// satisfy ports.ElectionRule. The metric engine does not depend on them;
// the runner uses them to produce winner sets for batches that carry none.
package elections

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/measure"
	"github.com/ahrav/go-metricvote/internal/ports"
)

// registry holds the built-in rules by name.
var registry = map[string]ports.ElectionRule{
	SNTV{}.Name(): SNTV{},
	Bloc{}.Name(): Bloc{},
}

// Lookup returns the built-in rule registered under name.
func Lookup(name string) (ports.ElectionRule, error) {
	rule, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ports.ErrUnknownRule, name, Names())
	}
	return rule, nil
}

// Names returns the names of every built-in rule in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// prepare validates the committee size and builds the Euclidean cost
// matrix every built-in rule ranks candidates by.
func prepare(rule string, voters, candidates domain.Points, k int, src rand.Source) (*measure.CostMatrix, error) {
	if src == nil {
		return nil, ports.NewRuleError(rule, measure.ErrNilSource)
	}
	if k < 0 || k > len(candidates) {
		return nil, ports.NewRuleError(rule, fmt.Errorf("%w: committee size %d for %d candidates",
			ports.ErrInvalidWinners, k, len(candidates)))
	}
	costs, err := measure.NewEuclideanCostMatrix(voters, candidates)
	if err != nil {
		return nil, ports.NewRuleError(rule, err)
	}
	return costs, nil
}

// topK returns the indices of the k largest scores. Equal scores are
// ordered uniformly at random by shuffling before a stable sort.
func topK(scores []float64, k int, rng *rand.Rand) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	winners := slices.Clone(order[:k])
	slices.Sort(winners)
	return winners
}

// negatedColumn returns the distances from voter j to every candidate,
// negated so that topK selects the nearest.
func negatedColumn(costs *measure.CostMatrix, j int) []float64 {
	m, _ := costs.Dims()
	col := make([]float64, m)
	for i := range col {
		col[i] = -costs.At(i, j)
	}
	return col
}
