// Package units provides the evaluation units that implement ports.Unit
// for the representation metric engine. Each unit reads typed values from
// domain.State, runs one step of the evaluation, and writes its result
// back under its own key.
package units

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/measure"
)

// Common errors returned by evaluation units.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrNilRule is returned when an election unit is built without a rule.
	ErrNilRule = errors.New("election rule cannot be nil")

	// ErrTooFewScores is returned when an aggregator receives fewer scores
	// than its configured minimum.
	ErrTooFewScores = errors.New("too few scores for aggregation")
)

// KeyCostMatrix stores the cost matrix built for the current sample. The
// matrix is immutable, so State shares it between units without copying.
var KeyCostMatrix = domain.NewKey[*measure.CostMatrix]("cost_matrix")

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// decodeConfig overlays a raw parameter map onto cfg, which should already
// hold the unit's defaults, and validates the result.
func decodeConfig[T any](config map[string]any, cfg *T) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// unitSource derives the random source a unit uses for one evaluation.
// The seed comes from the execution context; the stream is keyed on the
// unit name so sibling units draw independent sequences.
func unitSource(state domain.State, name string) rand.Source {
	seed, _ := domain.Get(state, domain.KeySeed)
	h := fnv.New64a()
	h.Write([]byte(name))
	return rand.NewPCG(seed, h.Sum64())
}

// scorer builds the measure.Scorer for a configured zero-cost policy.
func scorer(policy measure.ZeroCostPolicy) measure.Scorer {
	return measure.Scorer{ZeroCost: policy}
}

// summarize fills every descriptive field of a Summary from scores.
// Value and Method are left for the calling aggregator.
func summarize(scores []float64) (domain.Summary, error) {
	if len(scores) == 0 {
		return domain.Summary{}, domain.ErrNoScores
	}
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return domain.Summary{}, fmt.Errorf("invalid score at index %d: %f", i, s)
		}
	}

	sorted := sortedCopy(scores)
	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) == 1 {
		std = 0
	}

	return domain.Summary{
		Count:  len(sorted),
		Mean:   mean,
		StdDev: std,
		Median: median(sorted),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
	}, nil
}

// sortedCopy returns an ascending copy of scores.
func sortedCopy(scores []float64) []float64 {
	sorted := slices.Clone(scores)
	slices.Sort(sorted)
	return sorted
}

// median returns the middle value of sorted, averaging the two middle
// values for an even count.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// executeAggregator is the shared Execute body of the aggregator units:
// it reduces KeyScores with agg and stores the Summary under KeySummary.
func executeAggregator(state domain.State, agg domain.Aggregator) (domain.State, error) {
	scores, ok := domain.Get(state, domain.KeyScores)
	if !ok {
		return state, domain.MissingKey(domain.KeyScores)
	}

	summary, err := agg.Aggregate(scores)
	if err != nil {
		return state, fmt.Errorf("aggregation failed: %w", err)
	}
	if rule, ok := domain.Get(state, domain.KeyRule); ok {
		summary.Rule = rule
	}

	return domain.With(state, domain.KeySummary, &summary), nil
}
