package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/measure"
	"github.com/ahrav/go-metricvote/internal/ports"
)

var _ ports.Unit = (*RandomBlocUnit)(nil)

// RandomBlocUnit stress-tests the winners against randomly drawn voter
// blocs that are each owed exactly Representatives seats. Voters badly
// served by the winners are more likely to be drawn. Every trial appends
// one measurement carrying the sampled voters.
//
// Randomness comes from domain.KeySeed, so a pipeline run with the same
// execution context reproduces the same blocs.
type RandomBlocUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config RandomBlocConfig
}

// RandomBlocConfig configures a RandomBlocUnit.
type RandomBlocConfig struct {
	// Representatives is the number of seats each sampled bloc is owed.
	Representatives int `yaml:"representatives" json:"representatives" validate:"min=0"`

	// Trials is the number of blocs drawn per evaluation.
	Trials int `yaml:"trials" json:"trials" validate:"min=1,max=100000"`

	// ZeroCostPolicy decides the score when a bloc's best possible cost is zero.
	ZeroCostPolicy measure.ZeroCostPolicy `yaml:"zero_cost_policy" json:"zero_cost_policy" validate:"omitempty,oneof=unit strict"`
}

// NewRandomBlocUnit creates a new RandomBlocUnit.
func NewRandomBlocUnit(name string, config RandomBlocConfig) (*RandomBlocUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &RandomBlocUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *RandomBlocUnit) Name() string { return u.name }

// MetricName returns the name under which the unit records its scores.
func (u *RandomBlocUnit) MetricName() string {
	return fmt.Sprintf("random_bloc/t=%d", u.config.Representatives)
}

// Execute runs the configured number of trials against KeyWinners using
// the matrix under KeyCostMatrix.
func (u *RandomBlocUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	costs, ok := domain.Get(state, KeyCostMatrix)
	if !ok {
		return state, domain.MissingKey(KeyCostMatrix)
	}
	winners, ok := domain.Get(state, domain.KeyWinners)
	if !ok {
		return state, domain.MissingKey(domain.KeyWinners)
	}
	if err := ctx.Err(); err != nil {
		return state, err
	}

	sampler := measure.Sampler{Scorer: scorer(u.config.ZeroCostPolicy)}
	results, err := sampler.Trials(costs, winners, u.config.Representatives, u.config.Trials, unitSource(state, u.name))
	if err != nil {
		return state, fmt.Errorf("%s: %w", u.MetricName(), err)
	}

	metric := u.MetricName()
	measurements := make([]domain.Measurement, len(results))
	for i, res := range results {
		measurements[i] = domain.Measurement{Metric: metric, Score: res.Score, Bloc: res.Voters}
	}
	return state.AppendMeasurements(measurements...), nil
}

// Validate verifies the unit configuration.
func (u *RandomBlocUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters decodes YAML parameters into the unit configuration.
func (u *RandomBlocUnit) UnmarshalParameters(params yaml.Node) error {
	var config RandomBlocConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	u.config = config
	return nil
}

// DefaultRandomBlocConfig draws a single bloc owed one representative.
func DefaultRandomBlocConfig() RandomBlocConfig {
	return RandomBlocConfig{Representatives: 1, Trials: 1, ZeroCostPolicy: measure.ZeroCostUnit}
}

// NewRandomBlocFromConfig creates a RandomBlocUnit from a configuration map.
func NewRandomBlocFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultRandomBlocConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewRandomBlocUnit(id, cfg)
}
