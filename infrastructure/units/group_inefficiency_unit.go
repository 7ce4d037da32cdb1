package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/measure"
	"github.com/ahrav/go-metricvote/internal/ports"
)

var _ ports.Unit = (*GroupInefficiencyUnit)(nil)

// GroupInefficiencyUnit scores how well the winners serve one labelled
// bloc of voters compared with the best representatives the whole
// candidate pool could offer that bloc. A score of 1 means the winners
// are as good as any candidates; larger scores mean the bloc is worse off.
// An empty bloc, or one owed no representatives, scores exactly 0.
//
// With Overall set, every voter is treated as one bloc, which measures the
// committee against the whole electorate.
type GroupInefficiencyUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config GroupInefficiencyConfig
}

// GroupInefficiencyConfig configures a GroupInefficiencyUnit.
type GroupInefficiencyConfig struct {
	// Label is the bloc label to score. Ignored when Overall is set.
	Label int `yaml:"label" json:"label"`

	// Overall scores the whole electorate as a single bloc.
	Overall bool `yaml:"overall" json:"overall"`

	// Size fixes the number of representatives instead of deriving it
	// from the bloc's share of the electorate.
	Size *int `yaml:"size,omitempty" json:"size,omitempty" validate:"omitempty,min=0"`

	// ZeroCostPolicy decides the score when the bloc's best possible cost is zero.
	ZeroCostPolicy measure.ZeroCostPolicy `yaml:"zero_cost_policy" json:"zero_cost_policy" validate:"omitempty,oneof=unit strict"`

	// Metric overrides the measurement name recorded in the state.
	Metric string `yaml:"metric,omitempty" json:"metric,omitempty"`
}

// NewGroupInefficiencyUnit creates a new GroupInefficiencyUnit.
func NewGroupInefficiencyUnit(name string, config GroupInefficiencyConfig) (*GroupInefficiencyUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &GroupInefficiencyUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *GroupInefficiencyUnit) Name() string { return u.name }

// MetricName returns the name under which the unit records its score.
func (u *GroupInefficiencyUnit) MetricName() string {
	switch {
	case u.config.Metric != "":
		return u.config.Metric
	case u.config.Overall:
		return "group_inefficiency/overall"
	case u.config.Size != nil:
		return fmt.Sprintf("group_inefficiency/label=%d/size=%d", u.config.Label, *u.config.Size)
	default:
		return fmt.Sprintf("group_inefficiency/label=%d", u.config.Label)
	}
}

// Execute scores KeyWinners against the bloc using the matrix stored
// under KeyCostMatrix, and appends a domain.Measurement to the state.
// domain.KeyLabels is required unless Overall is set.
func (u *GroupInefficiencyUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	costs, ok := domain.Get(state, KeyCostMatrix)
	if !ok {
		return state, domain.MissingKey(KeyCostMatrix)
	}
	winners, ok := domain.Get(state, domain.KeyWinners)
	if !ok {
		return state, domain.MissingKey(domain.KeyWinners)
	}

	labels, target := u.labels(state, costs)
	if labels == nil {
		return state, domain.MissingKey(domain.KeyLabels)
	}

	s := scorer(u.config.ZeroCostPolicy)
	var (
		score float64
		err   error
	)
	if u.config.Size != nil {
		score, err = s.ScoreWithSize(costs, winners, labels, target, *u.config.Size)
	} else {
		score, err = s.Score(costs, winners, labels, target)
	}
	if err != nil {
		return state, fmt.Errorf("%s: %w", u.MetricName(), err)
	}

	return state.AppendMeasurements(domain.Measurement{Metric: u.MetricName(), Score: score}), nil
}

// labels returns the labelling and target label to score. It returns nil
// labels when the state carries none and Overall is unset.
func (u *GroupInefficiencyUnit) labels(state domain.State, costs *measure.CostMatrix) ([]int, int) {
	if u.config.Overall {
		_, n := costs.Dims()
		return make([]int, n), 0
	}
	labels, ok := domain.Get(state, domain.KeyLabels)
	if !ok {
		return nil, 0
	}
	return labels, u.config.Label
}

// Validate verifies the unit configuration.
func (u *GroupInefficiencyUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters decodes YAML parameters into the unit configuration.
func (u *GroupInefficiencyUnit) UnmarshalParameters(params yaml.Node) error {
	var config GroupInefficiencyConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	u.config = config
	return nil
}

// DefaultGroupInefficiencyConfig scores label 0 with proportional sizing.
func DefaultGroupInefficiencyConfig() GroupInefficiencyConfig {
	return GroupInefficiencyConfig{ZeroCostPolicy: measure.ZeroCostUnit}
}

// NewGroupInefficiencyFromConfig creates a GroupInefficiencyUnit from a
// configuration map.
func NewGroupInefficiencyFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultGroupInefficiencyConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewGroupInefficiencyUnit(id, cfg)
}
