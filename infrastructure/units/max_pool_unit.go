package units

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/ports"
)

var (
	_ ports.Unit        = (*MaxPoolUnit)(nil)
	_ domain.Aggregator = (*MaxPoolUnit)(nil)
)

// MaxPoolUnit reports the worst case of a score series, or an upper
// quantile of it when Quantile is below 1. Random bloc stress tests use
// it to surface the least fairly treated bloc.
type MaxPoolUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config MaxPoolConfig
}

// MaxPoolConfig defines the configuration parameters for the MaxPoolUnit.
type MaxPoolConfig struct {
	// Quantile selects the reported order statistic. 1 reports the maximum.
	Quantile float64 `yaml:"quantile" json:"quantile" validate:"gt=0,lte=1"`

	// MinCount is the smallest number of scores the unit accepts.
	MinCount int `yaml:"min_count" json:"min_count" validate:"min=1"`
}

// NewMaxPoolUnit creates a new MaxPoolUnit with the specified configuration.
// Returns an error if configuration validation fails.
func NewMaxPoolUnit(name string, config MaxPoolConfig) (*MaxPoolUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &MaxPoolUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *MaxPoolUnit) Name() string { return u.name }

// Execute aggregates domain.KeyScores into domain.KeySummary.
func (u *MaxPoolUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	return executeAggregator(state, u)
}

// Aggregate implements domain.Aggregator. Value is the empirical
// Quantile of the series, which is the maximum when Quantile is 1.
func (u *MaxPoolUnit) Aggregate(scores []float64) (domain.Summary, error) {
	if len(scores) > 0 && len(scores) < u.config.MinCount {
		return domain.Summary{}, fmt.Errorf("%w: got %d, need %d", ErrTooFewScores, len(scores), u.config.MinCount)
	}

	summary, err := summarize(scores)
	if err != nil {
		return domain.Summary{}, err
	}

	summary.Method = "max_pool"
	summary.Value = summary.Max
	if u.config.Quantile < 1 {
		summary.Value = stat.Quantile(u.config.Quantile, stat.Empirical, sortedCopy(scores), nil)
	}
	return summary, nil
}

// Validate verifies the unit configuration.
func (u *MaxPoolUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters decodes YAML parameters into the unit configuration.
func (u *MaxPoolUnit) UnmarshalParameters(params yaml.Node) error {
	var config MaxPoolConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	u.config = config
	return nil
}

// DefaultMaxPoolConfig returns a configuration reporting the maximum.
func DefaultMaxPoolConfig() MaxPoolConfig {
	return MaxPoolConfig{Quantile: 1, MinCount: 1}
}

// NewMaxPoolFromConfig creates a MaxPoolUnit from a configuration map.
func NewMaxPoolFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultMaxPoolConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewMaxPoolUnit(id, cfg)
}
