package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/ports"
)

var (
	_ ports.Unit        = (*MedianPoolUnit)(nil)
	_ domain.Aggregator = (*MedianPoolUnit)(nil)
)

// MedianPoolUnit reduces a series of scores to its median. Inefficiency
// scores are bounded below by 1 and heavy tailed, so the median is a
// useful companion to the mean.
type MedianPoolUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config MedianPoolConfig
}

// MedianPoolConfig controls the median aggregation.
type MedianPoolConfig struct {
	// MinCount is the smallest number of scores the unit accepts.
	MinCount int `yaml:"min_count" json:"min_count" validate:"min=1"`
}

// NewMedianPoolUnit creates a new MedianPoolUnit.
func NewMedianPoolUnit(name string, config MedianPoolConfig) (*MedianPoolUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &MedianPoolUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *MedianPoolUnit) Name() string { return u.name }

// Execute aggregates domain.KeyScores into domain.KeySummary.
func (u *MedianPoolUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	return executeAggregator(state, u)
}

// Aggregate implements domain.Aggregator. For an even number of scores
// the two middle values are averaged.
func (u *MedianPoolUnit) Aggregate(scores []float64) (domain.Summary, error) {
	if len(scores) > 0 && len(scores) < u.config.MinCount {
		return domain.Summary{}, fmt.Errorf("%w: got %d, need %d", ErrTooFewScores, len(scores), u.config.MinCount)
	}

	summary, err := summarize(scores)
	if err != nil {
		return domain.Summary{}, err
	}

	summary.Method = "median"
	summary.Value = summary.Median
	return summary, nil
}

// Validate verifies the unit configuration.
func (u *MedianPoolUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters decodes YAML parameters into the unit configuration.
func (u *MedianPoolUnit) UnmarshalParameters(params yaml.Node) error {
	var config MedianPoolConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	u.config = config
	return nil
}

// DefaultMedianPoolConfig returns a configuration accepting any non-empty series.
func DefaultMedianPoolConfig() MedianPoolConfig {
	return MedianPoolConfig{MinCount: 1}
}

// NewMedianPoolFromConfig creates a MedianPoolUnit from a configuration map.
func NewMedianPoolFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultMedianPoolConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewMedianPoolUnit(id, cfg)
}
