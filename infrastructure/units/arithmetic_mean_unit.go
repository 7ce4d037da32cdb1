package units

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/ports"
)

var (
	_ ports.Unit        = (*ArithmeticMeanUnit)(nil)
	_ domain.Aggregator = (*ArithmeticMeanUnit)(nil)
)

// ArithmeticMeanUnit reduces a series of per-sample scores to their
// arithmetic mean, optionally trimming a fraction of the extremes first.
// It is the usual headline statistic for inefficiency scores, which are
// reported as averages over many simulated elections.
//
// The unit is stateless and safe for concurrent use.
type ArithmeticMeanUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config ArithmeticMeanConfig
}

// ArithmeticMeanConfig controls the mean aggregation.
type ArithmeticMeanConfig struct {
	// MinCount is the smallest number of scores the unit accepts.
	MinCount int `yaml:"min_count" json:"min_count" validate:"min=1"`

	// TrimFraction drops this fraction of scores from each end of the
	// sorted series before averaging. 0 averages everything.
	TrimFraction float64 `yaml:"trim_fraction" json:"trim_fraction" validate:"min=0,lt=0.5"`
}

// NewArithmeticMeanUnit creates a new ArithmeticMeanUnit.
// Returns ErrEmptyUnitName if name is empty or a validation error if the
// configuration violates its constraints.
func NewArithmeticMeanUnit(name string, config ArithmeticMeanConfig) (*ArithmeticMeanUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &ArithmeticMeanUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *ArithmeticMeanUnit) Name() string { return u.name }

// Execute aggregates the scores stored under domain.KeyScores and writes
// the resulting *domain.Summary to domain.KeySummary. If domain.KeyRule is
// present it is copied into the summary.
func (u *ArithmeticMeanUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	return executeAggregator(state, u)
}

// Aggregate implements domain.Aggregator. Value is the (trimmed) mean;
// the remaining fields describe the full, untrimmed series.
func (u *ArithmeticMeanUnit) Aggregate(scores []float64) (domain.Summary, error) {
	if len(scores) > 0 && len(scores) < u.config.MinCount {
		return domain.Summary{}, fmt.Errorf("%w: got %d, need %d", ErrTooFewScores, len(scores), u.config.MinCount)
	}

	summary, err := summarize(scores)
	if err != nil {
		return domain.Summary{}, err
	}

	summary.Method = "arithmetic_mean"
	summary.Value = summary.Mean
	if u.config.TrimFraction > 0 {
		summary.Value = trimmedMean(scores, u.config.TrimFraction)
	}
	return summary, nil
}

// trimmedMean averages scores after dropping floor(frac*n) values from
// each end of the sorted series.
func trimmedMean(scores []float64, frac float64) float64 {
	sorted := sortedCopy(scores)
	cut := int(math.Floor(frac * float64(len(sorted))))
	return stat.Mean(sorted[cut:len(sorted)-cut], nil)
}

// Validate verifies the unit configuration.
func (u *ArithmeticMeanUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters decodes YAML parameters into the unit configuration.
// The configuration is left unchanged on error.
func (u *ArithmeticMeanUnit) UnmarshalParameters(params yaml.Node) error {
	var config ArithmeticMeanConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	u.config = config
	return nil
}

// DefaultArithmeticMeanConfig returns a configuration that averages every
// score and accepts a single score.
func DefaultArithmeticMeanConfig() ArithmeticMeanConfig {
	return ArithmeticMeanConfig{MinCount: 1}
}

// NewArithmeticMeanFromConfig creates an ArithmeticMeanUnit from a
// configuration map. Unset fields keep their defaults.
func NewArithmeticMeanFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultArithmeticMeanConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewArithmeticMeanUnit(id, cfg)
}
