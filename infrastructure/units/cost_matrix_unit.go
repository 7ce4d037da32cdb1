package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/measure"
	"github.com/ahrav/go-metricvote/internal/ports"
)

var _ ports.Unit = (*CostMatrixUnit)(nil)

// CostMatrixUnit builds the candidate-by-voter cost matrix for the sample
// in the state. Every scoring unit downstream reads the matrix from
// KeyCostMatrix, so it is computed once per sample and rule.
type CostMatrixUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config CostMatrixConfig
}

// CostMatrixConfig selects the distance and construction mode.
type CostMatrixConfig struct {
	// Distance names the metric: "euclidean", "manhattan" or "chebyshev".
	Distance measure.Metric `yaml:"distance" json:"distance" validate:"omitempty,oneof=euclidean manhattan chebyshev"`

	// FastPath uses the packed Euclidean construction. It is ignored for
	// other distances.
	FastPath bool `yaml:"fast_path" json:"fast_path"`
}

// NewCostMatrixUnit creates a new CostMatrixUnit.
func NewCostMatrixUnit(name string, config CostMatrixConfig) (*CostMatrixUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &CostMatrixUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *CostMatrixUnit) Name() string { return u.name }

// Execute reads domain.KeyVoters and domain.KeyCandidates and stores the
// resulting *measure.CostMatrix under KeyCostMatrix.
func (u *CostMatrixUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	voters, ok := domain.Get(state, domain.KeyVoters)
	if !ok {
		return state, domain.MissingKey(domain.KeyVoters)
	}
	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok {
		return state, domain.MissingKey(domain.KeyCandidates)
	}

	builder := measure.Builder{Metric: u.config.Distance, FastPath: u.config.FastPath}
	costs, err := builder.Build(voters, candidates)
	if err != nil {
		return state, fmt.Errorf("build cost matrix: %w", err)
	}

	return domain.With(state, KeyCostMatrix, costs), nil
}

// Validate verifies the unit configuration.
func (u *CostMatrixUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters decodes YAML parameters into the unit configuration.
func (u *CostMatrixUnit) UnmarshalParameters(params yaml.Node) error {
	var config CostMatrixConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	u.config = config
	return nil
}

// DefaultCostMatrixConfig returns Euclidean distance with the fast path on.
func DefaultCostMatrixConfig() CostMatrixConfig {
	return CostMatrixConfig{Distance: measure.MetricEuclidean, FastPath: true}
}

// NewCostMatrixFromConfig creates a CostMatrixUnit from a configuration map.
func NewCostMatrixFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultCostMatrixConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewCostMatrixUnit(id, cfg)
}
