package units

import (
	"context"
	"fmt"

	"github.com/ahrav/go-metricvote/infrastructure/elections"
	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/measure"
	"github.com/ahrav/go-metricvote/internal/ports"
)

var _ ports.Unit = (*ElectionUnit)(nil)

// ElectionUnit supplies the winner set for the sample being evaluated.
// Winners recorded with the sample are kept as they are; otherwise the
// configured rule is run with a source derived from the execution seed.
// Either way the winners are checked against the candidate count before
// any scoring unit sees them.
type ElectionUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// rule selects winners when the sample has none recorded.
	rule ports.ElectionRule
	// config contains the validated configuration parameters.
	config ElectionConfig
}

// ElectionConfig configures an ElectionUnit.
type ElectionConfig struct {
	// Rule names a built-in election rule.
	Rule string `yaml:"rule" json:"rule" validate:"required"`

	// CommitteeSize is the number of winners to select.
	CommitteeSize int `yaml:"committee_size" json:"committee_size" validate:"min=0"`

	// Recompute ignores recorded winners and always runs the rule.
	Recompute bool `yaml:"recompute" json:"recompute"`
}

// NewElectionUnit creates an ElectionUnit around rule.
func NewElectionUnit(name string, rule ports.ElectionRule, config ElectionConfig) (*ElectionUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if rule == nil {
		return nil, ErrNilRule
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &ElectionUnit{name: name, rule: rule, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *ElectionUnit) Name() string { return u.name }

// Execute writes domain.KeyRule and domain.KeyWinners. It requires
// domain.KeyVoters and domain.KeyCandidates when the rule has to run.
func (u *ElectionUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok {
		return state, domain.MissingKey(domain.KeyCandidates)
	}

	winners, recorded := domain.Get(state, domain.KeyWinners)
	if !recorded || u.config.Recompute {
		voters, ok := domain.Get(state, domain.KeyVoters)
		if !ok {
			return state, domain.MissingKey(domain.KeyVoters)
		}

		var err error
		winners, err = u.rule.SelectWinners(voters, candidates, u.config.CommitteeSize, unitSource(state, u.name))
		if err != nil {
			return state, err
		}
		if len(winners) != u.config.CommitteeSize {
			return state, ports.NewRuleError(u.rule.Name(), fmt.Errorf("%w: got %d winners, want %d",
				ports.ErrInvalidWinners, len(winners), u.config.CommitteeSize))
		}
	}

	if err := measure.ValidateWinners(winners, len(candidates)); err != nil {
		return state, ports.NewRuleError(u.rule.Name(), err)
	}

	return state.WithMultiple(map[string]any{
		domain.KeyRule.Name():    u.rule.Name(),
		domain.KeyWinners.Name(): winners,
	}), nil
}

// Validate verifies the unit configuration.
func (u *ElectionUnit) Validate() error {
	if u.rule == nil {
		return ErrNilRule
	}
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// NewElectionFromConfig creates an ElectionUnit for the built-in rule
// named in the configuration map.
func NewElectionFromConfig(id string, config map[string]any) (ports.Unit, error) {
	var cfg ElectionConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	rule, err := elections.Lookup(cfg.Rule)
	if err != nil {
		return nil, err
	}
	return NewElectionUnit(id, rule, cfg)
}
