package application

import (
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-metricvote/infrastructure/middleware"
)

// ExperimentConfig is the declarative description of an evaluation run:
// which rules to evaluate, which blocs to score, how to stress-test the
// winners, and how to summarize the scores across samples.
type ExperimentConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across system updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the experiment.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Seed drives every random choice of the run: rule tie-breaks and
	// random bloc draws. Equal seeds reproduce equal reports.
	Seed uint64 `yaml:"seed"`
	// Metric selects the distance and scoring policy.
	Metric MetricConfig `yaml:"metric"`
	// Rules lists the election rules whose winners are evaluated.
	Rules []RuleConfig `yaml:"rules" validate:"required,min=1,dive"`
	// Groups lists the labelled blocs to score for every rule.
	Groups []GroupConfig `yaml:"groups" validate:"dive"`
	// RandomBloc configures the random bloc stress test. Nil disables it.
	RandomBloc *RandomBlocConfig `yaml:"random_bloc,omitempty"`
	// Aggregators summarize each score series across samples.
	Aggregators []AggregatorConfig `yaml:"aggregators" validate:"required,min=1,dive"`
	// Concurrency bounds the worker pool.
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	// Limits rejects samples too large to evaluate.
	Limits middleware.Limits `yaml:"limits"`
}

// Metadata provides descriptive information about an experiment.
type Metadata struct {
	// Name is the human-readable identifier for this experiment.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains what the experiment measures.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags are categorical labels for filtering experiments.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
	// Labels are arbitrary key-value pairs for external systems.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// MetricConfig selects how distances and degenerate scores are computed.
type MetricConfig struct {
	// Distance names the metric. Empty means Euclidean.
	Distance string `yaml:"distance" validate:"omitempty,distance"`
	// FastPath enables the packed Euclidean cost-matrix construction.
	// Nil means enabled.
	FastPath *bool `yaml:"fast_path,omitempty"`
	// ZeroCostPolicy decides scores whose best achievable cost is zero.
	ZeroCostPolicy string `yaml:"zero_cost_policy" validate:"omitempty,zerocost"`
}

// RuleConfig names an election rule to evaluate.
type RuleConfig struct {
	// Name is a built-in rule name, also the winner-set key in samples.
	Name string `yaml:"name" validate:"required,min=1,max=100"`
	// CommitteeSize overrides the batch's committee size. 0 uses the batch's.
	CommitteeSize int `yaml:"committee_size" validate:"min=0"`
	// Recompute ignores winners recorded in the batch.
	Recompute bool `yaml:"recompute"`
}

// GroupConfig selects one bloc to score.
type GroupConfig struct {
	// Label is the voter label forming the bloc.
	Label int `yaml:"label"`
	// Overall scores the whole electorate instead of one label.
	Overall bool `yaml:"overall"`
	// Size fixes the representative count instead of deriving it.
	Size *int `yaml:"size,omitempty" validate:"omitempty,min=0"`
}

// RandomBlocConfig configures the random bloc stress test.
type RandomBlocConfig struct {
	// Representatives lists the entitlements to test, one unit per value.
	Representatives []int `yaml:"representatives" validate:"required,min=1,dive,min=0"`
	// Trials is the number of blocs drawn per sample and entitlement.
	Trials int `yaml:"trials" validate:"min=1,max=100000"`
}

// AggregatorConfig selects an aggregator unit and its parameters.
type AggregatorConfig struct {
	// Type is the registered unit type of the aggregator.
	Type string `yaml:"type" validate:"required,oneof=arithmetic_mean median max_pool"`
	// Parameters holds type-specific settings.
	Parameters yaml.Node `yaml:"parameters,omitempty"`
}

// ConcurrencyConfig bounds parallelism and progress reporting.
type ConcurrencyConfig struct {
	// Workers is the maximum number of concurrent evaluations. 0 means
	// one per CPU.
	Workers int `yaml:"workers" validate:"min=0,max=1024"`
	// ProgressPerSecond caps progress log lines. 0 uses the default.
	ProgressPerSecond float64 `yaml:"progress_per_second" validate:"min=0"`
}
