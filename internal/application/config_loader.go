package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-metricvote/infrastructure/elections"
	"github.com/ahrav/go-metricvote/internal/ports"
)

// ConfigLoader parses, validates, and caches experiment configurations.
// Configurations are cached by the SHA256 hash of their normalized form,
// so files that differ only in whitespace or key order share an entry.
type ConfigLoader struct {
	// validator performs struct tag validation with the custom
	// semver, distance, and zerocost rules registered.
	validator *validator.Validate
	// unitRegistry builds aggregator units to check their parameters.
	unitRegistry ports.UnitRegistry
	// cache stores validated configurations by hash.
	// WARNING: cached configurations MUST NOT be mutated.
	cache map[string]*ExperimentConfig
	// cacheMu guards cache.
	cacheMu sync.RWMutex
	// sf prevents duplicate validation when several goroutines load the
	// same configuration at once.
	sf singleflight.Group
}

// NewConfigLoader creates a loader with an empty cache.
// It returns an error if validator registration fails.
func NewConfigLoader(unitRegistry ports.UnitRegistry) (*ConfigLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &ConfigLoader{
		validator:    v,
		unitRegistry: unitRegistry,
		cache:        make(map[string]*ExperimentConfig),
	}, nil
}

// LoadFromFile loads and validates the experiment configuration at path.
// WARNING: the returned configuration is shared through the cache and
// MUST NOT be mutated.
func (cl *ConfigLoader) LoadFromFile(ctx context.Context, path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read file: %w: %w", ports.ErrConfigNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return cl.load(ctx, data)
}

// LoadFromReader loads and validates an experiment configuration from r.
// WARNING: the returned configuration is shared through the cache and
// MUST NOT be mutated.
func (cl *ConfigLoader) LoadFromReader(ctx context.Context, r io.Reader) (*ExperimentConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.load(ctx, data)
}

// load parses data, then validates it at most once per distinct
// configuration.
func (cl *ConfigLoader) load(ctx context.Context, data []byte) (*ExperimentConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	config, err := cl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	hash, err := cl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if cached, ok := cl.getCached(hash); ok {
			return cached, nil
		}
		if err := cl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		cl.store(hash, config)
		return config, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*ExperimentConfig), nil
}

// parseYAML decodes data strictly: unknown fields are errors so typos
// in a configuration are never silently ignored.
func (cl *ConfigLoader) parseYAML(data []byte) (*ExperimentConfig, error) {
	var config ExperimentConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

// validateConfig runs struct validation followed by the semantic checks.
func (cl *ConfigLoader) validateConfig(config *ExperimentConfig) error {
	if err := cl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := cl.validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// validateSemantics checks the relationships struct tags cannot express:
// rules must be known and listed once, groups must be distinct, random
// bloc entitlements must fit every fixed committee size, and aggregator
// parameters must build a unit.
func (cl *ConfigLoader) validateSemantics(config *ExperimentConfig) error {
	rules := make(map[string]struct{}, len(config.Rules))
	for i, rule := range config.Rules {
		key := fmt.Sprintf("rules[%d]", i)
		if _, err := elections.Lookup(rule.Name); err != nil {
			return ports.NewConfigError(key, err)
		}
		if _, dup := rules[rule.Name]; dup {
			return ports.NewConfigError(key, fmt.Errorf("duplicate rule %q", rule.Name))
		}
		rules[rule.Name] = struct{}{}

		if config.RandomBloc == nil || rule.CommitteeSize == 0 {
			continue
		}
		for _, t := range config.RandomBloc.Representatives {
			if t > rule.CommitteeSize {
				return ports.NewConfigError(key, fmt.Errorf("random bloc entitlement %d exceeds committee size %d of rule %s",
					t, rule.CommitteeSize, rule.Name))
			}
		}
	}

	groups := make(map[string]struct{}, len(config.Groups))
	for i, g := range config.Groups {
		name := groupUnitName(g)
		if _, dup := groups[name]; dup {
			return ports.NewConfigError(fmt.Sprintf("groups[%d]", i), fmt.Errorf("duplicate group %s", name))
		}
		groups[name] = struct{}{}
	}

	if config.RandomBloc != nil {
		seen := make(map[int]struct{}, len(config.RandomBloc.Representatives))
		for i, t := range config.RandomBloc.Representatives {
			if _, dup := seen[t]; dup {
				return ports.NewConfigError(fmt.Sprintf("random_bloc.representatives[%d]", i),
					fmt.Errorf("duplicate random bloc entitlement %d", t))
			}
			seen[t] = struct{}{}
		}
	}

	methods := make(map[string]struct{}, len(config.Aggregators))
	for i, agg := range config.Aggregators {
		key := fmt.Sprintf("aggregators[%d]", i)
		if _, dup := methods[agg.Type]; dup {
			return ports.NewConfigError(key, fmt.Errorf("duplicate aggregator %q", agg.Type))
		}
		methods[agg.Type] = struct{}{}

		if _, err := cl.createAggregator(agg, i); err != nil {
			return ports.NewConfigError(key, err)
		}
	}

	return nil
}

// createAggregator builds the aggregator unit described by agg.
func (cl *ConfigLoader) createAggregator(agg AggregatorConfig, index int) (ports.Unit, error) {
	return createAggregator(cl.unitRegistry, agg, index)
}

// createAggregator decodes agg's parameters and asks registry for the unit.
func createAggregator(registry ports.UnitRegistry, agg AggregatorConfig, index int) (ports.Unit, error) {
	params := make(map[string]any)
	if !agg.Parameters.IsZero() {
		if err := agg.Parameters.Decode(&params); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
	}
	return registry.CreateUnit(agg.Type, fmt.Sprintf("%s_%d", agg.Type, index), params)
}

// calculateConfigHash hashes the re-encoded configuration so formatting
// differences in the source do not defeat the cache.
func (cl *ConfigLoader) calculateConfigHash(config *ExperimentConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (cl *ConfigLoader) getCached(hash string) (*ExperimentConfig, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	config, ok := cl.cache[hash]
	return config, ok
}

func (cl *ConfigLoader) store(hash string, config *ExperimentConfig) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = config
}

// ClearCache drops every cached configuration.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*ExperimentConfig)
}
