package application

import (
	"fmt"
	"slices"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/ahrav/go-metricvote/infrastructure/units"
	"github.com/ahrav/go-metricvote/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.UnitRegistry = (*DefaultUnitRegistry)(nil)

// maxSuggestionDistance is the largest edit distance at which an unknown
// unit type is considered a typo of a registered one.
const maxSuggestionDistance = 3

// DefaultUnitRegistry implements the UnitRegistry interface providing
// a factory for creating evaluation units based on type and configuration.
// It supports dynamic registration of unit factories.
type DefaultUnitRegistry struct {
	// factories maps unit type strings to their factory functions.
	factories map[string]ports.UnitFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
}

// NewDefaultUnitRegistry creates a new unit registry with the built-in
// unit types pre-registered.
func NewDefaultUnitRegistry() *DefaultUnitRegistry {
	registry := &DefaultUnitRegistry{
		factories: make(map[string]ports.UnitFactory),
	}
	registry.registerBuiltinFactories()
	return registry
}

// registerBuiltinFactories registers the measurement, election, and
// aggregation units.
func (r *DefaultUnitRegistry) registerBuiltinFactories() {
	r.factories["cost_matrix"] = units.NewCostMatrixFromConfig
	r.factories["election"] = units.NewElectionFromConfig
	r.factories["group_inefficiency"] = units.NewGroupInefficiencyFromConfig
	r.factories["random_bloc"] = units.NewRandomBlocFromConfig
	r.factories["arithmetic_mean"] = units.NewArithmeticMeanFromConfig
	r.factories["median"] = units.NewMedianPoolFromConfig
	r.factories["max_pool"] = units.NewMaxPoolFromConfig
}

// CreateUnit creates a new unit instance based on the provided type,
// identifier, and configuration. An unknown type returns an error
// wrapping ports.ErrUnknownUnitType that suggests the closest known type.
func (r *DefaultUnitRegistry) CreateUnit(
	unitType string,
	id string,
	config map[string]any,
) (ports.Unit, error) {
	r.mu.RLock()
	factory, exists := r.factories[unitType]
	r.mu.RUnlock()

	if !exists {
		if suggestion := r.suggest(unitType); suggestion != "" {
			return nil, fmt.Errorf("%w: %s (did you mean %q?)", ports.ErrUnknownUnitType, unitType, suggestion)
		}
		return nil, fmt.Errorf("%w: %s", ports.ErrUnknownUnitType, unitType)
	}

	if id == "" {
		return nil, fmt.Errorf("unit ID cannot be empty")
	}

	if config == nil {
		config = make(map[string]any)
	}

	unit, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit %s of type %s: %w", id, unitType, err)
	}

	return unit, nil
}

// suggest returns the registered type closest to unitType by edit
// distance, or "" when none is close enough. Ties go to the
// alphabetically first type.
func (r *DefaultUnitRegistry) suggest(unitType string) string {
	best, bestDist := "", maxSuggestionDistance+1
	for _, known := range r.GetSupportedTypes() {
		if d := levenshtein.ComputeDistance(unitType, known); d < bestDist {
			best, bestDist = known, d
		}
	}
	return best
}

// RegisterUnitFactory registers a new factory function for a specific unit type.
// This allows extending the registry with custom unit types at runtime.
func (r *DefaultUnitRegistry) RegisterUnitFactory(
	unitType string,
	factory ports.UnitFactory,
) error {
	if unitType == "" {
		return fmt.Errorf("unit type cannot be empty")
	}

	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[unitType] = factory
	return nil
}

// GetSupportedTypes returns every registered unit type in sorted order.
func (r *DefaultUnitRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for unitType := range r.factories {
		types = append(types, unitType)
	}
	slices.Sort(types)

	return types
}
