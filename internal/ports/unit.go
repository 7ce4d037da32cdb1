// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-metricvote/internal/domain"
)

// Unit represents the fundamental building block of an evaluation pipeline.
// Each Unit performs one transformation on the evaluation State, such as
// building a cost matrix or scoring a bloc.
// Units should be stateless and thread-safe for concurrent execution.
type Unit interface {
	// Name returns a unique identifier for this unit.
	// The name is used for logging, tracing, and configuration.
	Name() string

	// Execute performs the unit's transformation on the provided State.
	// It returns a new State containing the results of the transformation.
	// The original State must not be modified.
	//
	// Example:
	//
	//	newState, err := unit.Execute(ctx, state)
	//	if err != nil {
	//	    return state, fmt.Errorf("unit %s failed: %w", unit.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks if the unit is properly configured and ready for
	// execution. It is called when a pipeline is assembled.
	Validate() error
}

// UnitFactory creates a configured Unit from an identifier and a raw
// parameter map, typically decoded from YAML.
type UnitFactory func(id string, config map[string]any) (Unit, error)

// UnitRegistry maps unit type names to the factories that build them.
type UnitRegistry interface {
	// CreateUnit builds a unit of the given type. Unknown types return an
	// error wrapping ErrUnknownUnitType.
	CreateUnit(unitType string, id string, config map[string]any) (Unit, error)

	// RegisterUnitFactory adds or replaces the factory for a unit type.
	RegisterUnitFactory(unitType string, factory UnitFactory) error

	// GetSupportedTypes returns every registered unit type in sorted order.
	GetSupportedTypes() []string
}
