package ports

import (
	"context"

	"github.com/ahrav/go-metricvote/internal/domain"
)

// MergeStrategy defines how the states produced by parallel executions
// are combined into a single output state.
type MergeStrategy interface {
	// Merge combines states produced from baseState. Given the same inputs
	// in the same order it must produce the same output, and it must not
	// modify any input state.
	Merge(baseState domain.State, states []domain.State) (domain.State, error)
}

// Executable is anything that can run inside an evaluation pipeline:
// a single unit, a sequential pipeline, or a parallel layer.
type Executable interface {
	// Execute processes state and returns the updated state.
	// Execute must be safe for concurrent use on different states, and the
	// input state MUST NOT be modified; use domain.With to derive a new one.
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// ID returns the executable's identifier, unique within its container.
	ID() string
}

// Pipeline runs executables in order, feeding each one's output to the next.
type Pipeline interface {
	Executable

	// Add appends exec to the sequence. Duplicate IDs are rejected.
	Add(exec Executable) error

	// Executables returns the ordered executables. Callers must not modify
	// the returned slice.
	Executables() []Executable
}

// Layer runs independent executables concurrently on the same input
// state and merges their results.
type Layer interface {
	Executable

	// Add includes exec in the parallel group. Duplicate IDs are rejected.
	Add(exec Executable) error

	// Executables returns the grouped executables in insertion order.
	Executables() []Executable

	// SetMergeStrategy configures how results are combined. It must be
	// called before Execute.
	SetMergeStrategy(strategy MergeStrategy)
}
