package application

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/ports"
)

var (
	_ ports.Pipeline      = (*Pipeline)(nil)
	_ ports.Layer         = (*Layer)(nil)
	_ ports.MergeStrategy = MeasurementMerge{}
)

// Pipeline is a sequential execution container: each executable's output
// state becomes the next one's input. The evaluation of one sample under
// one rule is a pipeline of cost matrix, election, and measurement steps.
type Pipeline struct {
	// id identifies the pipeline in error messages.
	id string
	// executables holds the steps in execution order.
	executables []ports.Executable
	// idSet tracks executable IDs for O(1) duplicate detection.
	idSet map[string]struct{}
	// mu guards executables and idSet.
	mu sync.RWMutex
}

// NewPipeline creates an empty pipeline.
func NewPipeline(id string) *Pipeline {
	return &Pipeline{
		id:          id,
		executables: make([]ports.Executable, 0),
		idSet:       make(map[string]struct{}),
	}
}

// Execute runs every executable in order. It stops at the first error,
// or when ctx is cancelled between steps, and returns the last good state.
// Execute is safe for concurrent use on different states.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	current := state
	for _, exec := range p.Executables() {
		if err := ctx.Err(); err != nil {
			return current, err
		}
		next, err := exec.Execute(ctx, current)
		if err != nil {
			return current, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.id, exec.ID(), err)
		}
		current = next
	}
	return current, nil
}

// ID returns the pipeline's identifier.
func (p *Pipeline) ID() string { return p.id }

// Add appends exec to the pipeline. It rejects nil executables and
// duplicate IDs.
func (p *Pipeline) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to pipeline")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	execID := exec.ID()
	if _, exists := p.idSet[execID]; exists {
		return fmt.Errorf("executable with ID %s already exists in pipeline", execID)
	}

	p.executables = append(p.executables, exec)
	p.idSet[execID] = struct{}{}
	return nil
}

// Executables returns a copy of the ordered executables.
func (p *Pipeline) Executables() []ports.Executable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ports.Executable, len(p.executables))
	copy(result, p.executables)
	return result
}

// Layer runs independent executables concurrently on the same input state
// and merges their outputs. The measurement units of a sample form a
// layer: each reads the shared cost matrix and winners and appends its
// own scores.
type Layer struct {
	// id identifies the layer in error messages.
	id string
	// executables holds the grouped executables in insertion order.
	executables []ports.Executable
	// idSet tracks executable IDs for O(1) duplicate detection.
	idSet map[string]struct{}
	// mergeStrategy combines the outputs. Nil means MeasurementMerge.
	mergeStrategy ports.MergeStrategy
	// concurrencyLimit bounds concurrent executions.
	concurrencyLimit int
	// mu guards the fields above.
	mu sync.RWMutex
}

// NewLayer creates an empty layer limited to runtime.NumCPU() concurrent
// executions.
func NewLayer(id string) *Layer {
	return &Layer{
		id:               id,
		executables:      make([]ports.Executable, 0),
		idSet:            make(map[string]struct{}),
		concurrencyLimit: runtime.NumCPU(),
	}
}

// Execute runs every executable on state concurrently and merges the
// results in insertion order, so the merged state does not depend on
// scheduling. If any executable fails, the first error is returned and
// the remaining executions are cancelled.
func (l *Layer) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	l.mu.RLock()
	executables := make([]ports.Executable, len(l.executables))
	copy(executables, l.executables)
	limit := l.concurrencyLimit
	strategy := l.mergeStrategy
	l.mu.RUnlock()

	if len(executables) == 0 {
		return state, nil
	}

	states := make([]domain.State, len(executables))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, exec := range executables {
		g.Go(func() error {
			out, err := exec.Execute(gctx, state)
			if err != nil {
				return fmt.Errorf("executable %s: %w", exec.ID(), err)
			}
			states[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return state, fmt.Errorf("layer %s: %w", l.id, err)
	}

	if strategy == nil {
		strategy = MeasurementMerge{}
	}
	merged, err := strategy.Merge(state, states)
	if err != nil {
		return state, fmt.Errorf("layer %s: merge failed: %w", l.id, err)
	}
	return merged, nil
}

// ID returns the layer's identifier.
func (l *Layer) ID() string { return l.id }

// Add includes exec in the layer. It rejects nil executables and
// duplicate IDs.
func (l *Layer) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to layer")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	execID := exec.ID()
	if _, exists := l.idSet[execID]; exists {
		return fmt.Errorf("executable with ID %s already exists in layer", execID)
	}

	l.executables = append(l.executables, exec)
	l.idSet[execID] = struct{}{}
	return nil
}

// Executables returns a copy of the grouped executables in insertion order.
func (l *Layer) Executables() []ports.Executable {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]ports.Executable, len(l.executables))
	copy(result, l.executables)
	return result
}

// SetMergeStrategy configures how results are combined.
func (l *Layer) SetMergeStrategy(strategy ports.MergeStrategy) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.mergeStrategy = strategy
}

// SetConcurrencyLimit bounds concurrent executions. Values of 0 or less
// remove the bound.
func (l *Layer) SetConcurrencyLimit(limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.concurrencyLimit = limit
}

// MeasurementMerge combines layer outputs by concatenating, in order, the
// measurements each output added on top of the base state. Every other
// key is taken from the base state, which keeps parallel branches from
// overwriting each other.
type MeasurementMerge struct{}

// Merge implements ports.MergeStrategy.
func (MeasurementMerge) Merge(base domain.State, states []domain.State) (domain.State, error) {
	existing, _ := domain.Get(base, domain.KeyMeasurements)

	var added []domain.Measurement
	for i, s := range states {
		ms, _ := domain.Get(s, domain.KeyMeasurements)
		if len(ms) < len(existing) {
			return base, fmt.Errorf("%w: branch %d dropped %d measurements", domain.ErrInvalidState, i, len(existing)-len(ms))
		}
		added = append(added, ms[len(existing):]...)
	}
	if len(added) == 0 {
		return base, nil
	}
	return base.AppendMeasurements(added...), nil
}
