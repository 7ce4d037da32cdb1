package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/ports"
)

// ErrLimitExceeded is returned when a sample is larger than the guard allows.
var ErrLimitExceeded = errors.New("sample exceeds configured limits")

// Limits bounds the size of the samples a guarded unit will accept.
// Cost-matrix construction is O(m·n·d), so these bound evaluation cost.
// Zero means unlimited.
type Limits struct {
	// MaxVoters limits n.
	MaxVoters int `yaml:"max_voters" json:"max_voters" validate:"min=0"`

	// MaxCandidates limits m.
	MaxCandidates int `yaml:"max_candidates" json:"max_candidates" validate:"min=0"`

	// MaxCells limits m·n·d.
	MaxCells int `yaml:"max_cells" json:"max_cells" validate:"min=0"`
}

// LimitExceededError reports which limit a sample broke.
type LimitExceededError struct {
	// Limit names the exceeded limit.
	Limit string

	// Max is the configured limit.
	Max int

	// Got is the sample's value.
	Got int
}

// Error implements the error interface for LimitExceededError.
func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit exceeded: %d > %d", e.Limit, e.Got, e.Max)
}

// Unwrap lets errors.Is match ErrLimitExceeded.
func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }

// LimitGuard rejects oversized samples before they reach the wrapped unit.
// It reads positions from the request-scoped state and holds no mutable
// state of its own.
type LimitGuard struct {
	// limits holds the immutable limits for this guard.
	limits Limits

	// next holds the next middleware or unit in the execution chain.
	next ports.Unit

	// metrics receives a counter for every rejected sample. May be nil.
	metrics ports.MetricsCollector
}

// NewLimitGuard wraps next with the given limits.
func NewLimitGuard(limits Limits, next ports.Unit, metrics ports.MetricsCollector) (*LimitGuard, error) {
	if next == nil {
		return nil, errors.New("limit guard: next unit is required")
	}
	return &LimitGuard{limits: limits, next: next, metrics: metrics}, nil
}

// Name returns the wrapped unit's name.
func (g *LimitGuard) Name() string { return g.next.Name() }

// Execute checks the sample in state against the limits and then runs
// the wrapped unit.
func (g *LimitGuard) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if err := g.check(state); err != nil {
		if g.metrics != nil {
			var limitErr *LimitExceededError
			errors.As(err, &limitErr)
			g.metrics.RecordCounter("limit_exceeded_total", 1, map[string]string{
				"unit":   g.next.Name(),
				"status": limitErr.Limit,
			})
		}
		return state, err
	}
	return g.next.Execute(ctx, state)
}

func (g *LimitGuard) check(state domain.State) error {
	n, d, _ := domain.Shape(state, domain.KeyVoters)
	m, _, _ := domain.Shape(state, domain.KeyCandidates)

	if g.limits.MaxVoters > 0 && n > g.limits.MaxVoters {
		return &LimitExceededError{Limit: "voters", Max: g.limits.MaxVoters, Got: n}
	}
	if g.limits.MaxCandidates > 0 && m > g.limits.MaxCandidates {
		return &LimitExceededError{Limit: "candidates", Max: g.limits.MaxCandidates, Got: m}
	}
	if cells := m * n * d; g.limits.MaxCells > 0 && cells > g.limits.MaxCells {
		return &LimitExceededError{Limit: "cells", Max: g.limits.MaxCells, Got: cells}
	}
	return nil
}

// Validate delegates to the wrapped unit.
func (g *LimitGuard) Validate() error { return g.next.Validate() }

var _ ports.Unit = (*LimitGuard)(nil)
