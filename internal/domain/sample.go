package domain

import (
	"maps"
	"slices"
)

// NoGroup is the label carried by voters that belong to no bloc.
const NoGroup = -1

// Points is an ordered set of positions in a shared d-dimensional space.
type Points [][]float64

// Dim returns the dimensionality of the first point, or 0 when empty.
func (p Points) Dim() int {
	if len(p) == 0 {
		return 0
	}
	return len(p[0])
}

// Sample is one simulated election: voter and candidate positions, the
// bloc label of every voter, and the winner set chosen by each rule.
type Sample struct {
	// ID identifies the sample within its batch.
	ID string `json:"id,omitempty"`

	// Voters holds n voter positions.
	Voters Points `json:"voters" validate:"required,min=1"`

	// Candidates holds m candidate positions.
	Candidates Points `json:"candidates" validate:"required,min=1"`

	// Labels holds one bloc label per voter; NoGroup marks unlabeled voters.
	Labels []int `json:"labels"`

	// Winners maps an election rule name to the candidate indices it
	// selected. It may be empty when rules are run during evaluation.
	Winners map[string][]int `json:"winners,omitempty"`
}

// Validate checks that positions share a dimensionality, that labels
// cover every voter, and that every recorded winner set indexes distinct
// candidates. It returns a *ValidationError listing every problem.
func (s Sample) Validate(entity string) error {
	verr := NewValidationError(entity)

	if len(s.Voters) == 0 {
		verr.AddError("no voters")
	}
	if len(s.Candidates) == 0 {
		verr.AddError("no candidates")
	}

	d := s.Voters.Dim()
	for j, v := range s.Voters {
		if len(v) != d {
			verr.AddError("voter %d has %d coordinates, want %d", j, len(v), d)
		}
	}
	for i, c := range s.Candidates {
		if len(c) != d {
			verr.AddError("candidate %d has %d coordinates, want %d", i, len(c), d)
		}
	}

	if s.Labels != nil && len(s.Labels) != len(s.Voters) {
		verr.AddError("%d labels for %d voters", len(s.Labels), len(s.Voters))
	}

	for _, rule := range slices.Sorted(maps.Keys(s.Winners)) {
		seen := make(map[int]bool)
		for _, w := range s.Winners[rule] {
			if w < 0 || w >= len(s.Candidates) {
				verr.AddError("rule %s: winner %d out of range [0, %d)", rule, w, len(s.Candidates))
			} else if seen[w] {
				verr.AddError("rule %s: winner %d repeated", rule, w)
			}
			seen[w] = true
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// LabelsOrDefault returns the sample's labels, or a labeling that puts
// every voter in bloc 0 when none were recorded.
func (s Sample) LabelsOrDefault() []int {
	if s.Labels != nil {
		return s.Labels
	}
	return make([]int, len(s.Voters))
}

// BatchMetadata describes where a batch came from.
type BatchMetadata struct {
	// Name identifies the batch.
	Name string `json:"name" validate:"required"`

	// Generator records how the positions were produced.
	Generator string `json:"generator,omitempty"`

	// Seed is the seed the generator was run with, if any.
	Seed uint64 `json:"seed,omitempty"`

	// CommitteeSize is the number of winners every rule selects.
	CommitteeSize int `json:"committee_size" validate:"min=0"`
}

// Batch is a named collection of samples evaluated together.
type Batch struct {
	// Metadata describes the batch.
	Metadata BatchMetadata `json:"metadata"`

	// Samples holds the simulated elections.
	Samples []Sample `json:"samples" validate:"required,min=1,dive"`
}
