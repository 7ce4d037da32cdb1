package dataset

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-metricvote/internal/domain"
)

// GeneratorName is recorded in the metadata of generated batches.
const GeneratorName = "group_spatial"

// Group is a cluster of points drawn from an isotropic normal
// distribution around Center.
type Group struct {
	// Size is the number of points drawn.
	Size int `yaml:"size" json:"size" validate:"min=0"`

	// Center is the mean position. Its length fixes the dimensionality.
	Center []float64 `yaml:"center" json:"center" validate:"required,min=1"`

	// Spread is the standard deviation along every axis.
	Spread float64 `yaml:"spread" json:"spread" validate:"gt=0"`
}

// GroupSpatial draws voters and candidates from labelled Gaussian groups.
// Voter i is labelled with the index of the group it was drawn from;
// candidates carry no labels.
type GroupSpatial struct {
	// VoterGroups are the voter blocs.
	VoterGroups []Group `yaml:"voter_groups" json:"voter_groups" validate:"required,min=1,dive"`

	// CandidateGroups are the clusters candidates are drawn from.
	CandidateGroups []Group `yaml:"candidate_groups" json:"candidate_groups" validate:"required,min=1,dive"`
}

var generatorValidate = validator.New()

// Validate checks that every group shares one dimensionality and that at
// least one voter and one candidate are drawn.
func (g GroupSpatial) Validate() error {
	if err := generatorValidate.Struct(g); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}

	d := len(g.VoterGroups[0].Center)
	voters, candidates := 0, 0
	for i, grp := range g.VoterGroups {
		if len(grp.Center) != d {
			return fmt.Errorf("%w: voter group %d has dimension %d, want %d",
				domain.ErrInvalidConfiguration, i, len(grp.Center), d)
		}
		voters += grp.Size
	}
	for i, grp := range g.CandidateGroups {
		if len(grp.Center) != d {
			return fmt.Errorf("%w: candidate group %d has dimension %d, want %d",
				domain.ErrInvalidConfiguration, i, len(grp.Center), d)
		}
		candidates += grp.Size
	}
	if voters == 0 || candidates == 0 {
		return fmt.Errorf("%w: need at least one voter and one candidate, got %d and %d",
			domain.ErrInvalidConfiguration, voters, candidates)
	}
	return nil
}

// Sample draws one election from src. Voters are emitted group by group.
func (g GroupSpatial) Sample(src rand.Source) domain.Sample {
	voters, labels := draw(g.VoterGroups, src)
	candidates, _ := draw(g.CandidateGroups, src)
	return domain.Sample{Voters: voters, Candidates: candidates, Labels: labels}
}

// draw samples every group in order and labels each point with its
// group index.
func draw(groups []Group, src rand.Source) (domain.Points, []int) {
	var (
		points domain.Points
		labels []int
	)
	for label, grp := range groups {
		normals := make([]distuv.Normal, len(grp.Center))
		for k, mu := range grp.Center {
			normals[k] = distuv.Normal{Mu: mu, Sigma: grp.Spread, Src: src}
		}
		for range grp.Size {
			p := make([]float64, len(normals))
			for k := range normals {
				p[k] = normals[k].Rand()
			}
			points = append(points, p)
			labels = append(labels, label)
		}
	}
	return points, labels
}

// Generate produces a batch of n samples. Sample i is drawn from a PCG
// source keyed on (seed, i), so any sample can be regenerated alone.
func (g GroupSpatial) Generate(ctx context.Context, name string, n, committeeSize int, seed uint64) (*domain.Batch, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: sample count %d", domain.ErrInvalidConfiguration, n)
	}
	if committeeSize < 0 {
		return nil, fmt.Errorf("%w: committee size %d", domain.ErrInvalidConfiguration, committeeSize)
	}

	batch := &domain.Batch{
		Metadata: domain.BatchMetadata{
			Name:          name,
			Generator:     GeneratorName,
			Seed:          seed,
			CommitteeSize: committeeSize,
		},
		Samples: make([]domain.Sample, n),
	}
	for i := range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := g.Sample(rand.NewPCG(seed, uint64(i)))
		s.ID = fmt.Sprintf("%s-%d", name, i)
		batch.Samples[i] = s
	}
	return batch, nil
}
