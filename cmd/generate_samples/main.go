// Command generate_samples writes a batch of synthetic elections drawn
// from Gaussian voter and candidate groups.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-metricvote/infrastructure/dataset"
)

func main() {
	var (
		outputPath = flag.String("output", "testdata/batches/two_blocs.json", "Output file path")
		groupsPath = flag.String("groups", "", "YAML file describing voter_groups and candidate_groups (default: two blocs in the plane)")
		name       = flag.String("name", "two_blocs", "Batch name")
		samples    = flag.Int("samples", 100, "Number of elections to generate")
		committee  = flag.Int("committee", 4, "Committee size recorded in the batch metadata")
		seed       = flag.Uint64("seed", 1, "Generator seed")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	gen, err := loadGenerator(*groupsPath)
	if err != nil {
		logger.Fatal("failed to load groups", zap.String("path", *groupsPath), zap.Error(err))
	}

	batch, err := gen.Generate(ctx, *name, *samples, *committee, *seed)
	if err != nil {
		logger.Fatal("failed to generate batch", zap.Error(err))
	}

	if err := dataset.NewJSONStore().Save(ctx, *outputPath, batch); err != nil {
		logger.Fatal("failed to save batch", zap.String("path", *outputPath), zap.Error(err))
	}

	logger.Info("batch written",
		zap.String("path", *outputPath),
		zap.String("name", *name),
		zap.Int("samples", len(batch.Samples)),
		zap.Int("voters", len(batch.Samples[0].Voters)),
		zap.Int("candidates", len(batch.Samples[0].Candidates)),
		zap.Uint64("seed", *seed),
	)
}

// loadGenerator reads a GroupSpatial description from path, or returns
// two well separated blocs of unequal size when path is empty.
func loadGenerator(path string) (dataset.GroupSpatial, error) {
	if path == "" {
		return dataset.GroupSpatial{
			VoterGroups: []dataset.Group{
				{Size: 60, Center: []float64{-2, 0}, Spread: 0.5},
				{Size: 40, Center: []float64{2, 0}, Spread: 0.5},
			},
			CandidateGroups: []dataset.Group{
				{Size: 6, Center: []float64{-2, 0}, Spread: 0.5},
				{Size: 6, Center: []float64{2, 0}, Spread: 0.5},
			},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return dataset.GroupSpatial{}, err
	}
	var gen dataset.GroupSpatial
	if err := yaml.Unmarshal(data, &gen); err != nil {
		return dataset.GroupSpatial{}, err
	}
	return gen, nil
}
