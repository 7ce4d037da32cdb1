// Package dataset loads, saves, and synthesizes batches of simulated
// elections.
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/ports"
)

var _ ports.BatchStore = (*JSONStore)(nil)

// ErrNilBatch is returned when saving a nil batch.
var ErrNilBatch = errors.New("batch is nil")

// JSONStore keeps batches as indented JSON files. Batches are validated
// on both load and save, so a file written by the store always loads.
type JSONStore struct {
	validate *validator.Validate
}

// NewJSONStore creates a JSONStore.
func NewJSONStore() *JSONStore {
	return &JSONStore{validate: validator.New()}
}

// Load reads the batch at path. Unknown fields are rejected.
func (s *JSONStore) Load(ctx context.Context, path string) (*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var batch domain.Batch
	if err := dec.Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to parse batch JSON: %w", err)
	}

	if err := s.check(&batch); err != nil {
		return nil, fmt.Errorf("batch validation failed: %w", err)
	}
	return &batch, nil
}

// Save writes batch to path, creating parent directories. The file is
// written to a temporary name first and renamed into place, so readers
// never observe a partial batch.
func (s *JSONStore) Save(ctx context.Context, path string, batch *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch == nil {
		return ErrNilBatch
	}
	if err := s.check(batch); err != nil {
		return fmt.Errorf("batch validation failed: %w", err)
	}

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write batch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write batch file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move batch file into place: %w", err)
	}
	return nil
}

// check runs struct validation and the per-sample consistency checks.
func (s *JSONStore) check(batch *domain.Batch) error {
	if err := s.validate.Struct(batch); err != nil {
		return err
	}
	for i, sample := range batch.Samples {
		if err := sample.Validate(fmt.Sprintf("sample %d", i)); err != nil {
			return err
		}
	}
	return nil
}
