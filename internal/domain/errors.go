package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur while preparing or evaluating samples.
var (
	// ErrInvalidState indicates that a State operation received invalid input.
	ErrInvalidState = errors.New("invalid state")

	// ErrKeyNotFound indicates that a requested state key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidSample indicates that a sample's positions, labels, or
	// winner sets do not agree with each other.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrNoScores indicates that an aggregation received no scores.
	ErrNoScores = errors.New("no scores to aggregate")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// StateError represents an error that occurred while a unit read or wrote
// evaluation State. It records which key and operation failed.
type StateError struct {
	// Key is the name of the state key involved in the failed operation.
	Key string

	// Operation describes what was being attempted, such as "read" or "decode".
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for StateError.
func (e *StateError) Error() string {
	return fmt.Sprintf("state error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *StateError) Unwrap() error { return e.Err }

// NewStateError creates a StateError for the given typed key.
func NewStateError[T any](key Key[T], operation string, err error) *StateError {
	return &StateError{Key: key.Name(), Operation: operation, Err: err}
}

// MissingKey returns the StateError a unit reports when a required key is
// absent from its input state.
func MissingKey[T any](key Key[T]) *StateError {
	return NewStateError(key, "read", ErrKeyNotFound)
}

// ValidationError collects every problem found while validating an entity
// so callers can report them together.
type ValidationError struct {
	// Entity names what failed validation, such as "sample 3".
	Entity string

	// Errors contains one message per problem found.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets errors.Is match ErrInvalidSample on any validation failure.
func (e *ValidationError) Unwrap() error { return ErrInvalidSample }

// AddError records a formatted validation message.
func (e *ValidationError) AddError(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// HasErrors returns true if any problem was recorded.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates an empty ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
