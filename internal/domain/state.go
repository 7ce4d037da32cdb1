// Package domain contains pure, dependency-free domain models and types
// for the representation metric engine.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"time"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
// Packages that own a value type define their keys with it.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's string name.
func (k Key[T]) Name() string { return k.name }

// Predefined state keys used while evaluating a sample.
var (
	// KeyVoters stores the voter positions (n x d).
	KeyVoters = Key[Points]{"voters"}

	// KeyCandidates stores the candidate positions (m x d).
	KeyCandidates = Key[Points]{"candidates"}

	// KeyLabels stores the bloc label of every voter.
	KeyLabels = Key[[]int]{"labels"}

	// KeyRule stores the name of the election rule being evaluated.
	KeyRule = Key[string]{"rule"}

	// KeyWinners stores the winner set produced by the rule.
	KeyWinners = Key[[]int]{"winners"}

	// KeyMeasurements accumulates the scores produced for the sample.
	KeyMeasurements = Key[[]Measurement]{"measurements"}

	// KeyScores stores a series of scores handed to an aggregator.
	KeyScores = Key[[]float64]{"scores"}

	// KeySummary stores the aggregate produced from KeyScores.
	KeySummary = Key[*Summary]{"summary"}

	// Execution context keys.

	// KeyRunID stores the identifier of the batch run.
	KeyRunID = Key[string]{"execution.run_id"}

	// KeySampleIndex stores the position of the sample within its batch.
	KeySampleIndex = Key[int]{"execution.sample_index"}

	// KeySeed stores the per-evaluation seed that randomized units derive
	// their random sources from.
	KeySeed = Key[uint64]{"execution.seed"}
)

// Immutable is implemented by values that are never modified after
// construction. State shares them instead of deep copying, which also
// keeps values with unexported fields intact.
type Immutable interface {
	Immutable()
}

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of State data.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	switch val := value.(type) {
	case Immutable:
		return val
	case time.Time:
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return value
		}
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		if v.IsNil() {
			return value
		}
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			newMap.SetMapIndex(key, reflect.ValueOf(deepCopyValue(v.MapIndex(key).Interface())))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return value
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	case reflect.Struct:
		// Exported fields are deep copied; unexported fields are left zero,
		// so such types should implement Immutable.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				newStruct.Field(i).Set(reflect.ValueOf(deepCopyValue(v.Field(i).Interface())))
			}
		}
		return newStruct.Interface()

	default:
		return value
	}
}

// State represents an immutable collection of evaluation data that flows
// through a pipeline. It uses copy-on-write semantics so concurrent units
// never observe each other's writes.
type State struct {
	// data holds the key-value pairs that make up the state.
	data map[string]any
}

// NewState creates a new empty State.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// It returns the value and whether the key exists with a value of the
// correct type. The returned value is a deep copy unless it is Immutable.
//
// Example:
//
//	winners, ok := Get(state, KeyWinners)
//	if !ok {
//	    return state, MissingKey(KeyWinners)
//	}
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	val, ok := deepCopyValue(value).(T)
	return val, ok
}

// Shape returns the number of points stored under key and their
// dimensionality. It reads the stored value in place, so callers that
// only need sizes avoid the copy made by Get.
func Shape(s State, key Key[Points]) (count, dim int, ok bool) {
	points, ok := s.data[key.name].(Points)
	if !ok {
		return 0, 0, false
	}
	return len(points), points.Dim(), true
}

// With creates a new State with the specified key-value pair added or
// updated, leaving the original unchanged.
//
// Example:
//
//	next := With(state, KeyRule, "sntv")
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple creates a new State with several values added in a single
// clone. Keys are given by name, as returned by Key.Name.
func (s State) WithMultiple(updates map[string]any) State {
	newData := maps.Clone(s.data)
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// AppendMeasurements returns a new State with ms appended to KeyMeasurements.
func (s State) AppendMeasurements(ms ...Measurement) State {
	existing, _ := Get(s, KeyMeasurements)
	return With(s, KeyMeasurements, append(existing, ms...))
}

// Keys returns all keys present in the State in sorted order.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s.data))
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.Keys())
}

// ExecutionContext carries metadata about the evaluation in progress so
// units, middleware, and observability can label their output.
type ExecutionContext struct {
	// RunID identifies the batch run.
	RunID string

	// SampleIndex is the sample's position within the batch.
	SampleIndex int

	// Seed is the deterministic seed for randomized units.
	Seed uint64
}

// WithExecutionContext creates a new State carrying the execution context.
func (s State) WithExecutionContext(ctx ExecutionContext) State {
	return s.WithMultiple(map[string]any{
		KeyRunID.name:       ctx.RunID,
		KeySampleIndex.name: ctx.SampleIndex,
		KeySeed.name:        ctx.Seed,
	})
}

// GetExecutionContext extracts the execution context from the State.
// It reports false if any field is missing.
func (s State) GetExecutionContext() (ExecutionContext, bool) {
	runID, ok1 := Get(s, KeyRunID)
	index, ok2 := Get(s, KeySampleIndex)
	seed, ok3 := Get(s, KeySeed)
	if !ok1 || !ok2 || !ok3 {
		return ExecutionContext{}, false
	}
	return ExecutionContext{RunID: runID, SampleIndex: index, Seed: seed}, true
}
