package measure

import (
	"errors"
	"fmt"
)

// Errors returned by the metric engine. Every error is local to a single
// evaluation call; none of them are retryable.
var (
	// ErrEmptyPositions indicates that a voter or candidate set has no points.
	ErrEmptyPositions = errors.New("empty position set")

	// ErrDimensionMismatch indicates that point dimensionalities disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNilDistance indicates that no distance function was supplied.
	ErrNilDistance = errors.New("distance function is nil")

	// ErrSizeTooLarge indicates that a best-subset size exceeds the number
	// of candidate rows available.
	ErrSizeTooLarge = errors.New("requested size is too large")

	// ErrNegativeSize indicates that a size or entitlement is negative.
	ErrNegativeSize = errors.New("size cannot be negative")

	// ErrInvalidWinners indicates a winner index that is out of range or
	// repeated.
	ErrInvalidWinners = errors.New("invalid winner set")

	// ErrLabelMismatch indicates that the labeling does not cover every voter.
	ErrLabelMismatch = errors.New("labels and voters length mismatch")

	// ErrUndefinedScore indicates that the best achievable cost over all
	// candidates is zero, so the inefficiency ratio has no finite value.
	ErrUndefinedScore = errors.New("inefficiency score is undefined")

	// ErrNilSource indicates that a randomized call was made without a
	// random source.
	ErrNilSource = errors.New("random source is nil")

	// ErrEntitlementTooLarge indicates that no bloc of voters can be
	// entitled to the requested number of representatives.
	ErrEntitlementTooLarge = errors.New("entitlement exceeds winner count")

	// ErrUnreachableEntitlement indicates that no bloc size is owed exactly
	// the requested number of representatives, which happens when the
	// committee is larger than the electorate.
	ErrUnreachableEntitlement = errors.New("no bloc is owed exactly the entitlement")

	// ErrInvalidWeights indicates that sampling weights cannot form a
	// probability distribution over the voters.
	ErrInvalidWeights = errors.New("invalid sampling weights")
)

// DimensionError describes which point broke the dimensionality invariant.
type DimensionError struct {
	// Set names the position set that holds the offending point.
	Set string

	// Index is the offending point's position within Set.
	Index int

	// Want is the expected dimensionality.
	Want int

	// Got is the dimensionality actually found.
	Got int
}

// Error implements the error interface for DimensionError.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("%v: %s[%d] has %d coordinates, want %d",
		ErrDimensionMismatch, e.Set, e.Index, e.Got, e.Want)
}

// Unwrap returns ErrDimensionMismatch so callers can use errors.Is.
func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// SizeError reports a best-subset request that cannot be satisfied.
type SizeError struct {
	// Size is the requested subset size.
	Size int

	// Available is the number of rows the request was made against.
	Available int
}

// Error implements the error interface for SizeError.
func (e *SizeError) Error() string {
	return fmt.Sprintf("%v: size=%d, available=%d", ErrSizeTooLarge, e.Size, e.Available)
}

// Unwrap returns ErrSizeTooLarge so callers can use errors.Is.
func (e *SizeError) Unwrap() error { return ErrSizeTooLarge }
