package domain

// Aggregator combines a series of per-sample scores into a Summary.
// Implementations provide different headline statistics such as the
// arithmetic mean, the median, or the worst case.
type Aggregator interface {
	// Aggregate summarizes scores. The returned Summary has Value, Count,
	// Mean, StdDev, Median, Min, and Max filled; Rule and Metric are left
	// for the caller.
	//
	// Implementations must return ErrNoScores for an empty series and an
	// error for NaN or infinite values.
	//
	// Example:
	//
	//	summary, err := aggregator.Aggregate([]float64{1, 1.25, 1.5})
	Aggregate(scores []float64) (Summary, error)
}
