package measure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DistanceFunc measures the distance between two points of equal
// dimensionality. Implementations must be symmetric and non-negative.
// Callers guarantee len(a) == len(b).
type DistanceFunc func(a, b []float64) float64

// Metric names a built-in distance function so it can be selected by
// configuration.
type Metric string

// Built-in metrics.
const (
	MetricEuclidean Metric = "euclidean"
	MetricManhattan Metric = "manhattan"
	MetricChebyshev Metric = "chebyshev"
)

// Euclidean is the standard L2 distance. It accumulates squared
// coordinate differences in index order, exactly as the fast path does.
func Euclidean(a, b []float64) float64 {
	var sum float64
	for x := range a {
		diff := a[x] - b[x]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Manhattan is the L1 distance.
func Manhattan(a, b []float64) float64 { return floats.Distance(a, b, 1) }

// Chebyshev is the L-infinity distance.
func Chebyshev(a, b []float64) float64 { return floats.Distance(a, b, math.Inf(1)) }

// Func resolves the metric to its distance function. The empty metric
// resolves to Euclidean.
func (m Metric) Func() (DistanceFunc, error) {
	switch m {
	case "", MetricEuclidean:
		return Euclidean, nil
	case MetricManhattan:
		return Manhattan, nil
	case MetricChebyshev:
		return Chebyshev, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", string(m))
	}
}

// IsEuclidean reports whether the metric is eligible for the vectorized
// Euclidean construction.
func (m Metric) IsEuclidean() bool { return m == "" || m == MetricEuclidean }
