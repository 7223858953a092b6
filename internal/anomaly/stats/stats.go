// Package stats provides the numeric primitives shared by all detectors.
// Every function is pure and returns 0 for empty input; callers that
// need to distinguish "no data" from "zero statistic" must guard on
// emptiness themselves.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		variance += math.Pow(v-mean, 2)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// Median returns the median of values, operating on a sorted copy. For
// even-length input it averages the two middle elements.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return medianSorted(sorted)
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Quartiles returns Q1 and Q3 via median-of-halves: the input is sorted,
// split at the integer midpoint, and the median element is excluded from
// both halves when the length is odd.
func Quartiles(values []float64) (q1, q3 float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	lower := sorted[:mid]
	var upper []float64
	if len(sorted)%2 == 0 {
		upper = sorted[mid:]
	} else {
		upper = sorted[mid+1:]
	}
	return medianSorted(lower), medianSorted(upper)
}

// IQR returns the interquartile range Q3-Q1.
func IQR(values []float64) float64 {
	q1, q3 := Quartiles(values)
	return q3 - q1
}

// MAD returns the median absolute deviation from the median.
func MAD(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	med := Median(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	return Median(deviations)
}
