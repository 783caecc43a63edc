// Package statutil provides small statistics helpers shared by the feature
// extractors.
package statutil

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MeanVariance returns the mean and population variance of xs.
func MeanVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean = stat.Mean(xs, nil)
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, variance
}

// ZScore normalizes xs to zero mean and unit population standard deviation,
// returning a new slice. A zero-variance input yields all zeros rather than
// NaN or Inf.
func ZScore(xs []float64) []float64 {
	out := make([]float64, len(xs))
	mean, variance := MeanVariance(xs)
	std := math.Sqrt(variance)
	if std == 0 {
		return out
	}
	for i, x := range xs {
		out[i] = (x - mean) / std
	}
	return out
}
