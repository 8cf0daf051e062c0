package chart

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Histogram counts the non missing values of x into bins equal width buckets between the min and
// max value. It returns the bucket centers and counts.
func Histogram(x []float64, bins int) ([]float64, []float64, error) {
	if bins < 1 {
		return nil, nil, ErrHistogramBins
	}
	vals := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return []float64{}, []float64{}, nil
	}
	slices.Sort(vals)

	lo, hi := vals[0], vals[len(vals)-1]
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	// the last divider is exclusive
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, vals, nil)
	centers := make([]float64, bins)
	for i := range centers {
		centers[i] = (dividers[i] + dividers[i+1]) / 2
	}
	return centers, counts, nil
}
