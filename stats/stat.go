package stats

import (
	"errors"
	"math"
	"slices"

	mat_ "github.com/aouyang1/go-marketmaster/mat"
	"github.com/aouyang1/go-marketmaster/models"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// TukeyFactor is the multiple of the inter quartile range allowed beyond each quartile
	TukeyFactor = 1.5

	// ContinuousDistinctValues is the number of distinct values a target must exceed to be
	// treated as continuous
	ContinuousDistinctValues = 10
)

var (
	ErrMinimumFeatures    = errors.New("need at least 2 features to compute VIF")
	ErrFeatureLenMismatch = errors.New("some feature length is not consistent")
	ErrFeatureLen         = errors.New("must have at least 2 points per feature")
	ErrWindowSize         = errors.New("window size must be at least 1")
)

// nonMissing returns a copy of x without NaN values
func nonMissing(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// MeanIgnoringNaN returns the mean over non missing values. An all missing input returns NaN.
func MeanIgnoringNaN(x []float64) float64 {
	vals := nonMissing(x)
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// ImputeMean replaces missing values with the mean of the non missing values and returns the
// number of values replaced. A column with no values at all is filled with 0.
func ImputeMean(x []float64) ([]float64, int) {
	out := slices.Clone(x)
	fill := MeanIgnoringNaN(x)
	if math.IsNaN(fill) {
		fill = 0
	}
	var replaced int
	for i, v := range out {
		if math.IsNaN(v) {
			out[i] = fill
			replaced++
		}
	}
	return out, replaced
}

// TukeyBounds returns [Q1 - factor*IQR, Q3 + factor*IQR] computed from the non missing values
func TukeyBounds(x []float64, factor float64) (float64, float64) {
	vals := nonMissing(x)
	if len(vals) == 0 {
		return math.NaN(), math.NaN()
	}
	factor = math.Max(factor, 0.0)
	slices.Sort(vals)
	q1 := stat.Quantile(0.25, stat.LinInterp, vals, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, vals, nil)
	iqr := q3 - q1
	return q1 - factor*iqr, q3 + factor*iqr
}

// Clip bounds every value to [lower, upper] and returns the number of values changed
func Clip(x []float64, lower, upper float64) ([]float64, int) {
	out := slices.Clone(x)
	var clipped int
	for i, v := range out {
		switch {
		case v < lower:
			out[i] = lower
			clipped++
		case v > upper:
			out[i] = upper
			clipped++
		}
	}
	return out, clipped
}

// DetectOutliers returns the indexes of the values lying outside the tukey bounds
func DetectOutliers(y []float64, tukeyFactor float64) []int {
	lower, upper := TukeyBounds(y, tukeyFactor)

	var outlierIdx []int
	for i := 0; i < len(y); i++ {
		if y[i] > upper || y[i] < lower {
			outlierIdx = append(outlierIdx, i)
		}
	}
	return outlierIdx
}

// RollingMean computes a trailing mean over window points. The first window-1 values are NaN.
func RollingMean(x []float64, window int) ([]float64, error) {
	if window < 1 {
		return nil, ErrWindowSize
	}
	out := make([]float64, len(x))
	for i := range x {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(x[i+1-window:i+1], nil)
	}
	return out, nil
}

// RollingStdDev computes a trailing sample standard deviation over window points. The first
// window-1 values are NaN.
func RollingStdDev(x []float64, window int) ([]float64, error) {
	if window < 1 {
		return nil, ErrWindowSize
	}
	out := make([]float64, len(x))
	for i := range x {
		if i+1 < window || window < 2 {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.StdDev(x[i+1-window:i+1], nil)
	}
	return out, nil
}

// PctChange computes the period over period fractional change. The first value is NaN.
func PctChange(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i]/x[i-1] - 1
	}
	return out
}

// FillNaN replaces missing values in place with the value at the same position in fill
func FillNaN(x, fill []float64) []float64 {
	for i, v := range x {
		if math.IsNaN(v) {
			x[i] = fill[i]
		}
	}
	return x
}

// FillNaNConst replaces missing values in place with val
func FillNaNConst(x []float64, val float64) []float64 {
	for i, v := range x {
		if math.IsNaN(v) {
			x[i] = val
		}
	}
	return x
}

// Standardize rescales x to zero mean and unit population variance. A constant input maps to 0.
func Standardize(x []float64) []float64 {
	mean, std := stat.PopMeanStdDev(x, nil)
	out := make([]float64, len(x))
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for i, v := range x {
		out[i] = (v - mean) / std
	}
	return out
}

// DistinctCount returns the number of distinct non missing values
func DistinctCount(x []float64) int {
	seen := make(map[float64]struct{}, len(x))
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}

// IsContinuous reports whether a target has more than ContinuousDistinctValues distinct values
func IsContinuous(x []float64) bool {
	return DistinctCount(x) > ContinuousDistinctValues
}

// CorrelationMatrix computes the pearson correlation between every pair of columns
func CorrelationMatrix(cols [][]float64) [][]float64 {
	n := len(cols)
	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				corr[i][j] = 1.0
				continue
			}
			corr[i][j] = stat.Correlation(cols[i], cols[j], nil)
		}
	}
	return corr
}

// VarianceInflationFactor regresses each feature on the others and reports 1/(1-R^2). A feature
// perfectly explained by the others returns +Inf.
func VarianceInflationFactor(features map[string][]float64) (map[string]float64, error) {
	if len(features) < 2 {
		return nil, ErrMinimumFeatures
	}
	n := len(features) - 1
	var m int
	for _, feature := range features {
		if len(feature) < 2 {
			return nil, ErrFeatureLen
		}
		if m == 0 {
			m = len(feature)
			continue
		}
		if m != len(feature) {
			return nil, ErrFeatureLenMismatch
		}
	}

	labels := make([]string, 0, len(features))
	for label := range features {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	vif := make(map[string]float64)
	y := mat.NewDense(m, 1, nil)
	for _, label := range labels {
		y.SetCol(0, features[label])
		others := make([][]float64, 0, n)
		for _, otherLabel := range labels {
			if otherLabel != label {
				others = append(others, features[otherLabel])
			}
		}
		x, err := mat_.NewDenseFromColumns(others)
		if err != nil {
			return nil, err
		}

		ols, err := models.NewOLSRegression(nil)
		if err != nil {
			return nil, err
		}
		if err := ols.Fit(x, y); err != nil {
			vif[label] = math.Inf(1)
			continue
		}
		r2, err := ols.Score(x, y)
		if err != nil {
			return nil, err
		}
		if scalar.EqualWithinAbs(r2, 1.0, 1e-12) {
			vif[label] = math.Inf(1)
			continue
		}
		vif[label] = 1.0 / (1.0 - r2)
	}
	return vif, nil
}
