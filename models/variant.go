package models

import (
	"fmt"
	"strings"
)

// Variant enumerates the supported model kinds
type Variant int

const (
	LinearRegression Variant = iota
	LogisticRegression
	KMeansClustering
)

// Variants lists every variant in fit order
var Variants = []Variant{KMeansClustering, LinearRegression, LogisticRegression}

func (v Variant) String() string {
	switch v {
	case LinearRegression:
		return "Linear Regression"
	case LogisticRegression:
		return "Logistic Regression"
	case KMeansClustering:
		return "K-Means Clustering"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Slug returns a lower snake case identifier, e.g. linear_regression
func (v Variant) Slug() string {
	switch v {
	case LinearRegression:
		return "linear_regression"
	case LogisticRegression:
		return "logistic_regression"
	case KMeansClustering:
		return "kmeans_clustering"
	default:
		return ""
	}
}

// Supervised reports whether the variant is fit against the target
func (v Variant) Supervised() bool {
	switch v {
	case LinearRegression, LogisticRegression:
		return true
	default:
		return false
	}
}

// HasRegressionMetrics reports whether predictions are comparable to the target so RMSE and R2
// apply. Cluster assignments are not.
func (v Variant) HasRegressionMetrics() bool {
	switch v {
	case LinearRegression, LogisticRegression:
		return true
	case KMeansClustering:
		return false
	default:
		return false
	}
}

// ParseVariant accepts the display name or slug of a variant, case insensitive
func ParseVariant(s string) (Variant, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, v := range Variants {
		if norm == strings.ToLower(v.String()) || norm == v.Slug() {
			return v, nil
		}
	}
	switch norm {
	case "linear":
		return LinearRegression, nil
	case "logistic":
		return LogisticRegression, nil
	case "kmeans", "k-means":
		return KMeansClustering, nil
	}
	return 0, fmt.Errorf("%q, %w", s, ErrUnknownVariant)
}

func (v Variant) MarshalText() ([]byte, error) {
	if v.Slug() == "" {
		return nil, fmt.Errorf("%d, %w", int(v), ErrUnknownVariant)
	}
	return []byte(v.Slug()), nil
}

func (v *Variant) UnmarshalText(b []byte) error {
	parsed, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
