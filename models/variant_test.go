package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariant(t *testing.T) {
	testData := map[string]struct {
		input    string
		expected Variant
		err      error
	}{
		"display name": {"Linear Regression", LinearRegression, nil},
		"slug":         {"logistic_regression", LogisticRegression, nil},
		"kmeans slug":  {"kmeans_clustering", KMeansClustering, nil},
		"short":        {"kmeans", KMeansClustering, nil},
		"mixed case":   {"K-Means Clustering", KMeansClustering, nil},
		"unknown":      {"random forest", 0, ErrUnknownVariant},
		"empty":        {"", 0, ErrUnknownVariant},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			v, err := ParseVariant(td.input)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, v)
		})
	}
}

func TestVariantContract(t *testing.T) {
	assert.True(t, LinearRegression.HasRegressionMetrics())
	assert.True(t, LogisticRegression.HasRegressionMetrics())
	assert.False(t, KMeansClustering.HasRegressionMetrics())
	assert.False(t, KMeansClustering.Supervised())

	b, err := LogisticRegression.MarshalText()
	require.Nil(t, err)
	assert.Equal(t, "logistic_regression", string(b))

	for _, v := range Variants {
		assert.Regexp(t, `^[a-z]+(_[a-z]+)*$`, v.Slug(), v.String())
	}

	var v Variant
	require.Nil(t, v.UnmarshalText([]byte("linear_regression")))
	assert.Equal(t, LinearRegression, v)
}
