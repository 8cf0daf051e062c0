// Package models is a collection of the model variants a pipeline can fit: ordinary least squares,
// one-vs-rest logistic regression and k-means clustering.
package models

import (
	"gonum.org/v1/gonum/mat"
)

// Model is a supervised model fit on a design matrix and a single column target matrix
type Model interface {
	Fit(x, y mat.Matrix) error
	Predict(x mat.Matrix) ([]float64, error)
	Score(x, y mat.Matrix) (float64, error)
	Intercept() float64
	Coef() []float64
}

// Fitted is a trained model of any variant ready for inference
type Fitted interface {
	Variant() Variant
	Predict(x mat.Matrix) ([]float64, error)
}

// Clusterer is an unsupervised model fit on the design matrix alone
type Clusterer interface {
	Fit(x mat.Matrix) error
	Predict(x mat.Matrix) ([]float64, error)
	Centers() [][]float64
	Inertia() float64
}
