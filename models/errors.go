package models

import (
	"errors"
)

var (
	ErrNoOptions          = errors.New("no initialized model options")
	ErrTargetLenMismatch  = errors.New("target length does not match target rows")
	ErrNoTrainingMatrix   = errors.New("no training matrix")
	ErrNoTargetMatrix     = errors.New("no target matrix")
	ErrNoDesignMatrix     = errors.New("no design matrix for inference")
	ErrFeatureLenMismatch = errors.New("number of features does not match number of model coefficients")
	ErrSingularMatrix     = errors.New("design matrix is rank deficient")
	ErrSingleClass        = errors.New("target needs at least 2 classes")
	ErrTooFewSamples      = errors.New("fewer samples than clusters")
	ErrNumClusters        = errors.New("number of clusters must be at least 1")
	ErrUntrained          = errors.New("model has not been fit")
	ErrUnknownVariant     = errors.New("unknown model variant")
	ErrResLenMismatch     = errors.New("predicted and actual have different lengths")
)
