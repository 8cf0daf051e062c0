package marketmaster

import (
	"errors"
	"fmt"
)

// Failure categories. Every error returned by a stage matches exactly one of these with errors.Is.
var (
	ErrValidation  = errors.New("invalid input")
	ErrExternal    = errors.New("external dependency failure")
	ErrModel       = errors.New("model failure")
	ErrStageLocked = errors.New("stage is locked")
)

var (
	ErrInvalidStage         = fmt.Errorf("invalid stage, %w", ErrValidation)
	ErrStageIncomplete      = fmt.Errorf("current stage is not complete, %w", ErrStageLocked)
	ErrInactiveStage        = fmt.Errorf("stage is not the current stage, %w", ErrStageLocked)
	ErrLastStage            = fmt.Errorf("already at the last stage, %w", ErrValidation)
	ErrNoFetcher            = fmt.Errorf("no remote fetcher configured, %w", ErrExternal)
	ErrWindowSize           = fmt.Errorf("rolling window out of range, %w", ErrValidation)
	ErrNoTarget             = fmt.Errorf("no target selected, %w", ErrValidation)
	ErrNoFeatures           = fmt.Errorf("no features selected, %w", ErrValidation)
	ErrTargetIsFeature      = fmt.Errorf("target cannot also be a feature, %w", ErrValidation)
	ErrDuplicateFeature     = fmt.Errorf("feature selected more than once, %w", ErrValidation)
	ErrNoVariants           = fmt.Errorf("no model variants selected, %w", ErrValidation)
	ErrClusters             = fmt.Errorf("number of clusters out of range, %w", ErrValidation)
	ErrTargetNotContinuous  = fmt.Errorf("linear regression needs a continuous target, %w", ErrValidation)
	ErrTargetNotCategorical = fmt.Errorf("logistic regression needs a categorical target, %w", ErrValidation)
	ErrNotExportable        = fmt.Errorf("variant has no exportable predictions, %w", ErrValidation)
)

// StageError records the stage that failed along with the failure category
type StageError struct {
	Stage    Stage
	Category error
	Err      error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Category)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Category}
	}
	return []error{e.Category, e.Err}
}

func stageErr(s Stage, category, err error) error {
	return &StageError{Stage: s, Category: category, Err: err}
}
