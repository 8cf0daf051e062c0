package marketmaster

import (
	"fmt"
	"strconv"
	"strings"
)

// Stage is one step of the fixed pipeline order
type Stage int

const (
	StageWelcome Stage = iota
	StageLoad
	StagePreprocess
	StageFeatures
	StageSplit
	StageTrain
	StageEvaluate
	StageResults
)

// Stages lists every stage in order
var Stages = []Stage{
	StageWelcome,
	StageLoad,
	StagePreprocess,
	StageFeatures,
	StageSplit,
	StageTrain,
	StageEvaluate,
	StageResults,
}

func (s Stage) String() string {
	switch s {
	case StageWelcome:
		return "welcome"
	case StageLoad:
		return "load"
	case StagePreprocess:
		return "preprocess"
	case StageFeatures:
		return "features"
	case StageSplit:
		return "split"
	case StageTrain:
		return "train"
	case StageEvaluate:
		return "evaluate"
	case StageResults:
		return "results"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Valid reports whether s is one of the defined stages
func (s Stage) Valid() bool {
	return s >= StageWelcome && s <= StageResults
}

// ParseStage accepts a stage name or its index
func ParseStage(v string) (Stage, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if i, err := strconv.Atoi(v); err == nil {
		if s := Stage(i); s.Valid() {
			return s, nil
		}
		return 0, fmt.Errorf("%d, %w", i, ErrInvalidStage)
	}
	for _, s := range Stages {
		if s.String() == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%q, %w", v, ErrInvalidStage)
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%d, %w", int(s), ErrInvalidStage)
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	parsed, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Flag marks the successful completion of a stage
type Flag int

const (
	FlagDataLoaded Flag = iota
	FlagPreprocessed
	FlagFeaturesEngineered
	FlagDataSplit
	FlagModelTrained
	FlagModelEvaluated
)

// Flags lists every flag in stage order
var Flags = []Flag{
	FlagDataLoaded,
	FlagPreprocessed,
	FlagFeaturesEngineered,
	FlagDataSplit,
	FlagModelTrained,
	FlagModelEvaluated,
}

func (f Flag) String() string {
	switch f {
	case FlagDataLoaded:
		return "data_loaded"
	case FlagPreprocessed:
		return "preprocessed"
	case FlagFeaturesEngineered:
		return "features_engineered"
	case FlagDataSplit:
		return "data_split"
	case FlagModelTrained:
		return "model_trained"
	case FlagModelEvaluated:
		return "model_evaluated"
	default:
		return fmt.Sprintf("Flag(%d)", int(f))
	}
}

// Completes returns the flag set when the stage finishes. Welcome and Results own no flag.
func (s Stage) Completes() (Flag, bool) {
	switch s {
	case StageLoad:
		return FlagDataLoaded, true
	case StagePreprocess:
		return FlagPreprocessed, true
	case StageFeatures:
		return FlagFeaturesEngineered, true
	case StageSplit:
		return FlagDataSplit, true
	case StageTrain:
		return FlagModelTrained, true
	case StageEvaluate:
		return FlagModelEvaluated, true
	default:
		return 0, false
	}
}

// Requires returns the flag that must be set before the stage can run. Welcome and Load are
// always available.
func (s Stage) Requires() (Flag, bool) {
	if s <= StageLoad || !s.Valid() {
		return 0, false
	}
	return (s - 1).Completes()
}
