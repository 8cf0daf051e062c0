package marketmaster

import (
	"github.com/aouyang1/go-marketmaster/dataset"
	"github.com/aouyang1/go-marketmaster/models"
	"github.com/aouyang1/go-marketmaster/source"
	"github.com/aouyang1/go-marketmaster/split"
)

// FlagSet holds the completion marker of every stage
type FlagSet struct {
	DataLoaded         bool `json:"data_loaded"`
	Preprocessed       bool `json:"preprocessed"`
	FeaturesEngineered bool `json:"features_engineered"`
	DataSplit          bool `json:"data_split"`
	ModelTrained       bool `json:"model_trained"`
	ModelEvaluated     bool `json:"model_evaluated"`
}

func (f *FlagSet) ptr(flag Flag) *bool {
	switch flag {
	case FlagDataLoaded:
		return &f.DataLoaded
	case FlagPreprocessed:
		return &f.Preprocessed
	case FlagFeaturesEngineered:
		return &f.FeaturesEngineered
	case FlagDataSplit:
		return &f.DataSplit
	case FlagModelTrained:
		return &f.ModelTrained
	case FlagModelEvaluated:
		return &f.ModelEvaluated
	default:
		return nil
	}
}

// Get returns the value of a flag. Unknown flags are never set.
func (f FlagSet) Get(flag Flag) bool {
	p := f.ptr(flag)
	return p != nil && *p
}

func (f *FlagSet) set(flag Flag, v bool) {
	if p := f.ptr(flag); p != nil {
		*p = v
	}
}

// Count returns the number of flags set
func (f FlagSet) Count() int {
	var n int
	for _, flag := range Flags {
		if f.Get(flag) {
			n++
		}
	}
	return n
}

// State is everything one session has produced. Stage operations only write to it after they
// succeed.
type State struct {
	CurrentStage Stage
	Flags        FlagSet

	Raw       *dataset.Table
	Processed *dataset.Table
	Featured  *dataset.Table

	Target   string
	Features []string

	Train *split.Subset
	Test  *split.Subset

	Fitted      map[models.Variant]models.Fitted
	Predictions map[models.Variant][]float64
	Metrics     map[models.Variant]models.Scores

	LastSymbol string
	LastPrice  *float64

	// Warnings are the non fatal issues from the last stage run
	Warnings []string

	LoadReport       *LoadReport
	PreprocessReport *PreprocessReport
	FeatureReport    *FeatureReport
	SplitReport      *SplitReport
	TrainReport      *TrainReport
	EvaluateReport   *EvaluateReport

	// evaluated is set once Evaluate has produced predictions and waits on Next to acknowledge
	evaluated bool
}

// NewState returns the state of a fresh session at the welcome stage with no flags set
func NewState() *State {
	return &State{
		CurrentStage: StageWelcome,
		Fitted:       make(map[models.Variant]models.Fitted),
		Predictions:  make(map[models.Variant][]float64),
		Metrics:      make(map[models.Variant]models.Scores),
	}
}

// clearAfter drops every flag and output owned by stages after s
func (st *State) clearAfter(s Stage) {
	for stage := s + 1; stage <= StageResults; stage++ {
		if flag, ok := stage.Completes(); ok {
			st.Flags.set(flag, false)
		}
		switch stage {
		case StagePreprocess:
			st.Processed = nil
			st.PreprocessReport = nil
		case StageFeatures:
			st.Featured = nil
			st.Target = ""
			st.Features = nil
			st.FeatureReport = nil
		case StageSplit:
			st.Train = nil
			st.Test = nil
			st.SplitReport = nil
		case StageTrain:
			st.Fitted = make(map[models.Variant]models.Fitted)
			st.TrainReport = nil
		case StageEvaluate:
			st.Predictions = make(map[models.Variant][]float64)
			st.Metrics = make(map[models.Variant]models.Scores)
			st.EvaluateReport = nil
			st.evaluated = false
		}
	}
}

// LoadReport summarizes a loaded table
type LoadReport struct {
	Rows      int              `json:"rows"`
	Columns   []string         `json:"columns"`
	Missing   map[string]int   `json:"missing,omitempty"`
	Warnings  []source.Warning `json:"warnings,omitempty"`
	Symbol    string           `json:"symbol,omitempty"`
	LastPrice *float64         `json:"last_price,omitempty"`
}
