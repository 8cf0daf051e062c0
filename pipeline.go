// Package marketmaster walks a market data table through a fixed sequence of stages: load,
// preprocess, engineer features, split, train, evaluate and present results. A Pipeline gates
// each stage on the completion of the one before it.
package marketmaster

import (
	"log/slog"

	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/source"
	"github.com/aouyang1/go-marketmaster/theme"
)

// Pipeline owns the state of one session. It is not safe for concurrent use.
type Pipeline struct {
	opt       *Options
	logger    *slog.Logger
	presenter chart.Presenter
	fetcher   source.Fetcher

	state *State
	theme theme.Theme
}

// New creates a pipeline at the welcome stage. If no options are provided a default is used.
func New(opt *Options) *Pipeline {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	presenter := opt.Presenter
	if presenter == nil {
		presenter = chart.Discard
	}
	return &Pipeline{
		opt:       opt,
		logger:    logger.With("component", "pipeline"),
		presenter: presenter,
		fetcher:   opt.Fetcher,
		state:     NewState(),
	}
}

// State returns the current session state. Callers must treat it as read only.
func (p *Pipeline) State() *State {
	return p.state
}

// Theme returns the selected presentation theme
func (p *Pipeline) Theme() theme.Theme {
	return p.theme
}

// SetTheme changes the presentation labels. It never changes computed results.
func (p *Pipeline) SetTheme(t theme.Theme) {
	p.theme = t
}

func (p *Pipeline) labels() theme.Labels {
	return theme.Lookup(p.theme)
}

// IsAvailable reports whether a stage can be selected or run
func (p *Pipeline) IsAvailable(s Stage) bool {
	if !s.Valid() {
		return false
	}
	flag, gated := s.Requires()
	return !gated || p.state.Flags.Get(flag)
}

// Available lists the stages that can be selected, in order
func (p *Pipeline) Available() []Stage {
	out := make([]Stage, 0, len(Stages))
	for _, s := range Stages {
		if p.IsAvailable(s) {
			out = append(out, s)
		}
	}
	return out
}

// Progress is the fraction of completion flags set
func (p *Pipeline) Progress() float64 {
	return float64(p.state.Flags.Count()) / float64(len(Flags))
}

// complete reports whether the current stage allows moving on
func (p *Pipeline) complete(s Stage) bool {
	switch s {
	case StageWelcome:
		return true
	case StageEvaluate:
		return p.state.evaluated
	default:
		flag, ok := s.Completes()
		return ok && p.state.Flags.Get(flag)
	}
}

// Next advances exactly one stage once the current stage is complete. Continuing past the
// evaluate stage acknowledges the evaluation and marks the model evaluated.
func (p *Pipeline) Next() error {
	cur := p.state.CurrentStage
	if cur == StageResults {
		return stageErr(cur, ErrValidation, ErrLastStage)
	}
	if !p.complete(cur) {
		p.logger.Warn("stage not complete, staying put", "stage", cur.String())
		return stageErr(cur, ErrStageLocked, ErrStageIncomplete)
	}
	if cur == StageEvaluate {
		p.state.Flags.ModelEvaluated = true
	}
	p.state.CurrentStage = cur + 1
	p.logger.Info("advanced stage", "from", cur.String(), "to", p.state.CurrentStage.String())
	return nil
}

// Jump selects any available stage
func (p *Pipeline) Jump(s Stage) error {
	if !s.Valid() {
		return stageErr(s, ErrValidation, ErrInvalidStage)
	}
	if err := p.unlocked(s); err != nil {
		return err
	}
	p.state.CurrentStage = s
	return nil
}

// Reset discards all session state and clears the theme selection
func (p *Pipeline) Reset() {
	p.state = NewState()
	p.theme = theme.None
	p.logger.Info("pipeline reset")
}

// unlocked blocks a stage whose prerequisite flag is not set
func (p *Pipeline) unlocked(s Stage) error {
	if p.IsAvailable(s) {
		return nil
	}
	flag, _ := s.Requires()
	p.logger.Warn("stage is locked", "stage", s.String(), "requires", flag.String())
	return &StageError{Stage: s, Category: ErrStageLocked}
}

// guard admits a stage operation only when the stage is unlocked and is the current stage
func (p *Pipeline) guard(s Stage) error {
	if err := p.unlocked(s); err != nil {
		return err
	}
	if cur := p.state.CurrentStage; s != cur {
		p.logger.Warn("stage is not active", "stage", s.String(), "current", cur.String())
		return stageErr(s, ErrStageLocked, ErrInactiveStage)
	}
	return nil
}

// markComplete marks a stage done and drops everything derived from an earlier run of later
// stages, including their charts
func (p *Pipeline) markComplete(s Stage) {
	p.state.clearAfter(s)
	for later := s + 1; later <= StageResults; later++ {
		p.presenter.Present(later.String())
	}
	if flag, ok := s.Completes(); ok && s != StageEvaluate {
		p.state.Flags.set(flag, true)
	}
}

func (p *Pipeline) present(s Stage, specs ...chart.Spec) {
	p.presenter.Present(s.String(), specs...)
}
