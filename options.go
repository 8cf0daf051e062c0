package marketmaster

import (
	"log/slog"

	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/source"
)

// Options configures the collaborators of a Pipeline. Nil fields fall back to defaults.
type Options struct {
	Logger *slog.Logger

	// Presenter receives the charts built by every stage, grouped by stage name
	Presenter chart.Presenter

	// Fetcher serves remote quote requests. Loading remote data fails without one.
	Fetcher source.Fetcher

	Features *FeatureOptions
	Split    *SplitOptions
	Train    *TrainOptions
}

func NewDefaultOptions() *Options {
	return &Options{
		Logger:    slog.Default(),
		Presenter: chart.Discard,
		Features:  NewDefaultFeatureOptions(),
		Split:     NewDefaultSplitOptions(),
		Train:     NewDefaultTrainOptions(),
	}
}
