package marketmaster

import (
	"fmt"

	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/dataset"
	"github.com/aouyang1/go-marketmaster/source"
	"github.com/aouyang1/go-marketmaster/stats"
)

// Bounds is the closed interval values were clipped to
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// PreprocessReport lists per numeric column how many values were imputed and clipped. Outliers
// holds the row positions that fell outside the bounds.
type PreprocessReport struct {
	Imputed  map[string]int    `json:"imputed"`
	Clipped  map[string]int    `json:"clipped"`
	Outliers map[string][]int  `json:"outliers,omitempty"`
	Bounds   map[string]Bounds `json:"bounds"`
}

// Preprocess imputes missing numeric values with the column mean, then clips every numeric column
// to its tukey fences computed after imputation. The raw table is left untouched.
func (p *Pipeline) Preprocess() (*PreprocessReport, error) {
	if err := p.guard(StagePreprocess); err != nil {
		return nil, err
	}
	raw := p.state.Raw
	processed := raw.Copy()
	report := &PreprocessReport{
		Imputed:  make(map[string]int),
		Clipped:  make(map[string]int),
		Outliers: make(map[string][]int),
		Bounds:   make(map[string]Bounds),
	}

	for _, name := range processed.NumericNames() {
		vals, err := processed.Numeric(name)
		if err != nil {
			return nil, stageErr(StagePreprocess, ErrValidation, err)
		}
		imputed, nImputed := stats.ImputeMean(vals)
		lower, upper := stats.TukeyBounds(imputed, stats.TukeyFactor)
		clipped, nClipped := stats.Clip(imputed, lower, upper)
		if err := processed.SetNumeric(name, clipped); err != nil {
			return nil, stageErr(StagePreprocess, ErrValidation, fmt.Errorf("unable to replace %s, %w", name, err))
		}
		report.Imputed[name] = nImputed
		report.Clipped[name] = nClipped
		if outliers := stats.DetectOutliers(imputed, stats.TukeyFactor); len(outliers) > 0 {
			report.Outliers[name] = outliers
		}
		report.Bounds[name] = Bounds{Lower: lower, Upper: upper}
	}

	p.state.Processed = processed
	p.state.PreprocessReport = report
	p.state.Warnings = nil
	p.markComplete(StagePreprocess)

	p.logger.Info("preprocessed data", "columns", len(report.Bounds))
	p.present(StagePreprocess, p.preprocessCharts(raw, report)...)
	return report, nil
}

func (p *Pipeline) preprocessCharts(raw *dataset.Table, report *PreprocessReport) []chart.Spec {
	var specs []chart.Spec
	names := raw.NumericNames()
	if len(names) == 0 {
		return specs
	}
	missing := make([]float64, len(names))
	clipped := make([]float64, len(names))
	for i, name := range names {
		missing[i] = float64(report.Imputed[name])
		clipped[i] = float64(report.Clipped[name])
	}
	specs = append(specs, chart.Spec{
		Kind:       chart.KindBar,
		Title:      "Missing and Clipped Values",
		XTitle:     "Column",
		YTitle:     "Count",
		Categories: names,
		Series: []chart.Series{
			{Name: "Imputed", Y: missing},
			{Name: "Clipped", Y: clipped},
		},
	})

	if closes, err := p.state.Processed.Numeric(source.CloseColumn); err == nil {
		specs = append(specs, chart.Spec{
			Kind:       chart.KindLine,
			Title:      p.labels().PriceChart,
			XTitle:     "Date",
			YTitle:     source.CloseColumn,
			Categories: rowLabels(p.state.Processed),
			Series:     []chart.Series{{Name: source.CloseColumn, Y: closes}},
		})
	}
	return specs
}
