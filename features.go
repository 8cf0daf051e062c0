package marketmaster

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/dataset"
	"github.com/aouyang1/go-marketmaster/source"
	"github.com/aouyang1/go-marketmaster/stats"

	"gonum.org/v1/gonum/stat"
)

const (
	MinWindow = 5
	MaxWindow = 50

	DailyReturnColumn = "Daily_Return"

	// HighVIF is the variance inflation factor above which a feature is reported as collinear
	HighVIF = 10.0
)

// FeatureOptions configures the feature stage. Window sizes the rolling columns added when a close
// column exists, and Standardize rescales every selected feature to zero mean and unit variance.
type FeatureOptions struct {
	Window      int      `json:"window" yaml:"window"`
	Target      string   `json:"target" yaml:"target"`
	Features    []string `json:"features" yaml:"features"`
	Standardize bool     `json:"standardize" yaml:"standardize"`
}

// NewDefaultFeatureOptions uses a 20 row window with standardization
func NewDefaultFeatureOptions() *FeatureOptions {
	return &FeatureOptions{
		Window:      20,
		Standardize: true,
	}
}

// MovingAverageColumn is the name of the rolling mean column for a window
func MovingAverageColumn(window int) string {
	return fmt.Sprintf("MA_%d", window)
}

// VolatilityColumn is the name of the rolling standard deviation column for a window
func VolatilityColumn(window int) string {
	return fmt.Sprintf("Volatility_%d", window)
}

// FeatureReport describes the engineered table
type FeatureReport struct {
	Added       []string           `json:"added"`
	Target      string             `json:"target"`
	Features    []string           `json:"features"`
	Labels      []string           `json:"labels"`
	Correlation [][]float64        `json:"correlation"`
	VIF         map[string]float64 `json:"vif,omitempty"`
}

// closeColumn finds the price column rolling statistics are derived from
func closeColumn(tbl *dataset.Table) (string, bool) {
	if _, err := tbl.Numeric(source.CloseColumn); err == nil {
		return source.CloseColumn, true
	}
	for _, name := range tbl.NumericNames() {
		if strings.Contains(strings.ToLower(name), "close") {
			return name, true
		}
	}
	return "", false
}

// DefaultSelection proposes the close column as target, or the first numeric column, and the
// next two numeric columns as features
func DefaultSelection(tbl *dataset.Table) (string, []string) {
	numeric := tbl.NumericNames()
	if len(numeric) == 0 {
		return "", nil
	}
	target, ok := closeColumn(tbl)
	if !ok {
		target = numeric[0]
	}
	features := make([]string, 0, 2)
	for _, name := range numeric {
		if name == target {
			continue
		}
		features = append(features, name)
		if len(features) == 2 {
			break
		}
	}
	return target, features
}

// addRollingFeatures derives the moving average, volatility and daily return of the close
// column. Leading gaps are backfilled with the raw close, the overall standard deviation and 0.
func addRollingFeatures(tbl *dataset.Table, window int) ([]string, error) {
	name, ok := closeColumn(tbl)
	if !ok {
		return nil, nil
	}
	closes, err := tbl.Numeric(name)
	if err != nil {
		return nil, err
	}

	ma, err := stats.RollingMean(closes, window)
	if err != nil {
		return nil, err
	}
	ma = stats.FillNaN(ma, closes)

	vol, err := stats.RollingStdDev(closes, window)
	if err != nil {
		return nil, err
	}
	vol = stats.FillNaNConst(vol, stat.StdDev(closes, nil))

	ret := stats.FillNaNConst(stats.PctChange(closes), 0)

	added := []string{MovingAverageColumn(window), VolatilityColumn(window), DailyReturnColumn}
	for i, vals := range [][]float64{ma, vol, ret} {
		if err := tbl.SetNumeric(added[i], vals); err != nil {
			return nil, err
		}
	}
	return added, nil
}

func validateSelection(tbl *dataset.Table, target string, features []string) error {
	if target == "" {
		return ErrNoTarget
	}
	if _, err := tbl.Numeric(target); err != nil {
		return fmt.Errorf("target %s, %w, %w", target, err, ErrValidation)
	}
	if len(features) == 0 {
		return ErrNoFeatures
	}
	seen := make(map[string]struct{}, len(features))
	for _, f := range features {
		if f == target {
			return fmt.Errorf("%s, %w", f, ErrTargetIsFeature)
		}
		if _, exists := seen[f]; exists {
			return fmt.Errorf("%s, %w", f, ErrDuplicateFeature)
		}
		seen[f] = struct{}{}
		if _, err := tbl.Numeric(f); err != nil {
			return fmt.Errorf("feature %s, %w, %w", f, err, ErrValidation)
		}
	}
	return nil
}

// EngineerFeatures derives rolling statistics from the close column, validates the target and
// feature selection, and optionally standardizes the feature columns. Selections may name the
// derived columns.
func (p *Pipeline) EngineerFeatures(opt *FeatureOptions) (*FeatureReport, error) {
	if err := p.guard(StageFeatures); err != nil {
		return nil, err
	}
	if opt == nil {
		opt = p.opt.Features
	}
	if opt == nil {
		opt = NewDefaultFeatureOptions()
	}
	if opt.Window < MinWindow || opt.Window > MaxWindow {
		return nil, stageErr(StageFeatures, ErrValidation, fmt.Errorf("%d not in [%d, %d], %w", opt.Window, MinWindow, MaxWindow, ErrWindowSize))
	}

	featured := p.state.Processed.Copy()
	added, err := addRollingFeatures(featured, opt.Window)
	if err != nil {
		return nil, stageErr(StageFeatures, ErrValidation, fmt.Errorf("unable to derive rolling features, %w", err))
	}

	features := slices.Clone(opt.Features)
	if err := validateSelection(featured, opt.Target, features); err != nil {
		p.logger.Warn("invalid feature selection", "target", opt.Target, "features", features, "error", err.Error())
		return nil, stageErr(StageFeatures, ErrValidation, err)
	}

	if opt.Standardize {
		for _, f := range features {
			vals, _ := featured.Numeric(f)
			if err := featured.SetNumeric(f, stats.Standardize(vals)); err != nil {
				return nil, stageErr(StageFeatures, ErrValidation, err)
			}
		}
	}

	report := &FeatureReport{
		Added:    added,
		Target:   opt.Target,
		Features: features,
		Labels:   append(slices.Clone(features), opt.Target),
		VIF:      make(map[string]float64),
	}
	cols := make([][]float64, len(report.Labels))
	for i, name := range report.Labels {
		cols[i], _ = featured.Numeric(name)
	}
	report.Correlation = stats.CorrelationMatrix(cols)
	for _, row := range report.Correlation {
		// constant columns have no defined correlation
		for j, v := range row {
			if math.IsNaN(v) {
				row[j] = 0
			}
		}
	}

	var warnings []string

	if len(features) >= 2 {
		byName := make(map[string][]float64, len(features))
		for i, f := range features {
			byName[f] = cols[i]
		}
		vif, err := stats.VarianceInflationFactor(byName)
		if err != nil {
			p.logger.Warn("unable to compute variance inflation factors", "error", err.Error())
		}
		for name, v := range vif {
			switch {
			case math.IsInf(v, 1) || math.IsNaN(v):
				warnings = append(warnings, fmt.Sprintf("%s: perfectly collinear with the other features", name))
			case v > HighVIF:
				warnings = append(warnings, fmt.Sprintf("%s: high multicollinearity, VIF %.1f", name, v))
				report.VIF[name] = v
			default:
				report.VIF[name] = v
			}
		}
		slices.Sort(warnings)
	}

	st := p.state
	st.Featured = featured
	st.Target = opt.Target
	st.Features = features
	st.FeatureReport = report
	st.Warnings = warnings
	p.markComplete(StageFeatures)

	p.logger.Info("engineered features", "window", opt.Window, "target", opt.Target, "features", features, "added", added)
	p.present(StageFeatures, p.featureCharts(featured, report, opt.Window)...)
	return report, nil
}

func (p *Pipeline) featureCharts(tbl *dataset.Table, report *FeatureReport, window int) []chart.Spec {
	labels := p.labels()
	specs := []chart.Spec{{
		Kind:       chart.KindHeatmap,
		Title:      labels.CorrelationChart,
		Categories: report.Labels,
		Series:     []chart.Series{{Name: "correlation", Values: report.Correlation}},
	}}

	if target, err := tbl.Numeric(report.Target); err == nil {
		for _, f := range report.Features {
			vals, err := tbl.Numeric(f)
			if err != nil {
				continue
			}
			specs = append(specs, chart.Spec{
				Kind:   chart.KindScatter,
				Title:  fmt.Sprintf("%s vs %s", f, report.Target),
				XTitle: f,
				YTitle: report.Target,
				Series: []chart.Series{{Name: f, X: vals, Y: target}},
			})
		}
	}

	name, ok := closeColumn(tbl)
	if !ok {
		return specs
	}
	closes, _ := tbl.Numeric(name)
	ma, err := tbl.Numeric(MovingAverageColumn(window))
	if err != nil {
		return specs
	}
	return append(specs, chart.Spec{
		Kind:       chart.KindLine,
		Title:      labels.PriceChart,
		XTitle:     "Date",
		YTitle:     name,
		Categories: rowLabels(tbl),
		Series: []chart.Series{
			{Name: name, Y: closes},
			{Name: MovingAverageColumn(window), Y: ma},
		},
	})
}
