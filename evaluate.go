package marketmaster

import (
	"fmt"

	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/models"

	"gonum.org/v1/gonum/floats"
)

// ResidualBins is the number of bins of the residual histogram
const ResidualBins = 30

// VariantEvaluation holds the held out scores of one fitted variant. Clustering variants only
// report their test rows per cluster.
type VariantEvaluation struct {
	Variant      models.Variant `json:"variant"`
	Scores       *models.Scores `json:"scores,omitempty"`
	ClusterSizes []int          `json:"cluster_sizes,omitempty"`
}

// EvaluateReport lists an evaluation per fitted variant in fit order
type EvaluateReport struct {
	TestRows    int                 `json:"test_rows"`
	Evaluations []VariantEvaluation `json:"evaluations"`
}

// fittedOrder returns the fitted variants in fit order
func (st *State) fittedOrder() []models.Variant {
	out := make([]models.Variant, 0, len(st.Fitted))
	for _, v := range models.Variants {
		if _, ok := st.Fitted[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func clusterSizes(assign []float64, k int) []int {
	sizes := make([]int, k)
	for _, c := range assign {
		if i := int(c); i >= 0 && i < k {
			sizes[i]++
		}
	}
	return sizes
}

// Evaluate predicts every fitted variant on the test subset and scores the regression style
// variants with RMSE and R2. The model is only marked evaluated once the caller continues with
// Next.
func (p *Pipeline) Evaluate() (*EvaluateReport, error) {
	if err := p.guard(StageEvaluate); err != nil {
		return nil, err
	}
	st := p.state
	x, _, err := st.Test.Matrix()
	if err != nil {
		return nil, stageErr(StageEvaluate, ErrModel, err)
	}

	predictions := make(map[models.Variant][]float64, len(st.Fitted))
	metrics := make(map[models.Variant]models.Scores, len(st.Fitted))
	report := &EvaluateReport{TestRows: st.Test.Len()}
	for _, v := range st.fittedOrder() {
		pred, err := st.Fitted[v].Predict(x)
		if err != nil {
			p.logger.Error("unable to predict", "variant", v.String(), "error", err.Error())
			return nil, stageErr(StageEvaluate, ErrModel, fmt.Errorf("unable to predict %s, %w", v, err))
		}
		predictions[v] = pred

		eval := VariantEvaluation{Variant: v}
		if v.HasRegressionMetrics() {
			scores, err := models.NewScores(pred, st.Test.Y)
			if err != nil {
				return nil, stageErr(StageEvaluate, ErrModel, fmt.Errorf("unable to score %s, %w", v, err))
			}
			metrics[v] = *scores
			eval.Scores = scores
		} else if km, ok := st.Fitted[v].(*models.KMeans); ok {
			eval.ClusterSizes = clusterSizes(pred, len(km.Centers()))
		}
		report.Evaluations = append(report.Evaluations, eval)
	}

	st.clearAfter(StageEvaluate)
	st.Predictions = predictions
	st.Metrics = metrics
	st.EvaluateReport = report
	st.Flags.ModelEvaluated = false
	st.evaluated = true
	st.Warnings = nil
	p.present(StageResults)

	specs, err := p.evaluateCharts()
	if err != nil {
		p.logger.Warn("unable to build evaluation charts", "error", err.Error())
	}
	p.logger.Info("evaluated models", "variants", len(predictions), "rows", report.TestRows)
	p.present(StageEvaluate, specs...)
	return report, nil
}

func (p *Pipeline) evaluateCharts() ([]chart.Spec, error) {
	st := p.state
	labels := p.labels()
	actual := st.Test.Y

	var regression []models.Variant
	for _, v := range st.fittedOrder() {
		if v.HasRegressionMetrics() {
			regression = append(regression, v)
		}
	}
	if len(regression) == 0 {
		return nil, nil
	}

	scatter := chart.Spec{
		Kind:   chart.KindScatter,
		Title:  labels.ScatterChart,
		XTitle: labels.Actual,
		YTitle: labels.Predicted,
	}
	specs := make([]chart.Spec, 0, 1+2*len(regression))
	for _, v := range regression {
		pred := st.Predictions[v]
		scatter.Series = append(scatter.Series, chart.Series{Name: v.String(), X: actual, Y: pred})

		res, err := models.Residuals(pred, actual)
		if err != nil {
			return nil, fmt.Errorf("unable to compute %s residuals, %w", v, err)
		}
		specs = append(specs,
			chart.Spec{
				Kind:   chart.KindScatter,
				Title:  fmt.Sprintf("%s: %s", labels.ResidualChart, v),
				XTitle: labels.Predicted,
				YTitle: "Residual",
				Series: []chart.Series{{Name: v.String(), X: pred, Y: res}},
			},
			chart.Spec{
				Kind:   chart.KindHistogram,
				Title:  fmt.Sprintf("%s: %s", labels.HistogramChart, v),
				XTitle: "Residual",
				YTitle: "Count",
				Bins:   ResidualBins,
				Series: []chart.Series{{Name: v.String(), Y: res}},
			},
		)
	}
	if len(actual) > 0 {
		lo, hi := floats.Min(actual), floats.Max(actual)
		scatter.Series = append(scatter.Series, chart.Series{
			Name: labels.PerfectLine,
			X:    []float64{lo, hi},
			Y:    []float64{lo, hi},
			Line: true,
		})
	}
	return append([]chart.Spec{scatter}, specs...), nil
}
