package marketmaster

import (
	"fmt"
	"slices"

	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/models"
	"github.com/aouyang1/go-marketmaster/stats"

	"gonum.org/v1/gonum/mat"
)

// Cluster count bounds for k-means
const (
	MinClusters = 2
	MaxClusters = 10
)

// TrainOptions selects the variants to fit. Clusters is only checked when k-means is selected.
type TrainOptions struct {
	Variants []models.Variant `json:"variants" yaml:"variants"`
	Clusters int              `json:"clusters" yaml:"clusters"`
}

// NewDefaultTrainOptions fits linear regression with 3 clusters for k-means
func NewDefaultTrainOptions() *TrainOptions {
	return &TrainOptions{
		Variants: []models.Variant{models.LinearRegression},
		Clusters: 3,
	}
}

// Coefficient is one named model weight
type Coefficient struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// ClassModel is the one-vs-rest model of a single class
type ClassModel struct {
	Class        float64       `json:"class"`
	Intercept    float64       `json:"intercept"`
	Coefficients []Coefficient `json:"coefficients"`
}

// ModelSummary describes one fitted variant. Intercept and Coefficients belong to the first
// one-vs-rest model for a multiclass logistic fit.
type ModelSummary struct {
	Variant      models.Variant `json:"variant"`
	Intercept    float64        `json:"intercept"`
	Coefficients []Coefficient  `json:"coefficients,omitempty"`
	Classes      []float64      `json:"classes,omitempty"`
	OneVsRest    []ClassModel   `json:"one_vs_rest,omitempty"`
	Centers      [][]float64    `json:"centers,omitempty"`
	Inertia      float64        `json:"inertia,omitempty"`
}

// TrainReport lists a summary per fitted variant in fit order
type TrainReport struct {
	Continuous bool           `json:"continuous_target"`
	Models     []ModelSummary `json:"models"`
}

// selected returns the requested variants deduplicated in fit order
func selected(variants []models.Variant) ([]models.Variant, error) {
	for _, v := range variants {
		if !slices.Contains(models.Variants, v) {
			return nil, fmt.Errorf("%d, %w, %w", int(v), models.ErrUnknownVariant, ErrValidation)
		}
	}
	out := make([]models.Variant, 0, len(models.Variants))
	for _, v := range models.Variants {
		if slices.Contains(variants, v) {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoVariants
	}
	return out, nil
}

// checkTarget applies the target policy of every variant before anything is fit
func checkTarget(variants []models.Variant, continuous bool) error {
	for _, v := range variants {
		switch v {
		case models.LinearRegression:
			if !continuous {
				return ErrTargetNotContinuous
			}
		case models.LogisticRegression:
			if continuous {
				return ErrTargetNotCategorical
			}
		case models.KMeansClustering:
		}
	}
	return nil
}

func newModel(v models.Variant, clusters int) (models.Fitted, error) {
	switch v {
	case models.LinearRegression:
		return models.NewOLSRegression(nil)
	case models.LogisticRegression:
		return models.NewLogisticRegressor(nil)
	case models.KMeansClustering:
		opt := models.NewDefaultKMeansOptions()
		opt.K = clusters
		return models.NewKMeans(opt)
	default:
		return nil, models.ErrUnknownVariant
	}
}

func (p *Pipeline) coefficients(c []float64) []Coefficient {
	out := make([]Coefficient, len(c))
	for i, val := range c {
		out[i] = Coefficient{Feature: p.state.Features[i], Value: val}
	}
	return out
}

// fit trains one variant. Supervised variants see the target, clusterers only the features.
func (p *Pipeline) fit(v models.Variant, x, y mat.Matrix, clusters int) (models.Fitted, ModelSummary, error) {
	summary := ModelSummary{Variant: v}
	m, err := newModel(v, clusters)
	if err != nil {
		return nil, summary, err
	}

	if v.Supervised() {
		sm, ok := m.(models.Model)
		if !ok {
			return nil, summary, fmt.Errorf("%s is not a supervised model, %w", v, models.ErrUnknownVariant)
		}
		if err := sm.Fit(x, y); err != nil {
			return nil, summary, err
		}
		summary.Intercept = sm.Intercept()
		summary.Coefficients = p.coefficients(sm.Coef())
	} else {
		cm, ok := m.(models.Clusterer)
		if !ok {
			return nil, summary, fmt.Errorf("%s is not a clusterer, %w", v, models.ErrUnknownVariant)
		}
		if err := cm.Fit(x); err != nil {
			return nil, summary, err
		}
		summary.Centers = cm.Centers()
		summary.Inertia = cm.Inertia()
	}

	if l, ok := m.(*models.LogisticRegressor); ok {
		summary.Classes = l.Classes()
		intercepts, coefs := l.Models()
		// a binary target has a single model so only multiclass fits list every class
		if len(intercepts) > 1 {
			for i, b := range intercepts {
				summary.OneVsRest = append(summary.OneVsRest, ClassModel{
					Class:        summary.Classes[i],
					Intercept:    b,
					Coefficients: p.coefficients(coefs[i]),
				})
			}
		}
	}
	return m, summary, nil
}

// Train fits every selected variant on the training subset. Linear regression needs a
// continuous target and logistic regression a categorical one, k-means ignores the target. A
// policy violation or any fit failure leaves the previously fitted models in place.
func (p *Pipeline) Train(opt *TrainOptions) (*TrainReport, error) {
	if err := p.guard(StageTrain); err != nil {
		return nil, err
	}
	if opt == nil {
		opt = p.opt.Train
	}
	if opt == nil {
		opt = NewDefaultTrainOptions()
	}
	variants, err := selected(opt.Variants)
	if err != nil {
		return nil, stageErr(StageTrain, ErrValidation, err)
	}
	if slices.Contains(variants, models.KMeansClustering) && (opt.Clusters < MinClusters || opt.Clusters > MaxClusters) {
		return nil, stageErr(StageTrain, ErrValidation, fmt.Errorf("%d not in [%d, %d], %w", opt.Clusters, MinClusters, MaxClusters, ErrClusters))
	}

	st := p.state
	continuous := stats.IsContinuous(st.Train.Y)
	if err := checkTarget(variants, continuous); err != nil {
		p.logger.Warn("target does not fit model variant", "target", st.Target, "distinct", stats.DistinctCount(st.Train.Y), "error", err.Error())
		return nil, stageErr(StageTrain, ErrValidation, fmt.Errorf("target %s, %w", st.Target, err))
	}

	x, y, err := st.Train.Matrix()
	if err != nil {
		return nil, stageErr(StageTrain, ErrModel, err)
	}

	fitted := make(map[models.Variant]models.Fitted, len(variants))
	report := &TrainReport{Continuous: continuous}
	for _, v := range variants {
		m, summary, err := p.fit(v, x, y, opt.Clusters)
		if err != nil {
			p.logger.Error("unable to fit model", "variant", v.String(), "error", err.Error())
			return nil, stageErr(StageTrain, ErrModel, fmt.Errorf("unable to fit %s, %w", v, err))
		}
		fitted[v] = m
		report.Models = append(report.Models, summary)
	}

	st.Fitted = fitted
	st.TrainReport = report
	st.Warnings = nil
	p.markComplete(StageTrain)

	p.logger.Info("trained models", "variants", len(variants), "rows", st.Train.Len())
	p.present(StageTrain, p.trainCharts(report)...)
	return report, nil
}

func (p *Pipeline) trainCharts(report *TrainReport) []chart.Spec {
	var specs []chart.Spec
	for _, m := range report.Models {
		switch m.Variant {
		case models.LinearRegression, models.LogisticRegression:
			if len(m.Coefficients) == 0 {
				continue
			}
			names := make([]string, len(m.Coefficients))
			vals := make([]float64, len(m.Coefficients))
			for i, c := range m.Coefficients {
				names[i] = c.Feature
				vals[i] = c.Value
			}
			specs = append(specs, chart.Spec{
				Kind:       chart.KindBar,
				Title:      fmt.Sprintf("%s Coefficients", m.Variant),
				XTitle:     "Feature",
				YTitle:     "Coefficient",
				Categories: names,
				Series:     []chart.Series{{Name: m.Variant.String(), Y: vals}},
			})
		case models.KMeansClustering:
			specs = append(specs, p.clusterChart(m))
		}
	}
	return specs
}

// clusterChart plots the training rows and centers on the first two features
func (p *Pipeline) clusterChart(m ModelSummary) chart.Spec {
	features := p.state.Features
	xi, yi := 0, 0
	if len(features) > 1 {
		yi = 1
	}
	spec := chart.Spec{
		Kind:   chart.KindScatter,
		Title:  "K-Means Cluster Centers",
		XTitle: features[xi],
		YTitle: features[yi],
	}

	rows := p.state.Train.X
	xs := make([]float64, len(rows))
	ys := make([]float64, len(rows))
	for i, r := range rows {
		xs[i], ys[i] = r[xi], r[yi]
	}
	spec.Series = append(spec.Series, chart.Series{Name: "Training Rows", X: xs, Y: ys})

	cx := make([]float64, len(m.Centers))
	cy := make([]float64, len(m.Centers))
	for i, c := range m.Centers {
		cx[i], cy[i] = c[xi], c[yi]
	}
	spec.Series = append(spec.Series, chart.Series{Name: "Centers", X: cx, Y: cy})
	return spec
}
