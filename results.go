package marketmaster

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/dataset"
	"github.com/aouyang1/go-marketmaster/export"
	"github.com/aouyang1/go-marketmaster/models"
)

// Download describes one exportable prediction file
type Download struct {
	Variant  models.Variant `json:"variant"`
	FileName string         `json:"file_name"`
	Scores   models.Scores  `json:"scores"`
}

// ResultsReport is the final summary of a session
type ResultsReport struct {
	Target    string     `json:"target"`
	Features  []string   `json:"features"`
	Downloads []Download `json:"downloads"`
}

// regressionVariants returns the evaluated variants with regression metrics in fit order
func (st *State) regressionVariants() []models.Variant {
	var out []models.Variant
	for _, v := range models.Variants {
		if _, ok := st.Metrics[v]; ok && v.HasRegressionMetrics() {
			out = append(out, v)
		}
	}
	return out
}

// testTimeline orders the test subset by row position in the featured table. It returns the
// positions into the test subset and the featured rows they came from.
func (st *State) testTimeline() ([]int, *dataset.Table, error) {
	pos := make(map[int]int, st.Featured.Len())
	for i, id := range st.Featured.Index {
		pos[id] = i
	}
	order := make([]int, st.Test.Len())
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return cmp.Compare(pos[st.Test.Index[a]], pos[st.Test.Index[b]])
	})
	rows := make([]int, len(order))
	for i, o := range order {
		rows[i] = pos[st.Test.Index[o]]
	}
	tbl, err := st.Featured.Rows(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to select test rows, %w", err)
	}
	return order, tbl, nil
}

func pick(vals []float64, order []int) []float64 {
	out := make([]float64, len(order))
	for i, o := range order {
		out[i] = vals[o]
	}
	return out
}

// Results presents the actual values against every regression style model's predictions and
// lists the available downloads
func (p *Pipeline) Results() (*ResultsReport, error) {
	if err := p.guard(StageResults); err != nil {
		return nil, err
	}
	st := p.state
	labels := p.labels()
	report := &ResultsReport{Target: st.Target, Features: st.Features}

	order, rows, err := st.testTimeline()
	if err != nil {
		return nil, stageErr(StageResults, ErrValidation, err)
	}
	comparison := chart.Spec{
		Kind:       chart.KindLine,
		Title:      labels.ComparisonChart,
		XTitle:     "Test Row",
		YTitle:     st.Target,
		Categories: rowLabels(rows),
	}
	if _, ok := rows.DateColumn(); ok {
		comparison.XTitle = "Date"
	}
	comparison.Series = append(comparison.Series, chart.Series{Name: labels.Actual, Y: pick(st.Test.Y, order)})

	for _, v := range st.regressionVariants() {
		report.Downloads = append(report.Downloads, Download{
			Variant:  v,
			FileName: export.FileName(v),
			Scores:   st.Metrics[v],
		})
		comparison.Series = append(comparison.Series, chart.Series{Name: v.String(), Y: pick(st.Predictions[v], order)})
	}

	var specs []chart.Spec
	if len(report.Downloads) > 0 {
		specs = append(specs, comparison)
	}
	p.present(StageResults, specs...)
	return report, nil
}

// Export writes the actual and predicted test values of a variant as CSV. The header uses the
// labels of the selected theme. Export only reads the state so it does not need to be the current
// stage.
func (p *Pipeline) Export(w io.Writer, v models.Variant) error {
	if err := p.unlocked(StageResults); err != nil {
		return err
	}
	st := p.state
	pred, ok := st.Predictions[v]
	if _, scored := st.Metrics[v]; !ok || !scored || !v.HasRegressionMetrics() {
		return stageErr(StageResults, ErrValidation, fmt.Errorf("%s, %w", v, ErrNotExportable))
	}
	labels := p.labels()
	header := export.Header{Actual: labels.Actual, Predicted: labels.Predicted}
	if err := export.Write(w, header, st.Test.Y, pred); err != nil {
		return stageErr(StageResults, ErrValidation, fmt.Errorf("unable to export %s, %w", v, err))
	}
	return nil
}
