package marketmaster

import (
	"fmt"

	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/split"
)

// SplitOptions sets the test fraction and seed of the train/test split
type SplitOptions = split.Options

func NewDefaultSplitOptions() *SplitOptions {
	return split.NewDefaultOptions()
}

// SplitReport summarizes the partition
type SplitReport struct {
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
	Dropped   int     `json:"dropped"`
	TestSize  float64 `json:"test_size"`
	Seed      int64   `json:"seed"`
}

// Split partitions the featured table into train and test subsets. The same table, fraction and
// seed always yield the same partition.
func (p *Pipeline) Split(opt *SplitOptions) (*SplitReport, error) {
	if err := p.guard(StageSplit); err != nil {
		return nil, err
	}
	if opt == nil {
		opt = p.opt.Split
	}
	opt, err := opt.Validate()
	if err != nil {
		return nil, stageErr(StageSplit, ErrValidation, err)
	}

	st := p.state
	res, err := split.Split(st.Featured, st.Target, st.Features, opt)
	if err != nil {
		return nil, stageErr(StageSplit, ErrValidation, fmt.Errorf("unable to split %d rows, %w", st.Featured.Len(), err))
	}

	report := &SplitReport{
		TrainRows: res.Train.Len(),
		TestRows:  res.Test.Len(),
		Dropped:   res.Dropped,
		TestSize:  opt.TestSize,
		Seed:      opt.Seed,
	}
	st.Train = res.Train
	st.Test = res.Test
	st.SplitReport = report
	st.Warnings = nil
	if res.Dropped > 0 {
		st.Warnings = append(st.Warnings, fmt.Sprintf("dropped %d rows with missing values", res.Dropped))
	}
	p.markComplete(StageSplit)

	p.logger.Info("split data", "train", report.TrainRows, "test", report.TestRows, "dropped", report.Dropped, "seed", opt.Seed)
	p.present(StageSplit, chart.Spec{
		Kind:       chart.KindPie,
		Title:      "Train/Test Split",
		Categories: []string{"Train", "Test"},
		Series: []chart.Series{{
			Name: "Rows",
			Y:    []float64{float64(report.TrainRows), float64(report.TestRows)},
		}},
	})
	return report, nil
}
