package marketmaster

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/dataset"
	"github.com/aouyang1/go-marketmaster/export"
	"github.com/aouyang1/go-marketmaster/models"
	"github.com/aouyang1/go-marketmaster/source"
	"github.com/aouyang1/go-marketmaster/theme"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

type scenario struct {
	target   string
	features []string
	variants []models.Variant
	seed     int64
}

var linearScenario = scenario{
	target:   "Close",
	features: []string{"Open", "High"},
	variants: []models.Variant{models.LinearRegression},
	seed:     42,
}

func newTestPipeline(board *chart.Board) *Pipeline {
	opt := NewDefaultOptions()
	opt.Logger = slog.New(slog.DiscardHandler)
	if board != nil {
		opt.Presenter = board
	}
	return New(opt)
}

// testPrices returns simulated prices with a 3 valued Signal column and a 0/1 Direction column
func testPrices(t *testing.T, n int) *dataset.Table {
	tbl := dataset.SimulatePrices(n, 7)
	open, err := tbl.Numeric("Open")
	require.Nil(t, err)
	closes, err := tbl.Numeric("Close")
	require.Nil(t, err)

	signal := make([]float64, n)
	direction := make([]float64, n)
	for i := 0; i < n; i++ {
		signal[i] = float64(i % 3)
		if closes[i] > open[i] {
			direction[i] = 1
		}
	}
	require.Nil(t, tbl.AddNumeric("Signal", signal))
	require.Nil(t, tbl.AddNumeric("Direction", direction))
	return tbl
}

// advance moves forward with Next until the current stage is s
func advance(t *testing.T, p *Pipeline, s Stage) {
	for p.State().CurrentStage < s {
		require.Nil(t, p.Next(), "leaving %s", p.State().CurrentStage)
	}
}

// runTo advances stage by stage, running each stage operation up to and including last. Reaching
// the results stage acknowledges the evaluation with Next.
func runTo(t *testing.T, p *Pipeline, tbl *dataset.Table, sc scenario, last Stage) {
	steps := []struct {
		stage Stage
		run   func() error
	}{
		{StageLoad, func() error { _, err := p.LoadTable(tbl); return err }},
		{StagePreprocess, func() error { _, err := p.Preprocess(); return err }},
		{StageFeatures, func() error {
			_, err := p.EngineerFeatures(&FeatureOptions{Window: 20, Target: sc.target, Features: sc.features, Standardize: true})
			return err
		}},
		{StageSplit, func() error { _, err := p.Split(&SplitOptions{TestSize: 0.2, Seed: sc.seed}); return err }},
		{StageTrain, func() error { _, err := p.Train(&TrainOptions{Variants: sc.variants, Clusters: 3}); return err }},
		{StageEvaluate, func() error { _, err := p.Evaluate(); return err }},
		{StageResults, func() error { _, err := p.Results(); return err }},
	}
	for _, step := range steps {
		if step.stage > last {
			return
		}
		advance(t, p, step.stage)
		require.Nil(t, step.run(), "stage %s", step.stage)
	}
}

func TestStageGuards(t *testing.T) {
	tbl := testPrices(t, 100)
	var buf bytes.Buffer

	testData := map[string]struct {
		stage Stage
		run   func(p *Pipeline) error
	}{
		"preprocess": {StagePreprocess, func(p *Pipeline) error { _, err := p.Preprocess(); return err }},
		"features":   {StageFeatures, func(p *Pipeline) error { _, err := p.EngineerFeatures(nil); return err }},
		"split":      {StageSplit, func(p *Pipeline) error { _, err := p.Split(nil); return err }},
		"train":      {StageTrain, func(p *Pipeline) error { _, err := p.Train(nil); return err }},
		"evaluate":   {StageEvaluate, func(p *Pipeline) error { _, err := p.Evaluate(); return err }},
		"results":    {StageResults, func(p *Pipeline) error { _, err := p.Results(); return err }},
		"export":     {StageResults, func(p *Pipeline) error { return p.Export(&buf, models.LinearRegression) }},
		"jump":       {StageTrain, func(p *Pipeline) error { return p.Jump(StageTrain) }},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			// every stage up to the one before the prerequisite is complete
			for upTo := StageWelcome; upTo < td.stage-1; upTo++ {
				p := newTestPipeline(nil)
				runTo(t, p, tbl, linearScenario, upTo)
				before := p.State().Flags

				err := td.run(p)
				require.NotNil(t, err)
				assert.ErrorIs(t, err, ErrStageLocked)
				assert.NotErrorIs(t, err, ErrValidation)

				var se *StageError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, td.stage, se.Stage)
				assert.Equal(t, before, p.State().Flags)
			}
		})
	}
}

func TestInactiveStage(t *testing.T) {
	tbl := testPrices(t, 100)
	p := newTestPipeline(nil)

	_, err := p.LoadTable(tbl)
	assert.ErrorIs(t, err, ErrInactiveStage)
	assert.ErrorIs(t, err, ErrStageLocked)
	assert.False(t, p.State().Flags.DataLoaded)
	assert.Nil(t, p.State().Raw)

	runTo(t, p, tbl, linearScenario, StageSplit)
	processed := p.State().Processed

	_, err = p.Preprocess()
	assert.ErrorIs(t, err, ErrInactiveStage)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StagePreprocess, se.Stage)

	st := p.State()
	assert.Equal(t, StageSplit, st.CurrentStage)
	assert.True(t, st.Flags.DataSplit)
	assert.Same(t, processed, st.Processed)

	_, err = p.Train(nil)
	assert.ErrorIs(t, err, ErrStageLocked)
	assert.False(t, st.Flags.ModelTrained)
}

func TestStateInvariantsRandomSequence(t *testing.T) {
	tbl := testPrices(t, 100)
	rng := rand.New(rand.NewPCG(3, 3))
	p := newTestPipeline(chart.NewBoard())
	var buf bytes.Buffer

	actions := map[string]func() error{
		"next":       p.Next,
		"jump":       func() error { return p.Jump(Stage(rng.IntN(len(Stages)))) },
		"load":       func() error { _, err := p.LoadTable(tbl); return err },
		"preprocess": func() error { _, err := p.Preprocess(); return err },
		"features": func() error {
			_, err := p.EngineerFeatures(&FeatureOptions{Window: 10, Target: "Close", Features: []string{"Open", "High"}, Standardize: true})
			return err
		},
		"split":    func() error { _, err := p.Split(nil); return err },
		"train":    func() error { _, err := p.Train(nil); return err },
		"evaluate": func() error { _, err := p.Evaluate(); return err },
		"results":  func() error { _, err := p.Results(); return err },
		"export":   func() error { buf.Reset(); return p.Export(&buf, models.LinearRegression) },
	}
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	slices.Sort(names)
	names = append(names, "next", "next")

	for i := 0; i < 3000; i++ {
		name := "reset"
		if rng.IntN(60) == 0 {
			p.Reset()
		} else {
			name = names[rng.IntN(len(names))]
			_ = actions[name]()
		}

		st := p.State()
		for j := 1; j < len(Flags); j++ {
			if st.Flags.Get(Flags[j]) {
				require.True(t, st.Flags.Get(Flags[j-1]), "step %d %s: %s set without %s", i, name, Flags[j], Flags[j-1])
			}
		}
		require.True(t, p.IsAvailable(st.CurrentStage), "step %d %s: current %s is locked", i, name, st.CurrentStage)
	}
}

func TestNextJumpReset(t *testing.T) {
	p := newTestPipeline(nil)
	assert.Equal(t, []Stage{StageWelcome, StageLoad}, p.Available())
	assert.Equal(t, 0.0, p.Progress())

	require.Nil(t, p.Next())
	assert.Equal(t, StageLoad, p.State().CurrentStage)

	err := p.Next()
	assert.ErrorIs(t, err, ErrStageLocked)
	assert.Equal(t, StageLoad, p.State().CurrentStage)

	runTo(t, p, testPrices(t, 100), linearScenario, StageLoad)
	require.Nil(t, p.Next())
	assert.Equal(t, StagePreprocess, p.State().CurrentStage)
	assert.Equal(t, []Stage{StageWelcome, StageLoad, StagePreprocess}, p.Available())
	assert.InDelta(t, 1.0/6.0, p.Progress(), 1e-12)

	assert.ErrorIs(t, p.Jump(StageFeatures), ErrStageLocked)
	assert.ErrorIs(t, p.Jump(Stage(12)), ErrValidation)
	require.Nil(t, p.Jump(StageWelcome))
	assert.Equal(t, StageWelcome, p.State().CurrentStage)

	p.SetTheme(theme.TechnoExchange)
	p.Reset()
	assert.Equal(t, StageWelcome, p.State().CurrentStage)
	assert.Equal(t, FlagSet{}, p.State().Flags)
	assert.Nil(t, p.State().Raw)
	assert.Equal(t, theme.None, p.Theme())
}

func TestNextLastStage(t *testing.T) {
	p := newTestPipeline(nil)
	runTo(t, p, testPrices(t, 100), linearScenario, StageResults)
	require.Nil(t, p.Jump(StageResults))
	assert.ErrorIs(t, p.Next(), ErrLastStage)
	assert.Equal(t, 1.0, p.Progress())
}

func TestPreprocessMissingClose(t *testing.T) {
	tbl := dataset.SimulatePrices(100, 3)
	closes, err := tbl.Numeric("Close")
	require.Nil(t, err)
	missing := []int{0, 9, 18, 27, 36, 45, 54, 63, 72, 99}
	require.Nil(t, tbl.SetNumeric("Close", dataset.Series(closes).SetNaN(missing...)))

	p := newTestPipeline(nil)
	runTo(t, p, tbl, linearScenario, StagePreprocess)
	assert.Equal(t, map[string]int{"Close": len(missing)}, p.State().LoadReport.Missing)
	report := p.State().PreprocessReport
	assert.Equal(t, len(missing), report.Imputed["Close"])
	assert.Equal(t, 0, report.Imputed["Open"])
	for name, n := range report.Clipped {
		assert.Len(t, report.Outliers[name], n, name)
	}

	processed := p.State().Processed
	for _, name := range processed.NumericNames() {
		vals, err := processed.Numeric(name)
		require.Nil(t, err)
		b := report.Bounds[name]
		for i, v := range vals {
			assert.False(t, math.IsNaN(v), "%s[%d]", name, i)
			assert.GreaterOrEqual(t, v, b.Lower, "%s[%d]", name, i)
			assert.LessOrEqual(t, v, b.Upper, "%s[%d]", name, i)
		}
	}

	raw, err := p.State().Raw.Numeric("Close")
	require.Nil(t, err)
	assert.True(t, math.IsNaN(raw[0]))
}

func TestPreprocessSingleMissingClose(t *testing.T) {
	tbl := dataset.SimulatePrices(100, 3)
	closes, err := tbl.Numeric("Close")
	require.Nil(t, err)
	want := floats.Sum(closes[1:]) / 99.0
	require.Nil(t, tbl.SetNumeric("Close", dataset.Series(closes).SetNaN(0)))

	p := newTestPipeline(nil)
	runTo(t, p, tbl, linearScenario, StagePreprocess)
	assert.Equal(t, 1, p.State().PreprocessReport.Imputed["Close"])

	processed, err := p.State().Processed.Numeric("Close")
	require.Nil(t, err)
	assert.InDelta(t, want, processed[0], 1e-9)
}

func TestSplitDeterministic(t *testing.T) {
	tbl := testPrices(t, 100)
	var indexes [][]int
	for i := 0; i < 2; i++ {
		p := newTestPipeline(nil)
		runTo(t, p, tbl, linearScenario, StageSplit)
		st := p.State()
		assert.Equal(t, 80, st.Train.Len())
		assert.Equal(t, 20, st.Test.Len())
		assert.Equal(t, 0, st.SplitReport.Dropped)
		indexes = append(indexes, st.Test.Index)
	}
	assert.Equal(t, indexes[0], indexes[1])

	p := newTestPipeline(nil)
	runTo(t, p, tbl, scenario{target: "Close", features: []string{"Open", "High"}, seed: 7}, StageSplit)
	assert.NotEqual(t, indexes[0], p.State().Test.Index)
}

func TestTrainTargetPolicy(t *testing.T) {
	tbl := testPrices(t, 100)

	testData := map[string]struct {
		target   string
		variants []models.Variant
		clusters int
		err      error
	}{
		"linear on 3 distinct values": {"Signal", []models.Variant{models.LinearRegression}, 3, ErrTargetNotContinuous},
		"linear blocks kmeans":        {"Signal", []models.Variant{models.KMeansClustering, models.LinearRegression}, 3, ErrTargetNotContinuous},
		"logistic on prices":          {"Close", []models.Variant{models.LogisticRegression}, 3, ErrTargetNotCategorical},
		"no variants":                 {"Close", nil, 3, ErrNoVariants},
		"too many clusters":           {"Close", []models.Variant{models.KMeansClustering}, 11, ErrClusters},
		"too few clusters":            {"Close", []models.Variant{models.KMeansClustering}, 1, ErrClusters},
		"unknown variant":             {"Close", []models.Variant{models.Variant(9)}, 3, models.ErrUnknownVariant},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			p := newTestPipeline(nil)
			runTo(t, p, tbl, scenario{target: td.target, features: []string{"Open", "High"}, seed: 42}, StageSplit)
			advance(t, p, StageTrain)

			_, err := p.Train(&TrainOptions{Variants: td.variants, Clusters: td.clusters})
			assert.ErrorIs(t, err, td.err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.False(t, p.State().Flags.ModelTrained)
			assert.Empty(t, p.State().Fitted)
		})
	}
}

func TestTrainFailureKeepsPreviousModels(t *testing.T) {
	p := newTestPipeline(nil)
	runTo(t, p, testPrices(t, 100), linearScenario, StageTrain)
	fitted := p.State().Fitted[models.LinearRegression]
	require.NotNil(t, fitted)

	_, err := p.Train(&TrainOptions{Variants: []models.Variant{models.LogisticRegression}})
	require.NotNil(t, err)
	assert.True(t, p.State().Flags.ModelTrained)
	assert.Same(t, fitted, p.State().Fitted[models.LinearRegression])
}

func TestTrainAllVariants(t *testing.T) {
	board := chart.NewBoard()
	p := newTestPipeline(board)
	sc := scenario{
		target:   "Direction",
		features: []string{"Open", "High"},
		variants: []models.Variant{models.LogisticRegression, models.KMeansClustering},
		seed:     42,
	}
	runTo(t, p, testPrices(t, 120), sc, StageEvaluate)

	st := p.State()
	report := st.TrainReport
	require.Len(t, report.Models, 2)
	assert.False(t, report.Continuous)
	assert.Equal(t, models.KMeansClustering, report.Models[0].Variant)
	assert.Len(t, report.Models[0].Centers, 3)
	assert.Equal(t, models.LogisticRegression, report.Models[1].Variant)
	assert.Equal(t, []float64{0, 1}, report.Models[1].Classes)
	assert.Equal(t, "Open", report.Models[1].Coefficients[0].Feature)

	eval := st.EvaluateReport
	require.Len(t, eval.Evaluations, 2)
	assert.Nil(t, eval.Evaluations[0].Scores)
	var total int
	for _, n := range eval.Evaluations[0].ClusterSizes {
		total += n
	}
	assert.Equal(t, st.Test.Len(), total)
	require.NotNil(t, eval.Evaluations[1].Scores)
	assert.Contains(t, st.Metrics, models.LogisticRegression)
	assert.NotContains(t, st.Metrics, models.KMeansClustering)
	assert.Len(t, st.Predictions, 2)

	assert.Len(t, board.Specs(StageTrain.String()), 2)
	assert.NotEmpty(t, board.Specs(StageEvaluate.String()))
}

func TestTrainMulticlassLogistic(t *testing.T) {
	p := newTestPipeline(nil)
	sc := scenario{
		target:   "Signal",
		features: []string{"Open", "High"},
		variants: []models.Variant{models.LogisticRegression},
		seed:     42,
	}
	runTo(t, p, testPrices(t, 120), sc, StageTrain)

	report := p.State().TrainReport
	require.Len(t, report.Models, 1)
	summary := report.Models[0]
	assert.Equal(t, []float64{0, 1, 2}, summary.Classes)
	require.Len(t, summary.OneVsRest, 3)
	for i, m := range summary.OneVsRest {
		assert.Equal(t, summary.Classes[i], m.Class)
		require.Len(t, m.Coefficients, 2)
		assert.Equal(t, "High", m.Coefficients[1].Feature)
	}
	assert.Equal(t, summary.Intercept, summary.OneVsRest[0].Intercept)
	assert.Nil(t, summary.Centers)
}

func TestFeatureCharts(t *testing.T) {
	board := chart.NewBoard()
	p := newTestPipeline(board)
	runTo(t, p, testPrices(t, 100), linearScenario, StageFeatures)

	var scatters []chart.Spec
	for _, spec := range board.Specs(StageFeatures.String()) {
		require.Nil(t, spec.Validate(), spec.Title)
		if spec.Kind == chart.KindScatter {
			scatters = append(scatters, spec)
		}
	}
	require.Len(t, scatters, 2)
	assert.Equal(t, "Open", scatters[0].XTitle)
	assert.Equal(t, "High", scatters[1].XTitle)
	for _, spec := range scatters {
		assert.Equal(t, "Close", spec.YTitle)
		assert.Len(t, spec.Series[0].X, 100)
	}
}

func TestResultsChronological(t *testing.T) {
	board := chart.NewBoard()
	p := newTestPipeline(board)
	runTo(t, p, testPrices(t, 100), linearScenario, StageResults)

	specs := board.Specs(StageResults.String())
	require.Len(t, specs, 1)
	comparison := specs[0]
	st := p.State()
	assert.Equal(t, "Date", comparison.XTitle)
	assert.Len(t, comparison.Categories, st.Test.Len())
	assert.True(t, slices.IsSorted(comparison.Categories))
	require.Len(t, comparison.Series, 2)
	assert.ElementsMatch(t, st.Test.Y, comparison.Series[0].Y)
	assert.ElementsMatch(t, st.Predictions[models.LinearRegression], comparison.Series[1].Y)
}

func TestEvaluateRequiresContinue(t *testing.T) {
	p := newTestPipeline(nil)
	runTo(t, p, testPrices(t, 100), linearScenario, StageEvaluate)

	st := p.State()
	assert.False(t, st.Flags.ModelEvaluated)
	assert.NotEmpty(t, st.Metrics)
	_, err := p.Results()
	assert.ErrorIs(t, err, ErrStageLocked)

	require.Nil(t, p.Jump(StageEvaluate))
	require.Nil(t, p.Next())
	assert.True(t, st.Flags.ModelEvaluated)
	assert.Equal(t, StageResults, st.CurrentStage)

	report, err := p.Results()
	require.Nil(t, err)
	require.Len(t, report.Downloads, 1)
	assert.Equal(t, "linear_regression_results.csv", report.Downloads[0].FileName)

	// evaluating again waits on another continue
	require.Nil(t, p.Jump(StageEvaluate))
	_, err = p.Evaluate()
	require.Nil(t, err)
	assert.False(t, st.Flags.ModelEvaluated)
}

func TestDownstreamInvalidation(t *testing.T) {
	board := chart.NewBoard()
	p := newTestPipeline(board)
	runTo(t, p, testPrices(t, 100), linearScenario, StageResults)
	require.NotEmpty(t, board.Specs(StageResults.String()))

	require.Nil(t, p.Jump(StageSplit))
	_, err := p.Split(&SplitOptions{TestSize: 0.3, Seed: 1})
	require.Nil(t, err)

	st := p.State()
	assert.True(t, st.Flags.DataSplit)
	assert.False(t, st.Flags.ModelTrained)
	assert.False(t, st.Flags.ModelEvaluated)
	assert.Empty(t, st.Fitted)
	assert.Empty(t, st.Predictions)
	assert.Empty(t, st.Metrics)
	assert.Nil(t, st.TrainReport)
	assert.Nil(t, st.EvaluateReport)
	assert.Equal(t, 30, st.Test.Len())
	assert.Equal(t, []string{StageFeatures.String(), StageLoad.String(), StagePreprocess.String(), StageSplit.String()}, board.Groups())

	assert.Equal(t, StageSplit, st.CurrentStage)
	assert.True(t, p.IsAvailable(st.CurrentStage))
	assert.ErrorIs(t, p.Jump(StageEvaluate), ErrStageLocked)
}

func TestExportRoundTrip(t *testing.T) {
	testData := map[string]struct {
		theme  theme.Theme
		header export.Header
	}{
		"default": {theme.None, export.NewDefaultHeader()},
		"themed": {theme.FinancialShinobi, export.Header{
			Actual:    theme.FinancialShinobi.Labels().Actual,
			Predicted: theme.FinancialShinobi.Labels().Predicted,
		}},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			p := newTestPipeline(nil)
			p.SetTheme(td.theme)
			runTo(t, p, testPrices(t, 100), linearScenario, StageResults)

			var buf bytes.Buffer
			require.Nil(t, p.Export(&buf, models.LinearRegression))

			header, pairs, err := export.Read(&buf)
			require.Nil(t, err)
			assert.Equal(t, td.header, header)

			st := p.State()
			pred := st.Predictions[models.LinearRegression]
			require.Len(t, pairs, st.Test.Len())
			for i, pair := range pairs {
				assert.Equal(t, st.Test.Y[i], pair.Actual)
				assert.Equal(t, pred[i], pair.Predicted)
			}
		})
	}
}

func TestExportNotExportable(t *testing.T) {
	p := newTestPipeline(nil)
	runTo(t, p, testPrices(t, 100), linearScenario, StageResults)

	var buf bytes.Buffer
	err := p.Export(&buf, models.KMeansClustering)
	assert.ErrorIs(t, err, ErrNotExportable)
	err = p.Export(&buf, models.LogisticRegression)
	assert.ErrorIs(t, err, ErrNotExportable)
	assert.Zero(t, buf.Len())
}

func TestThemeDoesNotChangeResults(t *testing.T) {
	tbl := testPrices(t, 100)
	var metrics []models.Scores
	for _, th := range theme.All {
		p := newTestPipeline(nil)
		p.SetTheme(th)
		runTo(t, p, tbl, linearScenario, StageResults)
		metrics = append(metrics, p.State().Metrics[models.LinearRegression])
	}
	for _, m := range metrics[1:] {
		assert.Equal(t, metrics[0], m)
	}
}

func TestLoadRemote(t *testing.T) {
	price := 101.5
	quote := &source.Quote{Symbol: "AAPL", LastPrice: &price}
	for i, d := range dataset.GenerateTradingDays(5, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)) {
		v := 100 + float64(i)
		quote.Bars = append(quote.Bars, source.Bar{Date: d, Open: v, High: v + 1, Low: v - 1, Close: v, Volume: 1000})
	}

	testData := map[string]struct {
		req     source.Request
		fetcher source.Fetcher
		err     error
	}{
		"loaded": {
			source.Request{Symbol: "AAPL", Start: "2024-07-01", End: "2024-07-09"},
			source.FetcherFunc(func(ctx context.Context, req source.Request) (*source.Quote, error) { return quote, nil }),
			nil,
		},
		"unknown symbol": {
			source.Request{Symbol: "NOPE", Start: "2024-07-01", End: "2024-07-09"},
			source.FetcherFunc(func(ctx context.Context, req source.Request) (*source.Quote, error) { return nil, source.ErrNoData }),
			ErrExternal,
		},
		"rate limited": {
			source.Request{Symbol: "AAPL", Start: "2024-07-01", End: "2024-07-09"},
			source.FetcherFunc(func(ctx context.Context, req source.Request) (*source.Quote, error) {
				return nil, source.ErrRateLimited
			}),
			ErrExternal,
		},
		"no fetcher": {
			source.Request{Symbol: "AAPL", Start: "2024-07-01", End: "2024-07-09"},
			nil,
			ErrNoFetcher,
		},
		"holiday only": {
			source.Request{Symbol: "AAPL", Start: "2024-07-04", End: "2024-07-05"},
			source.FetcherFunc(func(ctx context.Context, req source.Request) (*source.Quote, error) { return quote, nil }),
			ErrValidation,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			opt := NewDefaultOptions()
			opt.Logger = slog.New(slog.DiscardHandler)
			opt.Fetcher = td.fetcher
			p := New(opt)
			advance(t, p, StageLoad)

			report, err := p.LoadRemote(context.Background(), td.req)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				assert.False(t, p.State().Flags.DataLoaded)
				assert.Nil(t, p.State().Raw)
				return
			}
			require.Nil(t, err)
			assert.True(t, p.State().Flags.DataLoaded)
			assert.Equal(t, 5, report.Rows)
			assert.Equal(t, "AAPL", p.State().LastSymbol)
			require.NotNil(t, p.State().LastPrice)
			assert.Equal(t, price, *p.State().LastPrice)
		})
	}
}

func TestLoadFile(t *testing.T) {
	csv := "Date,Open,Close,Ticker\n2024-01-02,1,2,A\n2024-01-03,2,$3,A\n"

	testData := map[string]struct {
		name     string
		body     string
		warnings int
		err      error
	}{
		"csv":         {"prices.csv", csv, 2, nil},
		"unsupported": {"prices.txt", csv, 0, ErrValidation},
		"header only": {"prices.csv", "Date,Close\n", 0, ErrValidation},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			p := newTestPipeline(nil)
			advance(t, p, StageLoad)
			report, err := p.LoadFile(td.name, bytes.NewBufferString(td.body))
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				assert.False(t, p.State().Flags.DataLoaded)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, 2, report.Rows)
			assert.Len(t, report.Warnings, td.warnings)
			assert.Len(t, p.State().Warnings, td.warnings)
		})
	}
}
