package marketmaster

import (
	"context"
	"fmt"
	"io"

	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/dataset"
	"github.com/aouyang1/go-marketmaster/source"
)

// LoadFile parses an uploaded CSV or XLSX file into the raw table. Missing expected columns and
// columns that stay text are reported as warnings.
func (p *Pipeline) LoadFile(name string, r io.Reader) (*LoadReport, error) {
	if err := p.guard(StageLoad); err != nil {
		return nil, err
	}
	tbl, warnings, err := source.Parse(name, r)
	if err != nil {
		return nil, stageErr(StageLoad, ErrValidation, fmt.Errorf("unable to parse %s, %w", name, err))
	}
	return p.commitLoad(tbl, warnings, "", nil), nil
}

// LoadRemote fetches a daily history. Nothing changes when the request is invalid or the fetch
// fails.
func (p *Pipeline) LoadRemote(ctx context.Context, req source.Request) (*LoadReport, error) {
	if err := p.guard(StageLoad); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, stageErr(StageLoad, ErrValidation, err)
	}
	if p.fetcher == nil {
		return nil, stageErr(StageLoad, ErrExternal, ErrNoFetcher)
	}

	q, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		p.logger.Error("unable to fetch quote", "symbol", req.Symbol, "error", err.Error())
		return nil, stageErr(StageLoad, ErrExternal, fmt.Errorf("unable to fetch %s, %w", req.Symbol, err))
	}
	tbl, err := q.Table()
	if err != nil {
		return nil, stageErr(StageLoad, ErrExternal, fmt.Errorf("unable to convert %s quote, %w", req.Symbol, err))
	}
	return p.commitLoad(tbl, nil, q.Symbol, q.LastPrice), nil
}

// LoadTable installs an already built table, e.g. simulated prices
func (p *Pipeline) LoadTable(tbl *dataset.Table) (*LoadReport, error) {
	if err := p.guard(StageLoad); err != nil {
		return nil, err
	}
	if tbl.Len() == 0 {
		return nil, stageErr(StageLoad, ErrValidation, dataset.ErrNoRows)
	}
	return p.commitLoad(tbl.Copy(), nil, "", nil), nil
}

func (p *Pipeline) commitLoad(tbl *dataset.Table, warnings []source.Warning, symbol string, lastPrice *float64) *LoadReport {
	st := p.state
	st.Raw = tbl
	st.LastSymbol = symbol
	st.LastPrice = lastPrice
	st.Warnings = nil
	for _, w := range warnings {
		st.Warnings = append(st.Warnings, w.String())
	}
	report := &LoadReport{
		Rows:      tbl.Len(),
		Columns:   tbl.Names(),
		Missing:   tbl.MissingCounts(),
		Warnings:  warnings,
		Symbol:    symbol,
		LastPrice: lastPrice,
	}
	st.LoadReport = report
	p.markComplete(StageLoad)

	p.logger.Info("loaded data", "rows", tbl.Len(), "columns", len(report.Columns), "warnings", len(warnings), "symbol", symbol)
	p.present(StageLoad, p.loadCharts(tbl)...)
	return report
}

func (p *Pipeline) loadCharts(tbl *dataset.Table) []chart.Spec {
	labels := p.labels()
	categories := rowLabels(tbl)

	var specs []chart.Spec
	if closes, err := tbl.Numeric(source.CloseColumn); err == nil {
		specs = append(specs, chart.Spec{
			Kind:       chart.KindLine,
			Title:      labels.PriceChart,
			XTitle:     "Date",
			YTitle:     source.CloseColumn,
			Categories: categories,
			Series:     []chart.Series{{Name: source.CloseColumn, Y: closes}},
		})
	}
	if volume, err := tbl.Numeric("Volume"); err == nil {
		specs = append(specs, chart.Spec{
			Kind:       chart.KindBar,
			Title:      labels.VolumeChart,
			XTitle:     "Date",
			YTitle:     "Volume",
			Categories: categories,
			Series:     []chart.Series{{Name: "Volume", Y: volume}},
		})
	}
	if ohlc, ok := candles(tbl); ok {
		specs = append(specs, chart.Spec{
			Kind:       chart.KindCandlestick,
			Title:      labels.PriceChart,
			XTitle:     "Date",
			YTitle:     "Price",
			Categories: categories,
			Series:     []chart.Series{{Name: "OHLC", Values: ohlc}},
		})
	}
	return specs
}

// rowLabels uses the date column text when there is one, otherwise the row identities
func rowLabels(tbl *dataset.Table) []string {
	if c, ok := tbl.DateColumn(); ok {
		return c.Text
	}
	out := make([]string, tbl.Len())
	for i, idx := range tbl.Index {
		out[i] = fmt.Sprintf("%d", idx)
	}
	return out
}

// candles returns rows of open, close, low, high
func candles(tbl *dataset.Table) ([][]float64, bool) {
	cols := make([][]float64, 0, 4)
	for _, name := range []string{"Open", source.CloseColumn, "Low", "High"} {
		vals, err := tbl.Numeric(name)
		if err != nil {
			return nil, false
		}
		cols = append(cols, vals)
	}
	out := make([][]float64, tbl.Len())
	for i := range out {
		out[i] = []float64{cols[0][i], cols[1][i], cols[2][i], cols[3][i]}
	}
	return out, true
}
