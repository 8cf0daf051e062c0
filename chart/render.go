package chart

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

type RenderOptions struct {
	// Theme is an ECharts theme name such as "chalk" or "vintage"
	Theme     string
	PageTitle string
	Width     string
	Height    string
}

func NewDefaultRenderOptions() *RenderOptions {
	return &RenderOptions{
		Theme:     "white",
		PageTitle: "Market Master",
		Width:     "900px",
		Height:    "500px",
	}
}

// Render writes every spec as one HTML page
func Render(w io.Writer, specs []Spec, opt *RenderOptions) error {
	if opt == nil {
		opt = NewDefaultRenderOptions()
	}
	page := components.NewPage()
	page.PageTitle = opt.PageTitle
	for i, s := range specs {
		c, err := Build(s, opt)
		if err != nil {
			return fmt.Errorf("unable to build chart %d %q, %w", i, s.Title, err)
		}
		page.AddCharts(c)
	}
	return page.Render(w)
}

// Build converts a spec into an ECharts chart
func Build(s Spec, opt *RenderOptions) (components.Charter, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if opt == nil {
		opt = NewDefaultRenderOptions()
	}
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: opt.PageTitle,
			Theme:     opt.Theme,
			Width:     opt.Width,
			Height:    opt.Height,
		}),
		charts.WithTitleOpts(opts.Title{Title: s.Title}),
	}

	switch s.Kind {
	case KindLine:
		return buildLine(s, global), nil
	case KindScatter:
		return buildScatter(s, global), nil
	case KindHistogram:
		return buildHistogram(s, global)
	case KindBar:
		return buildBar(s, global), nil
	case KindPie:
		return buildPie(s, global), nil
	case KindCandlestick:
		return buildCandlestick(s, global), nil
	case KindHeatmap:
		return buildHeatmap(s, global), nil
	default:
		return nil, ErrUnknownKind
	}
}

func axes(s Spec, valueX bool) []charts.GlobalOpts {
	x := opts.XAxis{Name: s.XTitle}
	if valueX {
		x.Type = "value"
	}
	return []charts.GlobalOpts{
		charts.WithXAxisOpts(x),
		charts.WithYAxisOpts(opts.YAxis{Name: s.YTitle}),
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(vals []float64) bool {
	for _, v := range vals {
		if !finite(v) {
			return false
		}
	}
	return true
}

func buildLine(s Spec, global []charts.GlobalOpts) *charts.Line {
	line := charts.NewLine()
	valueX := len(s.Categories) == 0
	line.SetGlobalOptions(append(global, axes(s, valueX)...)...)
	if !valueX {
		line.SetXAxis(s.Categories)
	}
	for _, series := range s.Series {
		line.AddSeries(series.Name, lineData(series, valueX))
	}
	return line
}

func lineData(series Series, valueX bool) []opts.LineData {
	data := make([]opts.LineData, 0, len(series.Y))
	for i, y := range series.Y {
		if valueX {
			if !finite(series.X[i]) || !finite(y) {
				continue
			}
			data = append(data, opts.LineData{Value: []float64{series.X[i], y}})
			continue
		}
		// missing points leave a gap
		if !finite(y) {
			data = append(data, opts.LineData{Value: "-"})
			continue
		}
		data = append(data, opts.LineData{Value: y})
	}
	return data
}

func buildScatter(s Spec, global []charts.GlobalOpts) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(append(global, axes(s, true)...)...)
	for _, series := range s.Series {
		if series.Line {
			overlay := charts.NewLine()
			overlay.AddSeries(series.Name, lineData(series, true))
			scatter.Overlap(overlay)
			continue
		}
		data := make([]opts.ScatterData, 0, len(series.X))
		for i, x := range series.X {
			if !finite(x) || !finite(series.Y[i]) {
				continue
			}
			data = append(data, opts.ScatterData{Value: []float64{x, series.Y[i]}})
		}
		scatter.AddSeries(series.Name, data)
	}
	return scatter
}

func buildHistogram(s Spec, global []charts.GlobalOpts) (*charts.Bar, error) {
	bar := charts.NewBar()
	bar.SetGlobalOptions(append(global, axes(s, false)...)...)

	var labels []string
	for i, series := range s.Series {
		centers, counts, err := Histogram(series.Y, s.Bins)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			labels = make([]string, len(centers))
			for j, c := range centers {
				labels[j] = strconv.FormatFloat(c, 'g', 4, 64)
			}
			bar.SetXAxis(labels)
		}
		data := make([]opts.BarData, len(counts))
		for j, c := range counts {
			data[j] = opts.BarData{Value: c}
		}
		bar.AddSeries(series.Name, data)
	}
	return bar, nil
}

func buildBar(s Spec, global []charts.GlobalOpts) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(append(global, axes(s, false)...)...)
	bar.SetXAxis(s.Categories)
	for _, series := range s.Series {
		data := make([]opts.BarData, 0, len(series.Y))
		for _, y := range series.Y {
			if !finite(y) {
				y = 0
			}
			data = append(data, opts.BarData{Value: y})
		}
		bar.AddSeries(series.Name, data)
	}
	return bar
}

func buildPie(s Spec, global []charts.GlobalOpts) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(global...)
	for _, series := range s.Series {
		data := make([]opts.PieData, 0, len(s.Categories))
		for i, name := range s.Categories {
			if i >= len(series.Y) {
				break
			}
			if !finite(series.Y[i]) {
				continue
			}
			data = append(data, opts.PieData{Name: name, Value: series.Y[i]})
		}
		pie.AddSeries(series.Name, data)
	}
	return pie
}

func buildCandlestick(s Spec, global []charts.GlobalOpts) *charts.Kline {
	kline := charts.NewKLine()
	kline.SetGlobalOptions(append(global, axes(s, false)...)...)
	kline.SetXAxis(s.Categories)
	for _, series := range s.Series {
		data := make([]opts.KlineData, 0, len(series.Values))
		for _, row := range series.Values {
			if !allFinite(row) {
				data = append(data, opts.KlineData{Value: "-"})
				continue
			}
			data = append(data, opts.KlineData{Value: row})
		}
		kline.AddSeries(series.Name, data)
	}
	return kline
}

func buildHeatmap(s Spec, global []charts.GlobalOpts) *charts.HeatMap {
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(append(global,
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: s.Categories}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: s.Categories}),
		charts.WithVisualMapOpts(opts.VisualMap{Min: -1, Max: 1}),
	)...)
	hm.SetXAxis(s.Categories)
	for _, series := range s.Series {
		data := make([]opts.HeatMapData, 0, len(s.Categories)*len(s.Categories))
		for i, row := range series.Values {
			for j, v := range row {
				if !finite(v) {
					v = 0
				}
				data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, v}})
			}
		}
		hm.AddSeries(series.Name, data)
	}
	return hm
}
