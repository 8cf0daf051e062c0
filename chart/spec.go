// Package chart describes figures declaratively and renders them to HTML with Apache ECharts.
// Pipeline stages only build Spec values and hand them to a Presenter.
package chart

import (
	"errors"
	"slices"
	"sync"
)

var (
	ErrUnknownKind   = errors.New("unknown chart kind")
	ErrNoSeries      = errors.New("chart has no series")
	ErrSeriesLen     = errors.New("series x and y lengths differ")
	ErrNoCategories  = errors.New("chart kind requires categories")
	ErrMatrixShape   = errors.New("matrix does not match categories")
	ErrHistogramBins = errors.New("histogram needs at least one bin")
)

// Kind is the type of figure to draw
type Kind string

const (
	KindLine        Kind = "line"
	KindScatter     Kind = "scatter"
	KindHistogram   Kind = "histogram"
	KindBar         Kind = "bar"
	KindPie         Kind = "pie"
	KindCandlestick Kind = "candlestick"
	KindHeatmap     Kind = "heatmap"
)

// Series is one named set of values.
//
//   - line: Y against Categories, or against X when there are no categories
//   - scatter: X and Y pairs. A series with Line set is drawn as a line on top.
//   - histogram: the raw values in Y
//   - bar, pie: Y per category
//   - candlestick: Values rows of open, close, low, high per category
//   - heatmap: Values is a square matrix over Categories
type Series struct {
	Name   string      `json:"name"`
	X      []float64   `json:"x,omitempty"`
	Y      []float64   `json:"y,omitempty"`
	Values [][]float64 `json:"values,omitempty"`
	Line   bool        `json:"line,omitempty"`
}

// Spec is a declarative chart description
type Spec struct {
	Kind       Kind     `json:"kind"`
	Title      string   `json:"title"`
	XTitle     string   `json:"x_title,omitempty"`
	YTitle     string   `json:"y_title,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Series     []Series `json:"series"`
	Bins       int      `json:"bins,omitempty"`
}

// Validate checks the spec has the shape its kind needs
func (s Spec) Validate() error {
	if len(s.Series) == 0 {
		return ErrNoSeries
	}
	switch s.Kind {
	case KindLine:
		for _, series := range s.Series {
			if len(s.Categories) == 0 && len(series.X) != len(series.Y) {
				return ErrSeriesLen
			}
		}
	case KindScatter:
		for _, series := range s.Series {
			if len(series.X) != len(series.Y) {
				return ErrSeriesLen
			}
		}
	case KindHistogram:
		if s.Bins < 1 {
			return ErrHistogramBins
		}
	case KindBar, KindPie:
		if len(s.Categories) == 0 {
			return ErrNoCategories
		}
	case KindCandlestick:
		if len(s.Categories) == 0 {
			return ErrNoCategories
		}
		for _, series := range s.Series {
			if len(series.Values) != len(s.Categories) {
				return ErrMatrixShape
			}
		}
	case KindHeatmap:
		if len(s.Categories) == 0 {
			return ErrNoCategories
		}
		for _, series := range s.Series {
			if len(series.Values) != len(s.Categories) {
				return ErrMatrixShape
			}
			for _, row := range series.Values {
				if len(row) != len(s.Categories) {
					return ErrMatrixShape
				}
			}
		}
	default:
		return ErrUnknownKind
	}
	return nil
}

// Presenter accepts chart descriptions for a named group. Presentation is fire and forget.
type Presenter interface {
	Present(group string, specs ...Spec)
}

// Discard drops every chart
var Discard Presenter = discard{}

type discard struct{}

func (discard) Present(string, ...Spec) {}

// Board keeps the latest charts presented for every group. Presenting to a group replaces what
// it held and presenting nothing clears it.
type Board struct {
	mu     sync.RWMutex
	groups map[string][]Spec
}

func NewBoard() *Board {
	return &Board{groups: make(map[string][]Spec)}
}

func (b *Board) Present(group string, specs ...Spec) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(specs) == 0 {
		delete(b.groups, group)
		return
	}
	b.groups[group] = slices.Clone(specs)
}

// Specs returns the charts held for a group
func (b *Board) Specs(group string) []Spec {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.groups[group])
}

// Groups returns the sorted group names holding charts
func (b *Board) Groups() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	groups := make([]string, 0, len(b.groups))
	for g := range b.groups {
		groups = append(groups, g)
	}
	slices.Sort(groups)
	return groups
}

// Clear drops the charts of the given groups, or every group when none are given
func (b *Board) Clear(groups ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(groups) == 0 {
		b.groups = make(map[string][]Spec)
		return
	}
	for _, g := range groups {
		delete(b.groups, g)
	}
}
