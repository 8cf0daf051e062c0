// Package dataset holds the column oriented table passed between pipeline stages. Every column
// has the same number of rows and each row carries a stable identity so subsets can be traced
// back to the table they came from.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

var (
	ErrNoRows             = errors.New("no rows in table")
	ErrColumnLenMismatch  = errors.New("column has a different length than table")
	ErrColumnExists       = errors.New("column already exists in table")
	ErrUnknownColumn      = errors.New("unknown column")
	ErrNotNumeric         = errors.New("column is not numeric")
	ErrRowOutOfBounds     = errors.New("row is out of bounds")
	ErrUninitializedTable = errors.New("uninitialized table")
)

// Kind describes how the values of a column are stored
type Kind int

const (
	KindNumeric Kind = iota
	KindText
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Column is a single named column. Numeric columns use NaN for missing values. Date columns
// keep their raw text alongside the parsed time.
type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Text []string
	Time []time.Time
}

func (c *Column) copy() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Num != nil {
		out.Num = slices.Clone(c.Num)
	}
	if c.Text != nil {
		out.Text = slices.Clone(c.Text)
	}
	if c.Time != nil {
		out.Time = slices.Clone(c.Time)
	}
	return out
}

func (c *Column) len() int {
	switch c.Kind {
	case KindNumeric:
		return len(c.Num)
	default:
		return len(c.Text)
	}
}

// Table is an ordered set of equal length columns.
type Table struct {
	// Index holds the row identities, by default 0..n-1 at load time
	Index []int

	cols   []*Column
	byName map[string]int
}

// New creates an empty table with n rows identified as 0..n-1
func New(n int) *Table {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return NewWithIndex(idx)
}

// NewWithIndex creates an empty table using the provided row identities
func NewWithIndex(index []int) *Table {
	return &Table{
		Index:  slices.Clone(index),
		byName: make(map[string]int),
	}
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Index)
}

// Names returns the column names in insertion order
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.cols))
	for _, c := range t.cols {
		names = append(names, c.Name)
	}
	return names
}

// NumericNames returns the names of all numeric columns in insertion order
func (t *Table) NumericNames() []string {
	var names []string
	for _, c := range t.cols {
		if c.Kind == KindNumeric {
			names = append(names, c.Name)
		}
	}
	return names
}

// Has reports whether a column exists
func (t *Table) Has(name string) bool {
	_, exists := t.byName[name]
	return exists
}

// Column returns the named column. The returned column is owned by the table.
func (t *Table) Column(name string) (*Column, error) {
	if t == nil {
		return nil, ErrUninitializedTable
	}
	i, exists := t.byName[name]
	if !exists {
		return nil, fmt.Errorf("%s, %w", name, ErrUnknownColumn)
	}
	return t.cols[i], nil
}

// Numeric returns the values of a numeric column. The slice is owned by the table.
func (t *Table) Numeric(name string) ([]float64, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindNumeric {
		return nil, fmt.Errorf("%s is %s, %w", name, c.Kind, ErrNotNumeric)
	}
	return c.Num, nil
}

// DateColumn returns the first date column if one exists
func (t *Table) DateColumn() (*Column, bool) {
	for _, c := range t.cols {
		if c.Kind == KindDate {
			return c, true
		}
	}
	return nil, false
}

func (t *Table) add(c *Column) error {
	if t == nil {
		return ErrUninitializedTable
	}
	if _, exists := t.byName[c.Name]; exists {
		return fmt.Errorf("%s, %w", c.Name, ErrColumnExists)
	}
	if c.len() != t.Len() {
		return fmt.Errorf(
			"column %s has length of %d, but table has %d rows, %w",
			c.Name, c.len(), t.Len(), ErrColumnLenMismatch,
		)
	}
	t.byName[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// AddNumeric appends a numeric column, copying the values
func (t *Table) AddNumeric(name string, vals []float64) error {
	return t.add(&Column{Name: name, Kind: KindNumeric, Num: slices.Clone(vals)})
}

// AddText appends a text column, copying the values
func (t *Table) AddText(name string, vals []string) error {
	return t.add(&Column{Name: name, Kind: KindText, Text: slices.Clone(vals)})
}

// AddDate appends a date column with both the raw text and parsed times
func (t *Table) AddDate(name string, raw []string, parsed []time.Time) error {
	if len(raw) != len(parsed) {
		return fmt.Errorf("date column %s raw and parsed differ, %w", name, ErrColumnLenMismatch)
	}
	return t.add(&Column{Name: name, Kind: KindDate, Text: slices.Clone(raw), Time: slices.Clone(parsed)})
}

// SetNumeric replaces the values of an existing column, or appends a new numeric column.
// Replacing a text column turns it numeric.
func (t *Table) SetNumeric(name string, vals []float64) error {
	i, exists := t.byName[name]
	if !exists {
		return t.AddNumeric(name, vals)
	}
	if len(vals) != t.Len() {
		return fmt.Errorf(
			"column %s has length of %d, but table has %d rows, %w",
			name, len(vals), t.Len(), ErrColumnLenMismatch,
		)
	}
	t.cols[i] = &Column{Name: name, Kind: KindNumeric, Num: slices.Clone(vals)}
	return nil
}

// Copy returns a deep copy so later stages never mutate an earlier snapshot
func (t *Table) Copy() *Table {
	if t == nil {
		return nil
	}
	out := NewWithIndex(t.Index)
	for _, c := range t.cols {
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.copy())
	}
	return out
}

// Rows returns a new table holding the given row positions in order. Row identities follow the
// selected rows.
func (t *Table) Rows(pos []int) (*Table, error) {
	if t == nil {
		return nil, ErrUninitializedTable
	}
	n := t.Len()
	index := make([]int, len(pos))
	for i, p := range pos {
		if p < 0 || p >= n {
			return nil, fmt.Errorf("row %d of %d, %w", p, n, ErrRowOutOfBounds)
		}
		index[i] = t.Index[p]
	}
	out := NewWithIndex(index)
	for _, c := range t.cols {
		nc := &Column{Name: c.Name, Kind: c.Kind}
		switch c.Kind {
		case KindNumeric:
			nc.Num = make([]float64, len(pos))
			for i, p := range pos {
				nc.Num[i] = c.Num[p]
			}
		case KindDate:
			nc.Time = make([]time.Time, len(pos))
			for i, p := range pos {
				nc.Time[i] = c.Time[p]
			}
			fallthrough
		case KindText:
			nc.Text = make([]string, len(pos))
			for i, p := range pos {
				nc.Text[i] = c.Text[p]
			}
		}
		out.byName[nc.Name] = len(out.cols)
		out.cols = append(out.cols, nc)
	}
	return out, nil
}

// MissingCounts returns the number of NaN values per numeric column, omitting columns with none
func (t *Table) MissingCounts() map[string]int {
	counts := make(map[string]int)
	for _, c := range t.cols {
		if c.Kind != KindNumeric {
			continue
		}
		var cnt int
		for _, v := range c.Num {
			if math.IsNaN(v) {
				cnt++
			}
		}
		if cnt > 0 {
			counts[c.Name] = cnt
		}
	}
	return counts
}
