// Package source loads raw market tables from uploaded files or a remote quote service.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aouyang1/go-marketmaster/dataset"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrNoHeader        = errors.New("no header row")
	ErrNoDataRows      = errors.New("no data rows")
	ErrNoSheets        = errors.New("workbook has no sheets")
)

const (
	DateColumn  = "Date"
	CloseColumn = "Close"
)

// WarningKind classifies a non fatal issue found while loading a table
type WarningKind string

const (
	WarnCoerced       WarningKind = "coerced"
	WarnNotNumeric    WarningKind = "not_numeric"
	WarnMissingColumn WarningKind = "missing_column"
)

// Warning is reported alongside a loaded table. It never blocks the load.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Column  string      `json:"column"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Column, w.Message)
}

var missingMarkers = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

func isMissing(s string) bool {
	_, exists := missingMarkers[strings.ToLower(strings.TrimSpace(s))]
	return exists
}

var dateLayouts = []string{
	dataset.DateLayout,
	"2006-01-02 15:04:05",
	"01/02/2006",
	time.RFC3339,
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// stripNonNumeric keeps digits, the decimal point and a leading minus sign
func stripNonNumeric(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse dispatches on the file extension of name
func Parse(name string, r io.Reader) (*dataset.Table, []Warning, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return nil, nil, fmt.Errorf("%s, %w", name, ErrUnsupportedFile)
	}
}

// ParseCSV reads a header row followed by data rows
func ParseCSV(r io.Reader) (*dataset.Table, []Warning, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read csv, %w", err)
	}
	return FromRecords(records)
}

// ParseXLSX reads the first sheet of a workbook where the first row is the header
func ParseXLSX(r io.Reader) (*dataset.Table, []Warning, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open workbook, %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrNoSheets
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read sheet %s, %w", sheets[0], err)
	}
	return FromRecords(records)
}

// FromRecords builds a table from a header row and data rows. Short rows are padded as missing.
// Every column is typed as a date, numeric, or text column and the table always keeps every
// column.
func FromRecords(records [][]string) (*dataset.Table, []Warning, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, nil, ErrNoHeader
	}
	header := records[0]
	body := records[1:]
	if len(body) == 0 {
		return nil, nil, ErrNoDataRows
	}

	tbl := dataset.New(len(body))
	var warnings []Warning
	hasDate := false
	for j, rawName := range header {
		name := strings.TrimSpace(rawName)
		if name == "" {
			name = fmt.Sprintf("column_%d", j)
		}
		cells := make([]string, len(body))
		for i, row := range body {
			if j < len(row) {
				cells[i] = strings.TrimSpace(row[j])
			}
		}

		if !hasDate {
			if parsed, ok := asDates(name, cells); ok {
				if strings.EqualFold(name, DateColumn) {
					name = DateColumn
				}
				if err := tbl.AddDate(name, cells, parsed); err != nil {
					return nil, nil, fmt.Errorf("unable to add date column %s, %w", name, err)
				}
				hasDate = true
				continue
			}
		}

		vals, warn := asNumeric(name, cells)
		if warn != nil {
			warnings = append(warnings, *warn)
		}
		var err error
		if vals != nil {
			err = tbl.AddNumeric(name, vals)
		} else {
			err = tbl.AddText(name, cells)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("unable to add column %s, %w", name, err)
		}
	}

	for _, required := range []string{DateColumn, CloseColumn} {
		if !tbl.Has(required) {
			warnings = append(warnings, Warning{
				Kind:    WarnMissingColumn,
				Column:  required,
				Message: "expected column not found",
			})
		}
	}
	return tbl, warnings, nil
}

// asDates parses a column as dates when every non missing cell is a date. An empty column only
// counts when it is named Date.
func asDates(name string, cells []string) ([]time.Time, bool) {
	named := strings.EqualFold(name, DateColumn)
	parsed := make([]time.Time, len(cells))
	var seen int
	for i, c := range cells {
		if isMissing(c) {
			continue
		}
		t, ok := parseDate(c)
		if !ok {
			return nil, false
		}
		parsed[i] = t
		seen++
	}
	return parsed, seen > 0 || named
}

// asNumeric returns nil values when the column must stay text
func asNumeric(name string, cells []string) ([]float64, *Warning) {
	vals := make([]float64, len(cells))
	clean := true
	for i, c := range cells {
		if isMissing(c) {
			vals[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			clean = false
			break
		}
		vals[i] = v
	}
	if clean {
		return vals, nil
	}

	var coerced int
	for i, c := range cells {
		if isMissing(c) {
			vals[i] = math.NaN()
			continue
		}
		stripped := stripNonNumeric(c)
		if stripped == "" {
			vals[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(stripped, 64)
		if err != nil {
			return nil, &Warning{
				Kind:    WarnNotNumeric,
				Column:  name,
				Message: fmt.Sprintf("value %q could not be converted to a number, kept as text", c),
			}
		}
		vals[i] = v
		coerced++
	}
	if coerced == 0 {
		return nil, &Warning{
			Kind:    WarnNotNumeric,
			Column:  name,
			Message: "no numeric values found, kept as text",
		}
	}
	return vals, &Warning{
		Kind:    WarnCoerced,
		Column:  name,
		Message: fmt.Sprintf("stripped non numeric characters from %d values", coerced),
	}
}
