// Package export writes model predictions as delimited text and reads them back.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aouyang1/go-marketmaster/models"
)

var (
	ErrLenMismatch = errors.New("actual and predicted lengths differ")
	ErrNoHeader    = errors.New("no header row")
	ErrColumnCount = errors.New("expected two columns")
)

const (
	DefaultActualLabel    = "Actual"
	DefaultPredictedLabel = "Predicted"
)

// Header names the two exported columns
type Header struct {
	Actual    string
	Predicted string
}

func NewDefaultHeader() Header {
	return Header{Actual: DefaultActualLabel, Predicted: DefaultPredictedLabel}
}

// Pair is one exported row
type Pair struct {
	Actual    float64
	Predicted float64
}

// FileName is the download name for a variant, e.g. linear_regression_results.csv
func FileName(v models.Variant) string {
	return v.Slug() + "_results.csv"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Write emits a header row followed by one row per pair. Values use the shortest representation
// that parses back to the same float.
func Write(w io.Writer, h Header, actual, predicted []float64) error {
	if len(actual) != len(predicted) {
		return fmt.Errorf("%d actual and %d predicted, %w", len(actual), len(predicted), ErrLenMismatch)
	}
	if h.Actual == "" {
		h.Actual = DefaultActualLabel
	}
	if h.Predicted == "" {
		h.Predicted = DefaultPredictedLabel
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{h.Actual, h.Predicted}); err != nil {
		return fmt.Errorf("unable to write header, %w", err)
	}
	for i := range actual {
		if err := writer.Write([]string{formatFloat(actual[i]), formatFloat(predicted[i])}); err != nil {
			return fmt.Errorf("unable to write row %d, %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Read parses text produced by Write
func Read(r io.Reader) (Header, []Pair, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	records, err := reader.ReadAll()
	if err != nil {
		return Header{}, nil, fmt.Errorf("unable to read csv, %w", err)
	}
	if len(records) == 0 {
		return Header{}, nil, ErrNoHeader
	}
	h := Header{Actual: records[0][0], Predicted: records[0][1]}

	pairs := make([]Pair, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != 2 {
			return Header{}, nil, fmt.Errorf("row %d, %w", i+1, ErrColumnCount)
		}
		a, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return Header{}, nil, fmt.Errorf("unable to parse actual on row %d, %w", i+1, err)
		}
		p, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return Header{}, nil, fmt.Errorf("unable to parse predicted on row %d, %w", i+1, err)
		}
		pairs = append(pairs, Pair{Actual: a, Predicted: p})
	}
	return h, pairs, nil
}
