package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aouyang1/go-marketmaster/dataset"
)

var (
	ErrNoSymbol    = errors.New("no symbol")
	ErrInvalidDate = errors.New("invalid date")
	ErrStartAfter  = errors.New("start date must be before end date")
	ErrNoTradeDays = errors.New("no trading days in date range")
	ErrRateLimited = errors.New("too many requests")
	ErrNoData      = errors.New("no data returned for symbol")
)

// Request identifies a remote daily history. Start and End are ISO dates and End is exclusive.
type Request struct {
	Symbol string `json:"symbol" yaml:"symbol" validate:"required,max=16"`
	Start  string `json:"start" yaml:"start" validate:"required"`
	End    string `json:"end" yaml:"end" validate:"required"`
}

// Key identifies the request in a cache
func (r Request) Key() string {
	return strings.Join([]string{strings.ToUpper(r.Symbol), r.Start, r.End}, "|")
}

// Range parses the start and end dates
func (r Request) Range() (time.Time, time.Time, error) {
	start, err := time.Parse(dataset.DateLayout, r.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start %q, %w", r.Start, ErrInvalidDate)
	}
	end, err := time.Parse(dataset.DateLayout, r.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end %q, %w", r.End, ErrInvalidDate)
	}
	return start, end, nil
}

// Validate checks the symbol and that the range holds at least one trading day
func (r Request) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return ErrNoSymbol
	}
	start, end, err := r.Range()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("%s to %s, %w", r.Start, r.End, ErrStartAfter)
	}
	if !HasTradingDay(start, end) {
		return fmt.Errorf("%s to %s, %w", r.Start, r.End, ErrNoTradeDays)
	}
	return nil
}

// Bar is one daily OHLCV observation
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Quote is the result of a remote fetch
type Quote struct {
	Symbol    string   `json:"symbol"`
	Bars      []Bar    `json:"bars"`
	LastPrice *float64 `json:"last_price,omitempty"`
}

// Table converts the bars into a table with Date, Open, High, Low, Close and Volume columns
func (q *Quote) Table() (*dataset.Table, error) {
	if q == nil || len(q.Bars) == 0 {
		return nil, ErrNoData
	}
	n := len(q.Bars)
	raw := make([]string, n)
	dates := make([]time.Time, n)
	cols := map[string][]float64{
		"Open":      make([]float64, n),
		"High":      make([]float64, n),
		"Low":       make([]float64, n),
		CloseColumn: make([]float64, n),
		"Volume":    make([]float64, n),
	}
	for i, b := range q.Bars {
		raw[i] = b.Date.Format(dataset.DateLayout)
		dates[i] = b.Date
		cols["Open"][i] = b.Open
		cols["High"][i] = b.High
		cols["Low"][i] = b.Low
		cols[CloseColumn][i] = b.Close
		cols["Volume"][i] = b.Volume
	}

	tbl := dataset.New(n)
	if err := tbl.AddDate(DateColumn, raw, dates); err != nil {
		return nil, err
	}
	for _, name := range []string{"Open", "High", "Low", CloseColumn, "Volume"} {
		if err := tbl.AddNumeric(name, cols[name]); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// Fetcher retrieves a daily history for a validated request
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Quote, error)
}

// FetcherFunc adapts a function to a Fetcher
type FetcherFunc func(ctx context.Context, req Request) (*Quote, error)

func (f FetcherFunc) Fetch(ctx context.Context, req Request) (*Quote, error) {
	return f(ctx, req)
}
