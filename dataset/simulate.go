package dataset

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
)

const DateLayout = "2006-01-02"

// GenerateTradingDays returns n consecutive weekdays starting at start
func GenerateTradingDays(n int, start time.Time) []time.Time {
	t := make([]time.Time, 0, n)
	ct := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for len(t) < n {
		switch ct.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			t = append(t, ct)
		}
		ct = ct.AddDate(0, 0, 1)
	}
	return t
}

type Series []float64

func (s Series) Add(src Series) Series {
	floats.Add(s, src)
	return s
}

func (s Series) Scale(c float64) Series {
	floats.Scale(c, s)
	return s
}

// SetNaN marks the given positions as missing
func (s Series) SetNaN(pos ...int) Series {
	for _, p := range pos {
		s[p] = math.NaN()
	}
	return s
}

// GenerateRandomWalk produces a geometric random walk starting at start with the given per step
// drift and volatility
func GenerateRandomWalk(rng *rand.Rand, n int, start, drift, vol float64) Series {
	y := make([]float64, n)
	price := start
	for i := 0; i < n; i++ {
		y[i] = price
		price *= math.Exp(drift + vol*rng.NormFloat64())
	}
	return Series(y)
}

// SimulatePrices builds a deterministic daily OHLCV table of n trading days
func SimulatePrices(n int, seed uint64) *Table {
	rng := rand.New(rand.NewPCG(seed, seed))
	days := GenerateTradingDays(n, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	closes := GenerateRandomWalk(rng, n, 100.0, 0.0005, 0.02)

	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	volume := make([]float64, n)
	raw := make([]string, n)
	for i := 0; i < n; i++ {
		raw[i] = days[i].Format(DateLayout)
		open[i] = closes[i] * (1 + 0.005*rng.NormFloat64())
		spread := math.Abs(closes[i]-open[i]) + closes[i]*0.01*rng.Float64()
		high[i] = math.Max(open[i], closes[i]) + spread/2
		low[i] = math.Min(open[i], closes[i]) - spread/2
		volume[i] = math.Round(1e6 * (1 + rng.Float64()))
	}

	tbl := New(n)
	// lengths all match n so these cannot fail
	_ = tbl.AddDate("Date", raw, days)
	_ = tbl.AddNumeric("Open", open)
	_ = tbl.AddNumeric("High", high)
	_ = tbl.AddNumeric("Low", low)
	_ = tbl.AddNumeric("Close", closes)
	_ = tbl.AddNumeric("Volume", volume)
	return tbl
}
