package source

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/aa"
	"github.com/rickar/cal/v2/us"
)

// newYear is not observed on the prior Friday when January 1st is a Saturday
var newYear = us.NewYear.Clone(&cal.Holiday{
	Observed: []cal.AltDay{{Day: time.Sunday, Offset: 1}},
})

// marketHolidays are the full day exchange closures observed in the US
var marketHolidays = []*cal.Holiday{
	newYear,
	us.MlkDay,
	us.PresidentsDay,
	aa.GoodFriday,
	us.MemorialDay,
	us.Juneteenth,
	us.IndependenceDay,
	us.LaborDay,
	us.ThanksgivingDay,
	us.ChristmasDay,
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsHoliday reports whether the exchange is closed for an observed holiday on day
func IsHoliday(day time.Time) bool {
	for _, hol := range marketHolidays {
		// an observed holiday can fall in the prior or next calendar year
		for _, year := range []int{day.Year() - 1, day.Year(), day.Year() + 1} {
			_, observed := hol.Calc(year)
			if !observed.IsZero() && sameDay(observed, day) {
				return true
			}
		}
	}
	return false
}

// IsTradingDay reports whether day is a weekday that is not an observed holiday
func IsTradingDay(day time.Time) bool {
	if cal.IsWeekend(day) {
		return false
	}
	return !IsHoliday(day)
}

// TradingDays counts the trading days in [start, end)
func TradingDays(start, end time.Time) int {
	var n int
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			n++
		}
	}
	return n
}

// HasTradingDay reports whether [start, end) contains at least one trading day
func HasTradingDay(start, end time.Time) bool {
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			return true
		}
	}
	return false
}
