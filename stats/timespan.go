// stats/timespan.go
package stats

import (
	"errors"
	"time"
)

// ErrNotEnoughDays is returned when a window falls entirely outside the
// reported days.
var ErrNotEnoughDays = errors.New("not enough reported days for the window")

// monthsPerYear reporting days make up one annual window; the simulation
// reports monthly.
const monthsPerYear = 12

// TimeSpans splits the reported days into count consecutive 12-report
// windows counted back from the last day, returned oldest first, together
// with the last day of each window. Early windows shrink or vanish when
// fewer days are available; vanished windows are dropped.
func TimeSpans(days []int64, count int) ([]DayRange, []int64) {
	var spans []DayRange
	var points []int64
	for n := count; n >= 1; n-- {
		window := slice(days, -monthsPerYear*n, -monthsPerYear*(n-1), n == 1)
		if len(window) == 0 {
			continue
		}
		spans = append(spans, DayRange{First: window[0], Last: window[len(window)-1]})
		points = append(points, window[len(window)-1])
	}
	return spans, points
}

// Endpoint is a window of reported days measured back from the end of the
// simulation.
type Endpoint struct {
	Name  string
	Years int
	// From and To are report offsets from the end; ToEnd ignores To.
	From, To int
	ToEnd    bool
}

// Endpoints are the 3, 5 and 10 year policy endpoints.
var Endpoints = []Endpoint{
	{Name: "Three", Years: 3, From: -96, To: -84},
	{Name: "Five", Years: 5, From: -72, To: -60},
	{Name: "Ten", Years: 10, From: -12, ToEnd: true},
}

// Window resolves the endpoint against the reported days.
func (e Endpoint) Window(days []int64) (DayRange, error) {
	window := slice(days, e.From, e.To, e.ToEnd)
	if len(window) == 0 {
		return DayRange{}, ErrNotEnoughDays
	}
	return DayRange{First: window[0], Last: window[len(window)-1]}, nil
}

// slice returns days[from:to] with negative offsets counted from the end
// and out of range bounds clamped; toEnd ignores to.
func slice(days []int64, from, to int, toEnd bool) []int64 {
	n := len(days)
	clamp := func(i int) int {
		if i < 0 {
			i += n
		}
		return max(0, min(i, n))
	}
	start, end := clamp(from), n
	if !toEnd {
		end = clamp(to)
	}
	if start >= end {
		return nil
	}
	return days[start:end]
}

// ModelDate converts elapsed days to a calendar date, day 0 being
// January 1 of the first model year.
func ModelDate(modelYear int, days int64) time.Time {
	return time.Date(modelYear, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(days))
}

// ReferenceDate is where survey observations for a year are plotted.
func ReferenceDate(year int) time.Time {
	return time.Date(year, time.September, 30, 0, 0, 0, 0, time.UTC)
}
