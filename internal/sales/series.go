// Package sales turns the movement ledger into daily demand figures.
package sales

import (
	"math"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
)

const (
	// AverageWindowDays is the trailing window of the daily sales average.
	AverageWindowDays = 30
	// MinTrendDays is the number of distinct sale days needed before a slope is fitted.
	MinTrendDays = 7
	// DefaultLookbackDays bounds the history an aggregate looks at.
	DefaultLookbackDays = 90
)

// DayStart truncates t to midnight in its own location.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	from := DayStart(a)
	to := DayStart(b.In(a.Location()))
	// Round absorbs DST shifts.
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// WindowStart is the first instant of a trailing window of days calendar days ending on now's day.
func WindowStart(now time.Time, days int) time.Time {
	if days < 1 {
		days = 1
	}
	return DayStart(now).AddDate(0, 0, -(days - 1))
}

// DemandTotal sums the demand quantity of movements inside [from, to].
func DemandTotal(movements []domain.Movement, from, to time.Time) int {
	total := 0
	for _, m := range movements {
		if !m.IsDemand() || m.Timestamp.Before(from) || m.Timestamp.After(to) {
			continue
		}
		total += m.Quantity
	}
	return total
}

// AverageDaily is the demand of the trailing window divided by its length in days.
func AverageDaily(movements []domain.Movement, now time.Time, windowDays int) float64 {
	if windowDays < 1 {
		return 0
	}
	total := DemandTotal(movements, WindowStart(now, windowDays), now)
	return float64(total) / float64(windowDays)
}

// DailySeries holds demand per calendar day starting at Start.
type DailySeries struct {
	Start      time.Time `json:"start"`
	Quantities []int     `json:"quantities"`
}

// SeriesEnd is now when today already has demand or the series starts today,
// otherwise the last instant of yesterday. Today is still running, so an empty
// bucket for it says nothing about demand.
func SeriesEnd(movements []domain.Movement, first, now time.Time) time.Time {
	today := DayStart(now)
	if !first.Before(today) || DemandTotal(movements, today, now) > 0 {
		return now
	}
	return today.Add(-time.Nanosecond)
}

// BuildSeries buckets the demand inside [from's day, now] per calendar day.
func BuildSeries(movements []domain.Movement, from, now time.Time) DailySeries {
	start := DayStart(from)
	days := DaysBetween(start, now) + 1
	if days < 1 {
		return DailySeries{Start: start}
	}

	quantities := make([]int, days)
	for _, m := range movements {
		if !m.IsDemand() || m.Timestamp.Before(start) || m.Timestamp.After(now) {
			continue
		}
		idx := DaysBetween(start, m.Timestamp)
		if idx >= 0 && idx < days {
			quantities[idx] += m.Quantity
		}
	}
	return DailySeries{Start: start, Quantities: quantities}
}

func (s DailySeries) Len() int {
	return len(s.Quantities)
}

// Mean is the average quantity per day of the series.
func (s DailySeries) Mean() float64 {
	if len(s.Quantities) == 0 {
		return 0
	}
	total := 0
	for _, q := range s.Quantities {
		total += q
	}
	return float64(total) / float64(len(s.Quantities))
}

// ActiveDays counts days with non-zero demand.
func (s DailySeries) ActiveDays() int {
	n := 0
	for _, q := range s.Quantities {
		if q > 0 {
			n++
		}
	}
	return n
}

// Slope is the ordinary least squares slope of quantity against day index.
func (s DailySeries) Slope() float64 {
	n := len(s.Quantities)
	if n < 2 {
		return 0
	}

	meanX := float64(n-1) / 2
	meanY := s.Mean()

	var num, den float64
	for i, q := range s.Quantities {
		dx := float64(i) - meanX
		num += dx * (float64(q) - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}
