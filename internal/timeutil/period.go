// Package timeutil computes goal windows and countdowns.
package timeutil

import (
	"errors"
	"time"
)

// Period names a goal window that can be turned into concrete dates
type Period string

const (
	PeriodDaily     Period = "daily"
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
	PeriodCustom    Period = "custom"
)

// ErrCustomPeriodEnd is returned when a custom period has no end date
var ErrCustomPeriodEnd = errors.New("custom period requires an end date")

const endOfDayNanos = 999 * int(time.Millisecond)

// Range is an inclusive [Start, End] window
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CalculatePeriod returns the window for period around now, in now's location.
// Unknown periods fall back to the monthly window.
func CalculatePeriod(period Period, now time.Time, customEnd *time.Time) (Range, error) {
	loc := now.Location()
	y, m, d := now.Date()

	switch period {
	case PeriodDaily:
		return Range{Start: startOfDay(y, m, d, loc), End: endOfDay(y, m, d, loc)}, nil

	case PeriodWeekly:
		start := startOfDay(y, m, d-int(now.Weekday()), loc)
		sy, sm, sd := start.Date()
		return Range{Start: start, End: endOfDay(sy, sm, sd+6, loc)}, nil

	case PeriodQuarterly:
		first := time.Month((int(m)-1)/3*3 + 1)
		return Range{Start: startOfDay(y, first, 1, loc), End: endOfDay(y, first+3, 0, loc)}, nil

	case PeriodYearly:
		return Range{Start: startOfDay(y, time.January, 1, loc), End: endOfDay(y, time.December, 31, loc)}, nil

	case PeriodCustom:
		if customEnd == nil {
			return Range{}, ErrCustomPeriodEnd
		}
		ey, em, ed := customEnd.In(loc).Date()
		return Range{Start: now, End: endOfDay(ey, em, ed, loc)}, nil

	default:
		return Range{Start: startOfDay(y, m, 1, loc), End: endOfDay(y, m+1, 0, loc)}, nil
	}
}

func startOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// endOfDay normalises out-of-range days, so day 0 is the last day of the previous month
func endOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 23, 59, 59, endOfDayNanos, loc)
}
