package timeutil

import (
	"fmt"
	"time"
)

// TimeRemaining breaks down the time left until a target date
type TimeRemaining struct {
	Days    int           `json:"days"`
	Hours   int           `json:"hours"`
	Minutes int           `json:"minutes"`
	Total   time.Duration `json:"total"`
	// Percentage of a one-year window ending at the target that has elapsed.
	// It ignores the goal's real start date.
	Percentage float64   `json:"percentage"`
	StartDate  time.Time `json:"start_date"`
}

// GetTimeRemaining returns the remaining time from now until end
func GetTimeRemaining(end, now time.Time) TimeRemaining {
	total := end.Sub(now)
	if total <= 0 {
		return TimeRemaining{Percentage: 100, StartDate: end}
	}

	days := int(total / (24 * time.Hour))
	hours := int(total % (24 * time.Hour) / time.Hour)
	minutes := int(total % time.Hour / time.Minute)

	start := end.AddDate(-1, 0, 0)
	window := end.Sub(start)
	pct := float64(now.Sub(start)) / float64(window) * 100

	return TimeRemaining{
		Days:       days,
		Hours:      hours,
		Minutes:    minutes,
		Total:      total,
		Percentage: min(100, max(0, pct)),
		StartDate:  start,
	}
}

// FormatTimeRemaining renders the breakdown in the coarsest sensible unit
func FormatTimeRemaining(tr TimeRemaining) string {
	switch {
	case tr.Days > 30:
		return plural(tr.Days/30, "month") + " remaining"
	case tr.Days > 0:
		return plural(tr.Days, "day") + " remaining"
	case tr.Hours > 0:
		return plural(tr.Hours, "hour") + " remaining"
	default:
		return "Less than an hour remaining"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
