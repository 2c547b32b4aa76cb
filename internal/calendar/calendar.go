// Package calendar counts days for the budget cadence and tax classification.
// The budget runs on trading days (weekends excluded); tax holding periods run
// on plain calendar days. The two metrics are intentionally different.
package calendar

import "time"

// TradingDaysBetween returns the number of Monday-Friday days in [start, end).
// Returns 0 when start is after end (budget start date in the future).
func TradingDaysBetween(start, end time.Time) int {
	start = dateOf(start)
	end = dateOf(end)

	if start.After(end) {
		return 0
	}

	days := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if isTradingDay(d) {
			days++
		}
	}

	return days
}

// DaysBetween returns the absolute calendar-day difference between a and b,
// weekends included. Used for short/long-term tax classification.
func DaysBetween(a, b time.Time) int {
	a = dateOf(a)
	b = dateOf(b)

	days := int(b.Sub(a).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// AddTradingDays returns the date n trading days after start, skipping
// weekends: Friday plus one trading day lands on Monday.
func AddTradingDays(start time.Time, n int) time.Time {
	d := dateOf(start)
	for added := 0; added < n; {
		d = d.AddDate(0, 0, 1)
		if isTradingDay(d) {
			added++
		}
	}
	return d
}

func isTradingDay(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
