// internal/domain/analytics/dayrange.go
package analytics

import (
	"errors"
	"time"
)

// ErrMissingScope is returned when day options are requested for a filter
// that does not have both a year and a month selected.
var ErrMissingScope = errors.New("day range requires both year and month")

// DaysIn returns the number of days in the given month, accounting for
// leap years.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayRange returns 1..N for the given year and month.
func DayRange(year int, month time.Month) []int {
	n := DaysIn(year, month)
	days := make([]int, n)
	for i := range days {
		days[i] = i + 1
	}
	return days
}

// DayOptions returns the selectable days for the filter's year and month.
func DayOptions(f TimeFilter) ([]int, error) {
	year, hasYear := f.Year()
	month, hasMonth := f.Month()
	if !hasYear || !hasMonth {
		return nil, ErrMissingScope
	}
	return DayRange(year, time.Month(month)), nil
}
