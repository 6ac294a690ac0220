// internal/domain/analytics/filter.go
package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFilterTransition is returned when a month or day is selected
// without its parent scope, or when a value is out of range.
var ErrInvalidFilterTransition = errors.New("invalid filter transition")

// TimeFilter is the year → month → day scope selected on the dashboard.
//
// The zero value is the unscoped ("all time") filter. A TimeFilter is a
// value; every transition returns a new filter and leaves the receiver as is.
// A set day always implies a set month, and a set month always implies a
// set year.
type TimeFilter struct {
	year  int
	month int
	day   int
}

// NewTimeFilter builds a filter from optional parts, rejecting combinations
// that break the cascade (for example a month without a year).
func NewTimeFilter(year, month, day *int) (TimeFilter, error) {
	var f TimeFilter
	var err error
	if year == nil {
		if month != nil || day != nil {
			return TimeFilter{}, fmt.Errorf("%w: month or day without year", ErrInvalidFilterTransition)
		}
		return f, nil
	}
	if f, err = f.WithYear(*year); err != nil {
		return TimeFilter{}, err
	}
	if month == nil {
		if day != nil {
			return TimeFilter{}, fmt.Errorf("%w: day without month", ErrInvalidFilterTransition)
		}
		return f, nil
	}
	if f, err = f.WithMonth(*month); err != nil {
		return TimeFilter{}, err
	}
	if day == nil {
		return f, nil
	}
	return f.WithDay(*day)
}

// WithYear selects a year and resets month and day.
func (f TimeFilter) WithYear(year int) (TimeFilter, error) {
	if year < 1 || year > 9999 {
		return f, fmt.Errorf("%w: year %d out of range", ErrInvalidFilterTransition, year)
	}
	return TimeFilter{year: year}, nil
}

// WithMonth selects a month within the current year and resets the day.
func (f TimeFilter) WithMonth(month int) (TimeFilter, error) {
	if f.year == 0 {
		return f, fmt.Errorf("%w: month %d selected without a year", ErrInvalidFilterTransition, month)
	}
	if month < 1 || month > 12 {
		return f, fmt.Errorf("%w: month %d out of range", ErrInvalidFilterTransition, month)
	}
	return TimeFilter{year: f.year, month: month}, nil
}

// WithDay selects a day within the current year and month.
func (f TimeFilter) WithDay(day int) (TimeFilter, error) {
	if f.year == 0 || f.month == 0 {
		return f, fmt.Errorf("%w: day %d selected without a year and month", ErrInvalidFilterTransition, day)
	}
	if day < 1 || day > DaysIn(f.year, time.Month(f.month)) {
		return f, fmt.Errorf("%w: day %d does not exist in %04d-%02d", ErrInvalidFilterTransition, day, f.year, f.month)
	}
	return TimeFilter{year: f.year, month: f.month, day: day}, nil
}

// Clear returns the unscoped filter.
func (f TimeFilter) Clear() TimeFilter {
	return TimeFilter{}
}

// ClearMonth selects "all months" of the current year.
func (f TimeFilter) ClearMonth() TimeFilter {
	return TimeFilter{year: f.year}
}

// ClearDay selects "all days" of the current month.
func (f TimeFilter) ClearDay() TimeFilter {
	return TimeFilter{year: f.year, month: f.month}
}

// Year returns the selected year and whether one is set.
func (f TimeFilter) Year() (int, bool) { return f.year, f.year != 0 }

// Month returns the selected month and whether one is set.
func (f TimeFilter) Month() (int, bool) { return f.month, f.month != 0 }

// Day returns the selected day and whether one is set.
func (f TimeFilter) Day() (int, bool) { return f.day, f.day != 0 }

// IsZero reports whether no scope is selected.
func (f TimeFilter) IsZero() bool { return f.year == 0 }

// Valid reports whether the cascade invariant holds.
func (f TimeFilter) Valid() bool {
	if f.day != 0 && f.month == 0 {
		return false
	}
	if f.month != 0 && f.year == 0 {
		return false
	}
	return true
}

// Key returns a stable identifier for the scope ("all", "2025", "2025-03",
// "2025-03-07"). It doubles as a cache key.
func (f TimeFilter) Key() string {
	switch {
	case f.day != 0:
		return fmt.Sprintf("%04d-%02d-%02d", f.year, f.month, f.day)
	case f.month != 0:
		return fmt.Sprintf("%04d-%02d", f.year, f.month)
	case f.year != 0:
		return fmt.Sprintf("%04d", f.year)
	default:
		return "all"
	}
}

// String implements fmt.Stringer.
func (f TimeFilter) String() string { return f.Key() }

// filterJSON is the wire form; absent levels are omitted.
type filterJSON struct {
	Year  *int `json:"year,omitempty"`
	Month *int `json:"month,omitempty"`
	Day   *int `json:"day,omitempty"`
}

// MarshalJSON encodes the filter with absent levels omitted.
func (f TimeFilter) MarshalJSON() ([]byte, error) {
	var out filterJSON
	if y, ok := f.Year(); ok {
		out.Year = &y
	}
	if m, ok := f.Month(); ok {
		out.Month = &m
	}
	if d, ok := f.Day(); ok {
		out.Day = &d
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates a filter.
func (f *TimeFilter) UnmarshalJSON(b []byte) error {
	var in filterJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	parsed, err := NewTimeFilter(in.Year, in.Month, in.Day)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
