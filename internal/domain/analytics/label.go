// internal/domain/analytics/label.go
package analytics

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnparseableBucketKey matches every *UnparseableBucketKeyError.
var ErrUnparseableBucketKey = errors.New("unparseable bucket key")

// UnparseableBucketKeyError names a bucket key that does not match the
// shape expected for its granularity.
type UnparseableBucketKeyError struct {
	Key         string
	Granularity Granularity
}

func (e *UnparseableBucketKeyError) Error() string {
	return fmt.Sprintf("unparseable %s bucket key %q", e.Granularity, e.Key)
}

// Is lets errors.Is match ErrUnparseableBucketKey.
func (e *UnparseableBucketKeyError) Is(target error) bool {
	return target == ErrUnparseableBucketKey
}

// FormatLabel renders a bucket key as a chart label:
//
//	("09:00", Hourly)      → "09:00"
//	("2025-03", Monthly)   → "Mar"
//	("2025-03-07", Daily)  → "Mar 7"
func FormatLabel(key string, g Granularity) (string, error) {
	switch g {
	case Hourly:
		return key, nil
	case Monthly:
		// Parse as the first day of that month.
		t, err := time.Parse("2006-01-02", key+"-01")
		if err != nil || len(key) != monthKeyLen {
			return "", &UnparseableBucketKeyError{Key: key, Granularity: g}
		}
		return t.Format("Jan"), nil
	case Daily:
		t, err := time.Parse("2006-01-02", key)
		if err != nil {
			return "", &UnparseableBucketKeyError{Key: key, Granularity: g}
		}
		return t.Format("Jan 2"), nil
	default:
		return "", &UnparseableBucketKeyError{Key: key, Granularity: g}
	}
}

// LabelPolicy decides what happens to a trend point whose key cannot be
// formatted.
type LabelPolicy int

const (
	// RawKeyLabel keeps the point and uses the raw key as its label.
	RawKeyLabel LabelPolicy = iota
	// DropUnparseable removes the point from the series.
	DropUnparseable
)

// ParseLabelPolicy maps "raw" and "drop" to a LabelPolicy.
func ParseLabelPolicy(s string) (LabelPolicy, error) {
	switch s {
	case "", "raw":
		return RawKeyLabel, nil
	case "drop":
		return DropUnparseable, nil
	}
	return RawKeyLabel, fmt.Errorf("unknown label policy %q (want raw or drop)", s)
}

// FormatTrend formats every point, preserving input order. Points whose key
// cannot be formatted are handled per policy, and their errors are joined
// into the returned error so the caller can surface them alongside the
// partial series.
func FormatTrend(points []RawTrendPoint, policy LabelPolicy) ([]DisplayTrendPoint, error) {
	out := make([]DisplayTrendPoint, 0, len(points))
	var errs []error
	for _, p := range points {
		label, err := FormatLabel(p.Key.Value, p.Key.Granularity())
		if err != nil {
			errs = append(errs, err)
			if policy == DropUnparseable {
				continue
			}
			label = p.Key.Value
		}
		out = append(out, DisplayTrendPoint{Label: label, Count: p.Count})
	}
	return out, errors.Join(errs...)
}
