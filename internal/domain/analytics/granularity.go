// internal/domain/analytics/granularity.go
package analytics

import "strings"

// Granularity is the temporal resolution a bucket key represents.
type Granularity string

const (
	Hourly  Granularity = "hourly"
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
)

// monthKeyLen is the length of a "YYYY-MM" bucket key.
const monthKeyLen = len("2006-01")

// Classify infers the granularity of a raw bucket key from its shape:
// keys containing ':' are hourly ("09:00"), 7-character keys are monthly
// ("2025-03"), everything else is daily ("2025-03-07").
//
// The rule is applied per key. A response mixing granularities is
// classified point by point.
func Classify(key string) Granularity {
	switch {
	case strings.Contains(key, ":"):
		return Hourly
	case len(key) == monthKeyLen:
		return Monthly
	default:
		return Daily
	}
}

// ParseGranularity maps provider kind tags ("hour", "day", "month", or the
// Granularity names) to a Granularity.
func ParseGranularity(kind string) (Granularity, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "hour", "hourly":
		return Hourly, true
	case "day", "daily":
		return Daily, true
	case "month", "monthly":
		return Monthly, true
	}
	return "", false
}

// BucketKey is a bucket key tagged with its granularity. Providers that know
// the resolution of their buckets set Kind; an empty Kind falls back to
// shape-based classification.
type BucketKey struct {
	Kind  Granularity `json:"kind,omitempty"`
	Value string      `json:"value"`
}

// Granularity returns the tagged kind, or the classified one when untagged.
func (k BucketKey) Granularity() Granularity {
	if k.Kind != "" {
		return k.Kind
	}
	return Classify(k.Value)
}
