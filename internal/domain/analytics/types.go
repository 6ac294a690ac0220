// Package analytics holds the dashboard analytics engine: the cascading
// time filter, bucket granularity and labels, day ranges, status series and
// the view model the dashboard renders.
//
// Everything in this package is pure and safe for concurrent use.
package analytics

import "time"

// RawTrendPoint is one bucket of the time series as the provider returns it.
type RawTrendPoint struct {
	Key   BucketKey `json:"key"`
	Count int64     `json:"count"`
}

// StatusCount is the number of leads in one status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// Totals are scalar counters passed through to the view model unchanged.
type Totals map[string]int64

// RawStatsPayload is everything a provider returns for one filter. Trend is
// assumed chronological; StatusCounts is in the provider's declared order.
type RawStatsPayload struct {
	Trend        []RawTrendPoint `json:"trend"`
	StatusCounts []StatusCount   `json:"status_counts"`
	Totals       Totals          `json:"totals"`
}

// DisplayTrendPoint is a formatted trend point.
type DisplayTrendPoint struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// CategorySeriesEntry is one bar/slice of the status chart.
type CategorySeriesEntry struct {
	Label string     `json:"label"`
	Count int64      `json:"count"`
	Color ColorToken `json:"color"`
}

// DashboardViewModel is the presentation-ready snapshot of one accepted
// fetch. Consumers replace their whole state with each one.
type DashboardViewModel struct {
	Token       uint64                `json:"token"`
	Filter      TimeFilter            `json:"filter"`
	Granularity Granularity           `json:"granularity,omitempty"`
	Trend       []DisplayTrendPoint   `json:"trend"`
	Categories  []CategorySeriesEntry `json:"categories"`
	Totals      Totals                `json:"totals"`
	LabelIssues []string              `json:"label_issues,omitempty"`
	GeneratedAt time.Time             `json:"generated_at"`
}
