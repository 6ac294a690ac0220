// internal/domain/analytics/viewmodel.go
package analytics

import "time"

// BuildViewModel transforms a provider payload into a view model.
//
// Label failures do not abort the build: the affected points are handled per
// policy, listed in LabelIssues, and returned as the error so callers can
// log them. The view model is usable whenever it is returned.
func BuildViewModel(filter TimeFilter, payload RawStatsPayload, policy LabelPolicy) (DashboardViewModel, error) {
	trend, labelErr := FormatTrend(payload.Trend, policy)

	vm := DashboardViewModel{
		Filter:      filter,
		Granularity: seriesGranularity(payload.Trend),
		Trend:       trend,
		Categories:  AggregateStatuses(payload.StatusCounts),
		Totals:      copyTotals(payload.Totals),
		GeneratedAt: time.Now().UTC(),
	}

	if labelErr != nil {
		vm.LabelIssues = issueStrings(labelErr)
	}
	return vm, labelErr
}

// seriesGranularity reports the granularity shared by every point, or ""
// when the series is empty or mixed.
func seriesGranularity(points []RawTrendPoint) Granularity {
	var g Granularity
	for i, p := range points {
		pg := p.Key.Granularity()
		if i == 0 {
			g = pg
			continue
		}
		if pg != g {
			return ""
		}
	}
	return g
}

func copyTotals(in Totals) Totals {
	out := make(Totals, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func issueStrings(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		out := make([]string, len(errs))
		for i, e := range errs {
			out[i] = e.Error()
		}
		return out
	}
	return []string{err.Error()}
}
