// internal/app/system/statsclient/payload.go
package statsclient

import (
	"fmt"
	"math"

	"github.com/dalemusser/stratalead/internal/domain/analytics"
	"github.com/tidwall/gjson"
)

// ParsePayload decodes a backend stats body:
//
//	{
//	  "trend": [{"bucketKey": "2025-03-05", "count": 12}, ...],
//	  "statusCounts": {"NEW": 4, "IN_PROGRESS": 2},
//	  "totals": {"leads": 120, "jobs": 8}
//	}
//
// bucketKey may also be a tagged object {"kind": "day", "value": "2025-03-05"},
// and a point may carry a sibling "kind". statusCounts may be an object
// (key order is the category order) or an array of {"status", "count"}.
func ParsePayload(body []byte) (analytics.RawStatsPayload, error) {
	if !gjson.ValidBytes(body) {
		return analytics.RawStatsPayload{}, fmt.Errorf("%w: invalid json", ErrMalformedPayload)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return analytics.RawStatsPayload{}, fmt.Errorf("%w: top level is not an object", ErrMalformedPayload)
	}

	trend, err := parseTrend(root.Get("trend"))
	if err != nil {
		return analytics.RawStatsPayload{}, err
	}
	statuses, err := parseStatusCounts(root.Get("statusCounts"))
	if err != nil {
		return analytics.RawStatsPayload{}, err
	}
	totals, err := parseTotals(root.Get("totals"))
	if err != nil {
		return analytics.RawStatsPayload{}, err
	}

	return analytics.RawStatsPayload{Trend: trend, StatusCounts: statuses, Totals: totals}, nil
}

func parseTrend(v gjson.Result) ([]analytics.RawTrendPoint, error) {
	out := []analytics.RawTrendPoint{}
	if !v.Exists() || v.Type == gjson.Null {
		return out, nil
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("%w: trend is not an array", ErrMalformedPayload)
	}

	var err error
	i := 0
	v.ForEach(func(_, p gjson.Result) bool {
		defer func() { i++ }()
		var key analytics.BucketKey
		key, err = parseBucketKey(p)
		if err != nil {
			err = fmt.Errorf("%w: trend[%d]: %v", ErrMalformedPayload, i, err)
			return false
		}
		var n int64
		n, err = count(p.Get("count"))
		if err != nil {
			err = fmt.Errorf("%w: trend[%d]: %v", ErrMalformedPayload, i, err)
			return false
		}
		out = append(out, analytics.RawTrendPoint{Key: key, Count: n})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseBucketKey(p gjson.Result) (analytics.BucketKey, error) {
	k := p.Get("bucketKey")
	if !k.Exists() {
		k = p.Get("date")
	}

	var key analytics.BucketKey
	var kind string
	switch {
	case k.IsObject():
		key.Value = k.Get("value").String()
		kind = k.Get("kind").String()
	case k.Type == gjson.String:
		key.Value = k.String()
		kind = p.Get("kind").String()
	default:
		return key, fmt.Errorf("missing bucketKey")
	}

	if kind != "" {
		g, ok := analytics.ParseGranularity(kind)
		if !ok {
			return key, fmt.Errorf("unknown bucket kind %q", kind)
		}
		key.Kind = g
	}
	return key, nil
}

func parseStatusCounts(v gjson.Result) ([]analytics.StatusCount, error) {
	out := []analytics.StatusCount{}
	if !v.Exists() || v.Type == gjson.Null {
		return out, nil
	}

	var err error
	switch {
	case v.IsObject():
		v.ForEach(func(k, c gjson.Result) bool {
			var n int64
			if n, err = count(c); err != nil {
				err = fmt.Errorf("%w: statusCounts.%s: %v", ErrMalformedPayload, k.String(), err)
				return false
			}
			out = append(out, analytics.StatusCount{Status: k.String(), Count: n})
			return true
		})
	case v.IsArray():
		i := 0
		v.ForEach(func(_, e gjson.Result) bool {
			defer func() { i++ }()
			var n int64
			if n, err = count(e.Get("count")); err != nil {
				err = fmt.Errorf("%w: statusCounts[%d]: %v", ErrMalformedPayload, i, err)
				return false
			}
			out = append(out, analytics.StatusCount{Status: e.Get("status").String(), Count: n})
			return true
		})
	default:
		return nil, fmt.Errorf("%w: statusCounts is neither object nor array", ErrMalformedPayload)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseTotals(v gjson.Result) (analytics.Totals, error) {
	out := analytics.Totals{}
	if !v.Exists() || v.Type == gjson.Null {
		return out, nil
	}
	if !v.IsObject() {
		return nil, fmt.Errorf("%w: totals is not an object", ErrMalformedPayload)
	}

	var err error
	v.ForEach(func(k, c gjson.Result) bool {
		var n int64
		if n, err = count(c); err != nil {
			err = fmt.Errorf("%w: totals.%s: %v", ErrMalformedPayload, k.String(), err)
			return false
		}
		out[k.String()] = n
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// count reads a nonnegative integer.
func count(v gjson.Result) (int64, error) {
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("count is not a number")
	}
	f := v.Float()
	if f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("count %s is not a nonnegative integer", v.Raw)
	}
	return v.Int(), nil
}
