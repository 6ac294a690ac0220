// internal/app/store/leadstats/leadstatsstore.go
package leadstatsstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/stratalead/internal/domain/analytics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection for pre-aggregated lead counters.
const CollectionName = "lead_stats"

// Scope is the resolution a counter document covers.
type Scope string

const (
	ScopeHour  Scope = "hour"
	ScopeDay   Scope = "day"
	ScopeMonth Scope = "month"
	ScopeYear  Scope = "year"
	ScopeAll   Scope = "all"
)

// allScopes is the write fan-out order for a single event.
var allScopes = []Scope{ScopeHour, ScopeDay, ScopeMonth, ScopeYear, ScopeAll}

// Counter names recorded by the store. Other names may be used freely and
// are passed through as dashboard totals.
const (
	CounterLeads   = "leads"
	CounterJobs    = "jobs"
	CounterReviews = "reviews"
	CounterAdmins  = "admins"
)

// Bucket holds the counters for one scope and period.
type Bucket struct {
	ID        primitive.ObjectID `bson:"_id"`
	Scope     Scope              `bson:"scope"`
	Start     time.Time          `bson:"start"`    // UTC start of the period
	Key       string             `bson:"key"`      // "09:00", "2025-03-07", "2025-03", "2025", "all"
	Counters  map[string]int64   `bson:"counters"` // leads, jobs, reviews, ...
	Statuses  map[string]int64   `bson:"statuses"` // lead status -> count
	UpdatedAt time.Time          `bson:"updated_at"`
}

var (
	// ErrNotFound is returned when no counters exist for a scope.
	ErrNotFound = errors.New("lead stats not found")

	// ErrInvalidName is returned for counter or status names that cannot be
	// used as document field names.
	ErrInvalidName = errors.New("invalid counter or status name")
)

// Store provides lead counter persistence and implements the dashboard
// stats provider over it.
type Store struct {
	c            *mongo.Collection
	trendCounter string
}

// New creates a new lead stats store. trendCounter names the counter plotted
// as the time series; empty means "leads".
func New(db *mongo.Database, trendCounter string) *Store {
	if trendCounter == "" {
		trendCounter = CounterLeads
	}
	return &Store{c: db.Collection(CollectionName), trendCounter: trendCounter}
}

// EnsureIndexes creates indexes for efficient queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, Indexes())
	return err
}

// Indexes returns the index models for the collection.
func Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "scope", Value: 1},
				{Key: "start", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_lead_stats_scope_start"),
		},
	}
}

// periodStart truncates t (in UTC) to the start of its period for scope.
func periodStart(t time.Time, scope Scope) time.Time {
	t = t.UTC()
	switch scope {
	case ScopeHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case ScopeDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case ScopeMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case ScopeYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

// bucketKey renders the backend bucket key for a period start.
func bucketKey(start time.Time, scope Scope) string {
	switch scope {
	case ScopeHour:
		return start.Format("15:04")
	case ScopeDay:
		return start.Format("2006-01-02")
	case ScopeMonth:
		return start.Format("2006-01")
	case ScopeYear:
		return start.Format("2006")
	default:
		return "all"
	}
}

// normalizeStatus maps "in progress" and "In_Progress" to "IN_PROGRESS".
func normalizeStatus(status string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(status), " ", "_"))
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, ".$")
}

// upsert applies inc to the document of every scope containing at.
func (s *Store) upsert(ctx context.Context, at time.Time, inc bson.M) error {
	now := time.Now().UTC()
	opts := options.Update().SetUpsert(true)

	for _, scope := range allScopes {
		start := periodStart(at, scope)
		_, err := s.c.UpdateOne(ctx, bson.M{
			"scope": scope,
			"start": start,
		}, bson.M{
			"$inc": inc,
			"$set": bson.M{
				"updated_at": now,
			},
			"$setOnInsert": bson.M{
				"_id": primitive.NewObjectID(),
				"key": bucketKey(start, scope),
			},
		}, opts)
		if err != nil {
			return fmt.Errorf("update %s counters: %w", scope, err)
		}
	}
	return nil
}

// Increment adds delta to a counter in every scope containing at.
func (s *Store) Increment(ctx context.Context, at time.Time, counter string, delta int64) error {
	if !validName(counter) {
		return fmt.Errorf("%w: %q", ErrInvalidName, counter)
	}
	return s.upsert(ctx, at, bson.M{"counters." + counter: delta})
}

// AdjustStatus adds delta to a lead status in every scope containing at.
// Status changes call it twice: -1 for the old status, +1 for the new.
func (s *Store) AdjustStatus(ctx context.Context, at time.Time, status string, delta int64) error {
	status = normalizeStatus(status)
	if !validName(status) {
		return fmt.Errorf("%w: %q", ErrInvalidName, status)
	}
	return s.upsert(ctx, at, bson.M{"statuses." + status: delta})
}

// RecordLead counts a newly created lead: the trend counter goes up by one
// and so does its initial status.
func (s *Store) RecordLead(ctx context.Context, createdAt time.Time, status string) error {
	status = normalizeStatus(status)
	if status == "" {
		status = analytics.StatusNew
	}
	if !validName(status) {
		return fmt.Errorf("%w: %q", ErrInvalidName, status)
	}
	return s.upsert(ctx, createdAt, bson.M{
		"counters." + s.trendCounter: int64(1),
		"statuses." + status:         int64(1),
	})
}

// RecordStatusChange moves one lead, created at createdAt, between statuses.
func (s *Store) RecordStatusChange(ctx context.Context, createdAt time.Time, from, to string) error {
	from = normalizeStatus(from)
	to = normalizeStatus(to)
	if !validName(from) || !validName(to) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidName, from, to)
	}
	if from == to {
		return nil
	}
	return s.upsert(ctx, createdAt, bson.M{
		"statuses." + from: int64(-1),
		"statuses." + to:   int64(1),
	})
}

// GetScope retrieves the counters for one period.
func (s *Store) GetScope(ctx context.Context, scope Scope, at time.Time) (*Bucket, error) {
	var b Bucket
	err := s.c.FindOne(ctx, bson.M{
		"scope": scope,
		"start": periodStart(at, scope),
	}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// GetRange retrieves buckets of one scope with start in [from, to), oldest
// first. A zero from or to leaves that side open.
func (s *Store) GetRange(ctx context.Context, scope Scope, from, to time.Time) ([]Bucket, error) {
	filter := bson.M{"scope": scope}
	bounds := bson.M{}
	if !from.IsZero() {
		bounds["$gte"] = from.UTC()
	}
	if !to.IsZero() {
		bounds["$lt"] = to.UTC()
	}
	if len(bounds) > 0 {
		filter["start"] = bounds
	}

	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var buckets []Bucket
	if err := cur.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// DeleteHourlyOlderThan deletes hour buckets that started before cutoff.
func (s *Store) DeleteHourlyOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{
		"scope": ScopeHour,
		"start": bson.M{"$lt": cutoff.UTC()},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// window maps a filter to the trend scope, the summary scope and the time
// range the trend covers.
type window struct {
	trend   Scope
	summary Scope
	at      time.Time // any instant inside the summary period
	from    time.Time
	to      time.Time
}

func windowFor(f analytics.TimeFilter) window {
	year, hasYear := f.Year()
	month, hasMonth := f.Month()
	day, hasDay := f.Day()

	switch {
	case hasDay:
		from := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		return window{trend: ScopeHour, summary: ScopeDay, at: from, from: from, to: from.AddDate(0, 0, 1)}
	case hasMonth:
		from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return window{trend: ScopeDay, summary: ScopeMonth, at: from, from: from, to: from.AddDate(0, 1, 0)}
	case hasYear:
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return window{trend: ScopeMonth, summary: ScopeYear, at: from, from: from, to: from.AddDate(1, 0, 0)}
	default:
		return window{trend: ScopeMonth, summary: ScopeAll}
	}
}

// Fetch returns the dashboard payload for a filter. Trend granularity follows
// the filter: all time and a year give months, a month gives days, a day
// gives hours.
func (s *Store) Fetch(ctx context.Context, f analytics.TimeFilter) (analytics.RawStatsPayload, error) {
	w := windowFor(f)

	buckets, err := s.GetRange(ctx, w.trend, w.from, w.to)
	if err != nil {
		return analytics.RawStatsPayload{}, fmt.Errorf("load %s trend for %s: %w", w.trend, f, err)
	}

	kind := trendKind(w.trend)
	trend := make([]analytics.RawTrendPoint, 0, len(buckets))
	for _, b := range buckets {
		trend = append(trend, analytics.RawTrendPoint{
			Key:   analytics.BucketKey{Kind: kind, Value: b.Key},
			Count: b.Counters[s.trendCounter],
		})
	}

	payload := analytics.RawStatsPayload{
		Trend:        trend,
		StatusCounts: []analytics.StatusCount{},
		Totals:       analytics.Totals{},
	}

	summary, err := s.GetScope(ctx, w.summary, w.at)
	switch {
	case errors.Is(err, ErrNotFound):
		return payload, nil
	case err != nil:
		return analytics.RawStatsPayload{}, fmt.Errorf("load %s summary for %s: %w", w.summary, f, err)
	}

	payload.StatusCounts = OrderedStatuses(summary.Statuses)
	for k, v := range summary.Counters {
		payload.Totals[k] = v
	}
	return payload, nil
}

func trendKind(scope Scope) analytics.Granularity {
	switch scope {
	case ScopeHour:
		return analytics.Hourly
	case ScopeDay:
		return analytics.Daily
	default:
		return analytics.Monthly
	}
}

// OrderedStatuses lists status counts in the canonical lead status order,
// followed by any other statuses alphabetically. Canonical statuses are
// always present (zero when unseen).
func OrderedStatuses(counts map[string]int64) []analytics.StatusCount {
	out := make([]analytics.StatusCount, 0, len(analytics.StatusOrder)+len(counts))
	known := make(map[string]bool, len(analytics.StatusOrder))
	for _, st := range analytics.StatusOrder {
		known[st] = true
		out = append(out, analytics.StatusCount{Status: st, Count: counts[st]})
	}

	var extra []string
	for st := range counts {
		if !known[st] {
			extra = append(extra, st)
		}
	}
	sort.Strings(extra)
	for _, st := range extra {
		out = append(out, analytics.StatusCount{Status: st, Count: counts[st]})
	}
	return out
}
