package leadstatsstore

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stratalead/internal/domain/analytics"
	"github.com/dalemusser/stratalead/internal/testutil"
)

func mustFilter(t *testing.T, year, month, day int) analytics.TimeFilter {
	t.Helper()
	var y, m, d *int
	if year != 0 {
		y = &year
	}
	if month != 0 {
		m = &month
	}
	if day != 0 {
		d = &day
	}
	f, err := analytics.NewTimeFilter(y, m, d)
	if err != nil {
		t.Fatalf("NewTimeFilter(%d, %d, %d) error = %v", year, month, day, err)
	}
	return f
}

func TestNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, "")
	if store == nil {
		t.Fatal("New() returned nil")
	}
	if store.trendCounter != CounterLeads {
		t.Errorf("trendCounter = %q, want %q", store.trendCounter, CounterLeads)
	}
}

func TestStore_EnsureIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, "")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() second call error = %v", err)
	}
}

func TestStore_IncrementFansOutToAllScopes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, "")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	at := time.Date(2025, time.March, 7, 9, 42, 0, 0, time.UTC)
	if err := store.Increment(ctx, at, CounterJobs, 2); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if err := store.Increment(ctx, at.Add(5*time.Minute), CounterJobs, 1); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	tests := []struct {
		scope Scope
		key   string
	}{
		{ScopeHour, "09:00"},
		{ScopeDay, "2025-03-07"},
		{ScopeMonth, "2025-03"},
		{ScopeYear, "2025"},
		{ScopeAll, "all"},
	}
	for _, tt := range tests {
		b, err := store.GetScope(ctx, tt.scope, at)
		if err != nil {
			t.Fatalf("GetScope(%s) error = %v", tt.scope, err)
		}
		if b.Key != tt.key {
			t.Errorf("GetScope(%s).Key = %q, want %q", tt.scope, b.Key, tt.key)
		}
		if b.Counters[CounterJobs] != 3 {
			t.Errorf("GetScope(%s) jobs = %d, want 3", tt.scope, b.Counters[CounterJobs])
		}
	}
}

func TestStore_IncrementRejectsBadName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, "")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := store.Increment(ctx, time.Now(), "a.b", 1)
	if !errors.Is(err, ErrInvalidName) {
		t.Errorf("Increment(a.b) error = %v, want ErrInvalidName", err)
	}
}

func TestStore_GetScopeNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, "")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetScope(ctx, ScopeDay, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetScope() error = %v, want ErrNotFound", err)
	}
}

func TestStore_FetchMonthlyTrendForYear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, "")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	leads := []struct {
		at     time.Time
		status string
	}{
		{time.Date(2025, time.January, 3, 10, 0, 0, 0, time.UTC), "NEW"},
		{time.Date(2025, time.March, 7, 11, 0, 0, 0, time.UTC), "NEW"},
		{time.Date(2025, time.March, 9, 12, 0, 0, 0, time.UTC), "contacted"},
		{time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC), "LOST"},
	}
	for _, l := range leads {
		if err := store.RecordLead(ctx, l.at, l.status); err != nil {
			t.Fatalf("RecordLead() error = %v", err)
		}
	}
	if err := store.Increment(ctx, leads[0].at, CounterReviews, 4); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	payload, err := store.Fetch(ctx, mustFilter(t, 2025, 0, 0))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(payload.Trend) != 2 {
		t.Fatalf("Trend = %+v, want 2 month points", payload.Trend)
	}
	if payload.Trend[0].Key.Value != "2025-01" || payload.Trend[0].Count != 1 {
		t.Errorf("Trend[0] = %+v", payload.Trend[0])
	}
	if payload.Trend[1].Key.Value != "2025-03" || payload.Trend[1].Count != 2 {
		t.Errorf("Trend[1] = %+v", payload.Trend[1])
	}
	if payload.Trend[0].Key.Kind != analytics.Monthly {
		t.Errorf("Trend kind = %q, want monthly", payload.Trend[0].Key.Kind)
	}

	if payload.Totals[CounterLeads] != 3 || payload.Totals[CounterReviews] != 4 {
		t.Errorf("Totals = %v", payload.Totals)
	}

	counts := map[string]int64{}
	for _, sc := range payload.StatusCounts {
		counts[sc.Status] = sc.Count
	}
	if counts["NEW"] != 2 || counts["CONTACTED"] != 1 || counts["LOST"] != 0 {
		t.Errorf("StatusCounts = %+v", payload.StatusCounts)
	}
}

func TestStore_FetchHourlyTrendForDay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, "")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	day := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	for _, h := range []int{9, 9, 14} {
		if err := store.RecordLead(ctx, day.Add(time.Duration(h)*time.Hour), ""); err != nil {
			t.Fatalf("RecordLead() error = %v", err)
		}
	}
	// Next day must not leak into the window.
	if err := store.RecordLead(ctx, day.AddDate(0, 0, 1), ""); err != nil {
		t.Fatalf("RecordLead() error = %v", err)
	}

	payload, err := store.Fetch(ctx, mustFilter(t, 2024, 2, 29))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	want := []analytics.RawTrendPoint{
		{Key: analytics.BucketKey{Kind: analytics.Hourly, Value: "09:00"}, Count: 2},
		{Key: analytics.BucketKey{Kind: analytics.Hourly, Value: "14:00"}, Count: 1},
	}
	if len(payload.Trend) != len(want) {
		t.Fatalf("Trend = %+v, want %+v", payload.Trend, want)
	}
	for i := range want {
		if payload.Trend[i] != want[i] {
			t.Errorf("Trend[%d] = %+v, want %+v", i, payload.Trend[i], want[i])
		}
	}
	if payload.Totals[CounterLeads] != 3 {
		t.Errorf("Totals[leads] = %d, want 3", payload.Totals[CounterLeads])
	}
}

func TestStore_FetchEmptyMonth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, "")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	payload, err := store.Fetch(ctx, mustFilter(t, 2025, 6, 0))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(payload.Trend) != 0 || len(payload.StatusCounts) != 0 {
		t.Errorf("payload = %+v, want empty", payload)
	}
	if payload.Totals == nil {
		t.Error("Totals should be an empty map, not nil")
	}
}

func TestStore_RecordStatusChange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, "")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created := time.Date(2025, time.May, 2, 8, 0, 0, 0, time.UTC)
	if err := store.RecordLead(ctx, created, "NEW"); err != nil {
		t.Fatalf("RecordLead() error = %v", err)
	}
	if err := store.RecordStatusChange(ctx, created, "NEW", "in progress"); err != nil {
		t.Fatalf("RecordStatusChange() error = %v", err)
	}

	b, err := store.GetScope(ctx, ScopeAll, created)
	if err != nil {
		t.Fatalf("GetScope() error = %v", err)
	}
	if b.Statuses["NEW"] != 0 || b.Statuses[analytics.StatusInProgress] != 1 {
		t.Errorf("Statuses = %v", b.Statuses)
	}
}

func TestStore_DeleteHourlyOlderThan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, "")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	old := time.Date(2025, time.January, 1, 5, 0, 0, 0, time.UTC)
	recent := time.Date(2025, time.April, 1, 5, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{old, recent} {
		if err := store.RecordLead(ctx, at, ""); err != nil {
			t.Fatalf("RecordLead() error = %v", err)
		}
	}

	n, err := store.DeleteHourlyOlderThan(ctx, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DeleteHourlyOlderThan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	if _, err := store.GetScope(ctx, ScopeHour, old); !errors.Is(err, ErrNotFound) {
		t.Errorf("old hour bucket still present: %v", err)
	}
	if _, err := store.GetScope(ctx, ScopeDay, old); err != nil {
		t.Errorf("day bucket should survive retention: %v", err)
	}
}

func TestOrderedStatuses(t *testing.T) {
	got := OrderedStatuses(map[string]int64{"ZEBRA": 1, "LOST": 2, "ARCHIVED": 3})

	if len(got) != len(analytics.StatusOrder)+2 {
		t.Fatalf("len = %d, want %d", len(got), len(analytics.StatusOrder)+2)
	}
	for i, st := range analytics.StatusOrder {
		if got[i].Status != st {
			t.Errorf("got[%d].Status = %q, want %q", i, got[i].Status, st)
		}
	}
	tail := got[len(analytics.StatusOrder):]
	if tail[0].Status != "ARCHIVED" || tail[1].Status != "ZEBRA" {
		t.Errorf("unknown statuses = %+v, want alphabetical", tail)
	}
}
