package analytics

import (
	"encoding/json"
	"errors"
	"testing"
)

func intp(v int) *int { return &v }

func mustYear(t *testing.T, y int) TimeFilter {
	t.Helper()
	f, err := TimeFilter{}.WithYear(y)
	if err != nil {
		t.Fatalf("WithYear(%d) error = %v", y, err)
	}
	return f
}

func TestTimeFilter_Zero(t *testing.T) {
	var f TimeFilter
	if !f.IsZero() {
		t.Error("zero filter should be unscoped")
	}
	if f.Key() != "all" {
		t.Errorf("Key() = %q, want %q", f.Key(), "all")
	}
}

func TestTimeFilter_WithYearResetsLowerLevels(t *testing.T) {
	f := mustYear(t, 2024)
	f, _ = f.WithMonth(2)
	f, _ = f.WithDay(29)

	next, err := f.WithYear(2025)
	if err != nil {
		t.Fatalf("WithYear() error = %v", err)
	}
	if _, ok := next.Month(); ok {
		t.Error("month should be cleared after a year change")
	}
	if _, ok := next.Day(); ok {
		t.Error("day should be cleared after a year change")
	}
	// Receiver is untouched.
	if d, ok := f.Day(); !ok || d != 29 {
		t.Errorf("receiver day = %d,%v, want 29,true", d, ok)
	}
}

func TestTimeFilter_WithMonthResetsDay(t *testing.T) {
	f := mustYear(t, 2025)
	f, _ = f.WithMonth(3)
	f, _ = f.WithDay(7)

	next, err := f.WithMonth(4)
	if err != nil {
		t.Fatalf("WithMonth() error = %v", err)
	}
	if m, _ := next.Month(); m != 4 {
		t.Errorf("month = %d, want 4", m)
	}
	if _, ok := next.Day(); ok {
		t.Error("day should be cleared after a month change")
	}
}

func TestTimeFilter_RejectsMissingParent(t *testing.T) {
	if _, err := (TimeFilter{}).WithMonth(3); !errors.Is(err, ErrInvalidFilterTransition) {
		t.Errorf("WithMonth without year error = %v, want ErrInvalidFilterTransition", err)
	}
	if _, err := mustYear(t, 2025).WithDay(1); !errors.Is(err, ErrInvalidFilterTransition) {
		t.Errorf("WithDay without month error = %v, want ErrInvalidFilterTransition", err)
	}
	if _, err := (TimeFilter{}).WithDay(1); !errors.Is(err, ErrInvalidFilterTransition) {
		t.Errorf("WithDay on empty filter error = %v, want ErrInvalidFilterTransition", err)
	}
}

func TestTimeFilter_RejectsOutOfRange(t *testing.T) {
	f := mustYear(t, 2025)
	if _, err := f.WithMonth(13); !errors.Is(err, ErrInvalidFilterTransition) {
		t.Errorf("WithMonth(13) error = %v", err)
	}
	f, _ = f.WithMonth(2)
	if _, err := f.WithDay(29); !errors.Is(err, ErrInvalidFilterTransition) {
		t.Errorf("WithDay(29) in Feb 2025 error = %v", err)
	}
	if _, err := (TimeFilter{}).WithYear(0); !errors.Is(err, ErrInvalidFilterTransition) {
		t.Errorf("WithYear(0) error = %v", err)
	}
}

func TestTimeFilter_ClearLevels(t *testing.T) {
	f := mustYear(t, 2025)
	f, _ = f.WithMonth(3)
	f, _ = f.WithDay(7)

	if got := f.ClearDay().Key(); got != "2025-03" {
		t.Errorf("ClearDay().Key() = %q, want 2025-03", got)
	}
	if got := f.ClearMonth().Key(); got != "2025" {
		t.Errorf("ClearMonth().Key() = %q, want 2025", got)
	}
	if got := f.Clear(); !got.IsZero() {
		t.Errorf("Clear() = %v, want zero", got)
	}
}

// Every sequence of transitions keeps day ⇒ month ⇒ year.
func TestTimeFilter_CascadeInvariant(t *testing.T) {
	type step struct {
		op    string
		value int
	}
	ops := []step{
		{"year", 2024}, {"month", 2}, {"day", 29}, {"month", 11}, {"day", 30},
		{"year", 2025}, {"day", 3}, {"month", 1}, {"clearMonth", 0}, {"day", 1},
		{"month", 6}, {"day", 15}, {"clearDay", 0}, {"clear", 0}, {"month", 5},
	}

	var f TimeFilter
	for i, s := range ops {
		var next TimeFilter
		var err error
		switch s.op {
		case "year":
			next, err = f.WithYear(s.value)
		case "month":
			next, err = f.WithMonth(s.value)
		case "day":
			next, err = f.WithDay(s.value)
		case "clearMonth":
			next = f.ClearMonth()
		case "clearDay":
			next = f.ClearDay()
		case "clear":
			next = f.Clear()
		}
		if err == nil {
			f = next
		}
		if !f.Valid() {
			t.Fatalf("step %d (%s %d): filter %v violates the cascade", i, s.op, s.value, f)
		}
	}
}

func TestNewTimeFilter(t *testing.T) {
	tests := []struct {
		name    string
		y, m, d *int
		want    string
		wantErr bool
	}{
		{"empty", nil, nil, nil, "all", false},
		{"year", intp(2025), nil, nil, "2025", false},
		{"month", intp(2025), intp(3), nil, "2025-03", false},
		{"day", intp(2025), intp(3), intp(7), "2025-03-07", false},
		{"month without year", nil, intp(3), nil, "", true},
		{"day without month", intp(2025), nil, intp(7), "", true},
		{"leap day", intp(2024), intp(2), intp(29), "2024-02-29", false},
		{"no leap day", intp(2025), intp(2), intp(29), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewTimeFilter(tt.y, tt.m, tt.d)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFilterTransition) {
					t.Fatalf("error = %v, want ErrInvalidFilterTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Key() != tt.want {
				t.Errorf("Key() = %q, want %q", f.Key(), tt.want)
			}
		})
	}
}

func TestTimeFilter_JSON(t *testing.T) {
	f, _ := NewTimeFilter(intp(2025), intp(3), nil)
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `{"year":2025,"month":3}` {
		t.Errorf("Marshal() = %s", b)
	}

	var back TimeFilter
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != f {
		t.Errorf("round trip = %v, want %v", back, f)
	}

	if err := json.Unmarshal([]byte(`{"day":3}`), &back); !errors.Is(err, ErrInvalidFilterTransition) {
		t.Errorf("Unmarshal(day only) error = %v, want ErrInvalidFilterTransition", err)
	}
}
