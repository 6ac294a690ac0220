package statsfetch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/stratalead/internal/app/system/statsfetch"
	"github.com/dalemusser/stratalead/internal/domain/analytics"
	"go.uber.org/zap"
)

func yearFilter(t *testing.T, y int) analytics.TimeFilter {
	t.Helper()
	f, err := analytics.TimeFilter{}.WithYear(y)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func payloadWithTotal(n int64) analytics.RawStatsPayload {
	return analytics.RawStatsPayload{
		Trend:  []analytics.RawTrendPoint{{Key: analytics.BucketKey{Value: "2025-03"}, Count: n}},
		Totals: analytics.Totals{"leads": n},
	}
}

func TestCoordinator_StartsIdle(t *testing.T) {
	c := statsfetch.New(statsfetch.Config{Logger: zap.NewNop()})
	if c.State() != statsfetch.Idle {
		t.Errorf("State() = %v, want idle", c.State())
	}
	if _, ok := c.Current(); ok {
		t.Error("Current() should be empty before any publish")
	}
}

func TestCoordinator_TokensIncrease(t *testing.T) {
	c := statsfetch.New(statsfetch.Config{Logger: zap.NewNop()})
	a := c.Issue(analytics.TimeFilter{})
	b := c.Issue(analytics.TimeFilter{})
	if b.Token <= a.Token {
		t.Errorf("tokens not increasing: %d then %d", a.Token, b.Token)
	}
	if c.State() != statsfetch.Fetching {
		t.Errorf("State() = %v, want fetching", c.State())
	}
}

// Responses arrive as 2, 1, 3: token 1 is stale by the time it lands.
func TestCoordinator_StaleResponseSuppressed(t *testing.T) {
	c := statsfetch.New(statsfetch.Config{Logger: zap.NewNop()})

	var published []uint64
	c.Subscribe(func(vm analytics.DashboardViewModel) {
		published = append(published, vm.Token)
	})

	r1 := c.Issue(yearFilter(t, 2023))
	r2 := c.Issue(yearFilter(t, 2024))

	res, err := c.Resolve(r2, payloadWithTotal(2), nil)
	if err != nil || !res.Published {
		t.Fatalf("Resolve(r2) = %+v, %v; want published", res, err)
	}
	if c.State() != statsfetch.Idle {
		t.Errorf("State() after latest response = %v, want idle", c.State())
	}

	r3 := c.Issue(yearFilter(t, 2025))

	res, err = c.Resolve(r1, payloadWithTotal(1), nil)
	if err != nil {
		t.Fatalf("stale Resolve returned error %v", err)
	}
	if res.Published {
		t.Error("stale response for token 1 was published")
	}
	if c.State() != statsfetch.Fetching {
		t.Errorf("stale response changed state to %v", c.State())
	}

	if _, err := c.Resolve(r3, payloadWithTotal(3), nil); err != nil {
		t.Fatalf("Resolve(r3) error = %v", err)
	}

	want := []uint64{r2.Token, r3.Token}
	if len(published) != len(want) || published[0] != want[0] || published[1] != want[1] {
		t.Errorf("published tokens = %v, want %v", published, want)
	}

	vm, ok := c.Current()
	if !ok || vm.Token != r3.Token || vm.Totals["leads"] != 3 {
		t.Errorf("Current() = %+v, %v", vm, ok)
	}
}

func TestCoordinator_OnlyNewestPublishesWhenAllIssuedFirst(t *testing.T) {
	c := statsfetch.New(statsfetch.Config{Logger: zap.NewNop()})

	var published []uint64
	c.Subscribe(func(vm analytics.DashboardViewModel) {
		published = append(published, vm.Token)
	})

	r1 := c.Issue(yearFilter(t, 2023))
	r2 := c.Issue(yearFilter(t, 2024))
	r3 := c.Issue(yearFilter(t, 2025))

	for _, r := range []statsfetch.FetchRequest{r2, r1, r3} {
		if _, err := c.Resolve(r, payloadWithTotal(int64(r.Token)), nil); err != nil {
			t.Fatalf("Resolve(%d) error = %v", r.Token, err)
		}
	}

	if len(published) != 1 || published[0] != r3.Token {
		t.Errorf("published tokens = %v, want only %d", published, r3.Token)
	}
}

func TestCoordinator_CurrentTokenError(t *testing.T) {
	c := statsfetch.New(statsfetch.Config{Logger: zap.NewNop()})
	r1 := c.Issue(yearFilter(t, 2025))
	if _, err := c.Resolve(r1, payloadWithTotal(5), nil); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("backend down")
	r2 := c.Issue(yearFilter(t, 2024))
	res, err := c.Resolve(r2, analytics.RawStatsPayload{}, boom)

	var fe *statsfetch.FetchError
	if !errors.As(err, &fe) || fe.Token != r2.Token {
		t.Fatalf("error = %v, want *FetchError for token %d", err, r2.Token)
	}
	if !errors.Is(err, boom) {
		t.Error("FetchError should unwrap to the provider error")
	}
	if res.Published {
		t.Error("failed fetch must not publish")
	}
	if c.State() != statsfetch.Idle {
		t.Errorf("State() = %v, want idle", c.State())
	}
	// The previous view model stays in place.
	if vm, _ := c.Current(); vm.Token != r1.Token {
		t.Errorf("Current().Token = %d, want %d", vm.Token, r1.Token)
	}
}

func TestCoordinator_StaleErrorIsSilent(t *testing.T) {
	c := statsfetch.New(statsfetch.Config{Logger: zap.NewNop()})
	r1 := c.Issue(yearFilter(t, 2024))
	c.Issue(yearFilter(t, 2025))

	if _, err := c.Resolve(r1, analytics.RawStatsPayload{}, errors.New("late failure")); err != nil {
		t.Errorf("stale error surfaced: %v", err)
	}
}

func TestCoordinator_LabelErrorStillPublishes(t *testing.T) {
	c := statsfetch.New(statsfetch.Config{Logger: zap.NewNop(), LabelPolicy: analytics.DropUnparseable})
	r := c.Issue(analytics.TimeFilter{})
	payload := analytics.RawStatsPayload{Trend: []analytics.RawTrendPoint{
		{Key: analytics.BucketKey{Value: "2025-03"}, Count: 1},
		{Key: analytics.BucketKey{Value: "bogus-key"}, Count: 2},
	}}

	res, err := c.Resolve(r, payload, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Published || !errors.Is(res.LabelErr, analytics.ErrUnparseableBucketKey) {
		t.Errorf("Result = %+v", res)
	}
	if len(res.ViewModel.Trend) != 1 {
		t.Errorf("Trend = %+v, want the bad point dropped", res.ViewModel.Trend)
	}
}

// A slow early fetch finishing after a fast later one must not overwrite it.
func TestCoordinator_SelectConcurrent(t *testing.T) {
	release := make(chan struct{})
	provider := statsfetch.ProviderFunc(func(ctx context.Context, f analytics.TimeFilter) (analytics.RawStatsPayload, error) {
		y, _ := f.Year()
		if y == 2024 {
			<-release
		}
		return payloadWithTotal(int64(y)), nil
	})
	c := statsfetch.New(statsfetch.Config{Provider: provider, Logger: zap.NewNop()})

	f2024 := yearFilter(t, 2024)
	var wg sync.WaitGroup
	var slow statsfetch.Result
	wg.Add(1)
	go func() {
		defer wg.Done()
		slow, _ = c.Select(context.Background(), f2024)
	}()

	// Wait until the slow request has been issued.
	deadline := time.Now().Add(2 * time.Second)
	for c.Latest() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("slow request never issued")
		}
		time.Sleep(time.Millisecond)
	}

	fast, err := c.Select(context.Background(), yearFilter(t, 2025))
	if err != nil || !fast.Published {
		t.Fatalf("fast Select = %+v, %v", fast, err)
	}

	close(release)
	wg.Wait()

	if slow.Published {
		t.Error("slow stale response was published")
	}
	vm, _ := c.Current()
	if vm.Totals["leads"] != 2025 {
		t.Errorf("Current().Totals = %v, want the 2025 payload", vm.Totals)
	}
}

func TestCoordinator_RunKeepsIssueOrder(t *testing.T) {
	provider := statsfetch.ProviderFunc(func(ctx context.Context, f analytics.TimeFilter) (analytics.RawStatsPayload, error) {
		y, _ := f.Year()
		return payloadWithTotal(int64(y)), nil
	})
	c := statsfetch.New(statsfetch.Config{Provider: provider, Logger: zap.NewNop()})

	// Issued in filter-change order, run in reverse.
	reqs := []statsfetch.FetchRequest{
		c.Issue(yearFilter(t, 2001)),
		c.Issue(yearFilter(t, 2002)),
		c.Issue(yearFilter(t, 2003)),
	}
	for i := len(reqs) - 1; i >= 0; i-- {
		if _, err := c.Run(context.Background(), reqs[i]); err != nil {
			t.Fatalf("Run(%d) error = %v", reqs[i].Token, err)
		}
	}

	vm, ok := c.Current()
	if !ok || vm.Totals["leads"] != 2003 {
		t.Errorf("Current() = %+v, want the 2003 dashboard", vm.Totals)
	}
}

func TestCoordinator_RefreshUsesCurrentFilter(t *testing.T) {
	c := statsfetch.New(statsfetch.Config{Logger: zap.NewNop()})

	first := c.Issue(yearFilter(t, 2024))
	refresh := c.Refresh()
	if refresh.Token <= first.Token {
		t.Errorf("Refresh token %d not after %d", refresh.Token, first.Token)
	}
	if refresh.Filter.Key() != "2024" {
		t.Errorf("Refresh filter = %s, want 2024", refresh.Filter)
	}
	if c.State() != statsfetch.Fetching {
		t.Errorf("State() after Refresh = %v", c.State())
	}

	res, err := c.Resolve(first, payloadWithTotal(1), nil)
	if err != nil || res.Published {
		t.Errorf("response superseded by a refresh: %+v, %v", res, err)
	}
}
