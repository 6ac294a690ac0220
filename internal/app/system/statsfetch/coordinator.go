// Package statsfetch orchestrates dashboard fetches: every filter change gets
// a new request token, and only the response carrying the latest token may
// replace the published view model.
package statsfetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/dalemusser/stratalead/internal/domain/analytics"
	"go.uber.org/zap"
)

// Provider returns pre-aggregated counters for a filter. Implementations
// must be safe for concurrent use and own their transport timeouts.
type Provider interface {
	Fetch(ctx context.Context, filter analytics.TimeFilter) (analytics.RawStatsPayload, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, filter analytics.TimeFilter) (analytics.RawStatsPayload, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context, filter analytics.TimeFilter) (analytics.RawStatsPayload, error) {
	return f(ctx, filter)
}

// State is the coordinator's fetch state.
type State int

const (
	Idle State = iota
	Fetching
)

func (s State) String() string {
	if s == Fetching {
		return "fetching"
	}
	return "idle"
}

// FetchRequest identifies one issued fetch.
type FetchRequest struct {
	Token  uint64
	Filter analytics.TimeFilter
}

// FetchError wraps a provider failure for the current token.
type FetchError struct {
	Token  uint64
	Filter analytics.TimeFilter
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("stats fetch %d for %s: %v", e.Token, e.Filter, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Result describes what happened to a resolved fetch.
type Result struct {
	Token     uint64
	Published bool // false when the response was stale and discarded
	ViewModel analytics.DashboardViewModel

	// LabelErr lists bucket keys that could not be labelled. The view model
	// was still published, with those points handled per label policy.
	LabelErr error
}

// Config configures a Coordinator.
type Config struct {
	Provider    Provider
	Logger      *zap.Logger
	LabelPolicy analytics.LabelPolicy
}

// Coordinator is the single owner of the current filter, the latest token
// and the published view model. All mutation happens under mu, so the
// token comparison and the publish are one critical section.
type Coordinator struct {
	provider Provider
	logger   *zap.Logger
	policy   analytics.LabelPolicy

	mu          sync.Mutex
	latest      uint64
	state       State
	filter      analytics.TimeFilter
	current     *analytics.DashboardViewModel
	subscribers []func(analytics.DashboardViewModel)
}

// New creates a Coordinator in the Idle state.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		provider: cfg.Provider,
		logger:   logger,
		policy:   cfg.LabelPolicy,
	}
}

// Subscribe registers fn to receive every published view model. fn runs
// while the coordinator holds its lock, so pushes arrive in publish order;
// it must not block or call back into the coordinator.
func (c *Coordinator) Subscribe(fn func(analytics.DashboardViewModel)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Issue records a filter change and returns the request to fetch.
func (c *Coordinator) Issue(filter analytics.TimeFilter) FetchRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest++
	c.state = Fetching
	c.filter = filter
	return FetchRequest{Token: c.latest, Filter: filter}
}

// Resolve applies a provider response. Responses for any token but the
// latest are dropped without error. A provider error for the latest token
// returns a *FetchError and publishes nothing.
func (c *Coordinator) Resolve(req FetchRequest, payload analytics.RawStatsPayload, fetchErr error) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.Token != c.latest {
		c.logger.Debug("discarding stale stats response",
			zap.Uint64("token", req.Token),
			zap.Uint64("latest", c.latest),
			zap.String("filter", req.Filter.Key()))
		return Result{Token: req.Token}, nil
	}

	c.state = Idle

	if fetchErr != nil {
		return Result{Token: req.Token}, &FetchError{Token: req.Token, Filter: req.Filter, Err: fetchErr}
	}

	vm, labelErr := analytics.BuildViewModel(req.Filter, payload, c.policy)
	vm.Token = req.Token
	if labelErr != nil {
		c.logger.Warn("stats response contains unparseable bucket keys",
			zap.Uint64("token", req.Token),
			zap.String("filter", req.Filter.Key()),
			zap.Error(labelErr))
	}

	c.current = &vm
	for _, fn := range c.subscribers {
		fn(vm)
	}

	return Result{Token: req.Token, Published: true, ViewModel: vm, LabelErr: labelErr}, nil
}

// Refresh issues a new request for the current filter. Reading the filter
// and taking the token happen under one lock, so a refresh can never
// overtake a filter change issued concurrently.
func (c *Coordinator) Refresh() FetchRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest++
	c.state = Fetching
	return FetchRequest{Token: c.latest, Filter: c.filter}
}

// Run fetches an issued request from the provider and resolves it. Callers
// that fetch asynchronously must Issue on the goroutine that observes
// filter changes and hand the request to Run, so tokens follow the order
// of the changes rather than goroutine scheduling.
// The coordinator does not retry failed fetches.
func (c *Coordinator) Run(ctx context.Context, req FetchRequest) (Result, error) {
	payload, err := c.provider.Fetch(ctx, req.Filter)
	return c.Resolve(req, payload, err)
}

// Select issues a fetch for filter and runs it synchronously.
func (c *Coordinator) Select(ctx context.Context, filter analytics.TimeFilter) (Result, error) {
	return c.Run(ctx, c.Issue(filter))
}

// State returns the current fetch state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Latest returns the most recently issued token.
func (c *Coordinator) Latest() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Filter returns the filter of the latest issued request.
func (c *Coordinator) Filter() analytics.TimeFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Current returns the published view model, if any.
func (c *Coordinator) Current() (analytics.DashboardViewModel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return analytics.DashboardViewModel{}, false
	}
	return *c.current, true
}
