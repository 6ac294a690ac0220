// internal/app/system/statsclient/client.go
package statsclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/stratalead/internal/domain/analytics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout          = 10 * time.Second
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
	maxBodyBytes            = 4 << 20
)

var (
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("stats backend unavailable")

	// ErrMalformedPayload is returned when the backend body is not a stats payload.
	ErrMalformedPayload = errors.New("malformed stats payload")
)

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stats backend returned %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string // sent as a bearer token when set

	// Timeout bounds a single backend request. Zero means 10s.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. OpenTimeout is how long it stays open before probing again.
	FailureThreshold uint32
	OpenTimeout      time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client fetches dashboard payloads from a remote stats endpoint.
//
// Identical concurrent requests are collapsed into one backend call, and
// repeated failures open a circuit breaker so the dashboard fails fast
// while the backend is down.
type Client struct {
	base    *url.URL
	token   string
	timeout time.Duration
	hc      *http.Client
	logger  *zap.Logger

	cb *gobreaker.CircuitBreaker
	sf singleflight.Group
}

// New creates a Client. BaseURL must be an absolute http(s) URL.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse stats base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("stats base url must be absolute http(s): %q", cfg.BaseURL)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	c := &Client{
		base:    base,
		token:   cfg.Token,
		timeout: timeout,
		hc:      hc,
		logger:  logger,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "stats-backend",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A 4xx is our request's fault, not the backend's health.
			var se *StatusError
			if errors.As(err, &se) && se.StatusCode < 500 {
				return true
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("stats backend breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c, nil
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

// Fetch returns the payload for filter.
func (c *Client) Fetch(ctx context.Context, filter analytics.TimeFilter) (analytics.RawStatsPayload, error) {
	ch := c.sf.DoChan(filter.Key(), func() (any, error) {
		return c.cb.Execute(func() (any, error) {
			// Detached from any one caller; collapsed callers share the result.
			reqCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
			defer cancel()
			return c.fetch(reqCtx, filter)
		})
	})

	select {
	case <-ctx.Done():
		return analytics.RawStatsPayload{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, gobreaker.ErrOpenState) || errors.Is(res.Err, gobreaker.ErrTooManyRequests) {
				return analytics.RawStatsPayload{}, fmt.Errorf("%w: %v", ErrUnavailable, res.Err)
			}
			return analytics.RawStatsPayload{}, res.Err
		}
		return res.Val.(analytics.RawStatsPayload), nil
	}
}

func (c *Client) statsURL(filter analytics.TimeFilter) string {
	u := *c.base
	u.Path = u.Path + "/stats"
	q := url.Values{}
	if y, ok := filter.Year(); ok {
		q.Set("year", strconv.Itoa(y))
	}
	if m, ok := filter.Month(); ok {
		q.Set("month", strconv.Itoa(m))
	}
	if d, ok := filter.Day(); ok {
		q.Set("day", strconv.Itoa(d))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetch(ctx context.Context, filter analytics.TimeFilter) (analytics.RawStatsPayload, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statsURL(filter), nil)
	if err != nil {
		return analytics.RawStatsPayload{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Warn("stats backend request failed",
			zap.String("filter", filter.Key()),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return analytics.RawStatsPayload{}, fmt.Errorf("stats backend request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return analytics.RawStatsPayload{}, fmt.Errorf("read stats body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		c.logger.Warn("stats backend returned error status",
			zap.String("filter", filter.Key()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("took", time.Since(start)))
		return analytics.RawStatsPayload{}, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	payload, err := ParsePayload(body)
	if err != nil {
		return analytics.RawStatsPayload{}, err
	}
	c.logger.Debug("stats fetched",
		zap.String("filter", filter.Key()),
		zap.Int("points", len(payload.Trend)),
		zap.Duration("took", time.Since(start)))
	return payload, nil
}
