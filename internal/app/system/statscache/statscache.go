// internal/app/system/statscache/statscache.go
package statscache

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/stratalead/internal/app/system/statsfetch"
	"github.com/dalemusser/stratalead/internal/domain/analytics"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Provider caches payloads of an inner provider per filter for a fixed TTL.
// Failed fetches are not cached.
type Provider struct {
	inner  statsfetch.Provider
	cache  *gocache.Cache
	logger *zap.Logger

	// gen counts invalidations. A fetch only stores its payload if no
	// invalidation happened while it was in flight.
	mu  sync.Mutex
	gen uint64
}

// Wrap returns inner decorated with a TTL cache. A ttl of zero or less
// disables caching and returns inner unchanged.
func Wrap(inner statsfetch.Provider, ttl time.Duration, logger *zap.Logger) statsfetch.Provider {
	if ttl <= 0 {
		return inner
	}
	return New(inner, ttl, logger)
}

// New creates a caching Provider.
func New(inner statsfetch.Provider, ttl time.Duration, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		inner:  inner,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Fetch returns a cached payload for filter, or fetches and stores one.
func (p *Provider) Fetch(ctx context.Context, filter analytics.TimeFilter) (analytics.RawStatsPayload, error) {
	key := filter.Key()
	if v, ok := p.cache.Get(key); ok {
		if payload, ok := v.(analytics.RawStatsPayload); ok {
			p.logger.Debug("stats cache hit", zap.String("filter", key))
			return payload, nil
		}
	}

	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	payload, err := p.inner.Fetch(ctx, filter)
	if err != nil {
		return payload, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		p.logger.Debug("stats cache invalidated during fetch, not storing", zap.String("filter", key))
		return payload, nil
	}
	p.cache.SetDefault(key, payload)
	return payload, nil
}

// Invalidate drops every cached payload. Writers call it after recording
// events so the next dashboard read sees them; fetches already in flight
// will not repopulate the cache.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.cache.Flush()
}

// Len returns the number of cached payloads, expired ones included until
// the janitor runs.
func (p *Provider) Len() int {
	return p.cache.ItemCount()
}
