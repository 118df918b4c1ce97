package feed

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"github.com/jonboulle/clockwork"
)

// JamFetcher reads a source's traffic view.
type JamFetcher interface {
	FetchJams(ctx context.Context, src domain.FeedSource) ([]Jam, error)
}

// CachedTrafficClient wraps a JamFetcher with a per-source cache so dashboard
// clients polling the traffic view share one upstream request per TTL.
type CachedTrafficClient struct {
	inner JamFetcher
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]jamEntry
}

type jamEntry struct {
	jams      []Jam
	fetchedAt time.Time
}

// NewCachedTrafficClient creates a cache decorator. A zero ttl disables
// caching. clock may be nil.
func NewCachedTrafficClient(inner JamFetcher, ttl time.Duration, clock clockwork.Clock) *CachedTrafficClient {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedTrafficClient{
		inner:   inner,
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]jamEntry),
	}
}

func (c *CachedTrafficClient) FetchJams(ctx context.Context, src domain.FeedSource) ([]Jam, error) {
	if jams, ok := c.get(src.ID); ok {
		return jams, nil
	}
	jams, err := c.inner.FetchJams(ctx, src)
	if err != nil {
		return nil, err
	}
	// Only successful fetches are cached so a failing upstream is retried.
	c.put(src.ID, jams)
	return jams, nil
}

func (c *CachedTrafficClient) get(sourceID string) ([]Jam, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sourceID]
	if !ok || c.clock.Since(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.jams, true
}

func (c *CachedTrafficClient) put(sourceID string, jams []Jam) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sourceID] = jamEntry{jams: jams, fetchedAt: c.clock.Now()}
}
