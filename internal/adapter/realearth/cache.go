package realearth

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
)

// TileLayout is the RealEarth timestamp format, always in UTC.
const TileLayout = "20060102_150405"

// RecentWindow is how far back Recent and Refresh look.
const RecentWindow = 2 * time.Hour

// Fetcher lists all timestamps for a product.
type Fetcher interface {
	FetchTimestamps(ctx context.Context, product string) ([]string, error)
}

// CachedTimestamps keeps the last fetched timestamp list per product for a
// fixed TTL and filters it down to the recent window on every read.
type CachedTimestamps struct {
	inner   Fetcher
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	times     []string
	fetchedAt time.Time
}

// NewCachedTimestamps creates a cache decorator around a fetcher.
func NewCachedTimestamps(inner Fetcher, ttl time.Duration, metrics *observability.Metrics) *CachedTimestamps {
	return &CachedTimestamps{
		inner:   inner,
		ttl:     ttl,
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
		entries: make(map[string]cacheEntry),
	}
}

// WithClock replaces the cache's time source.
func (c *CachedTimestamps) WithClock(clock clockwork.Clock) *CachedTimestamps {
	c.clock = clock
	return c
}

// Recent returns the product's timestamps from the last two hours, using the
// cached list while it is younger than the TTL.
func (c *CachedTimestamps) Recent(ctx context.Context, product string) ([]string, error) {
	now := c.clock.Now()

	c.mu.Lock()
	e, ok := c.entries[product]
	c.mu.Unlock()
	if ok && now.Sub(e.fetchedAt) < c.ttl {
		c.metrics.TimestampCache.WithLabelValues("hit").Inc()
		return FilterRecent(e.times, now), nil
	}

	c.metrics.TimestampCache.WithLabelValues("miss").Inc()
	times, err := c.inner.FetchTimestamps(ctx, product)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[product] = cacheEntry{times: times, fetchedAt: now}
	c.mu.Unlock()
	return FilterRecent(times, now), nil
}

// Refresh bypasses the cache entirely. The result is not stored.
func (c *CachedTimestamps) Refresh(ctx context.Context, product string) ([]string, error) {
	times, err := c.inner.FetchTimestamps(ctx, product)
	if err != nil {
		return nil, err
	}
	return FilterRecent(times, c.clock.Now()), nil
}

// FilterRecent keeps timestamps within [now-2h, now]. Unparseable entries
// are dropped. The result is never nil.
func FilterRecent(times []string, now time.Time) []string {
	from := now.Add(-RecentWindow)
	out := []string{}
	for _, ts := range times {
		t, ok := ParseTileTimestamp(ts)
		if !ok || t.Before(from) || t.After(now) {
			continue
		}
		out = append(out, ts)
	}
	return out
}

// ParseTileTimestamp parses a "YYYYMMDD_HHMMSS" timestamp as UTC.
func ParseTileTimestamp(ts string) (time.Time, bool) {
	t, err := time.ParseInLocation(TileLayout, ts, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
