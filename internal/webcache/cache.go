// Package webcache fetches the council website and caches the resulting
// documents per key with a fixed TTL. Readers always see a complete entry:
// refreshes build a new entry map and swap it in atomically. When a
// refresh fails the previous entry is served instead.
package webcache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/civic-go/internal/rag"
)

const (
	// SiteKey is the cache key of the council website.
	SiteKey = "council-site"

	// DefaultTTL is how long an entry is served without refreshing.
	DefaultTTL = 6 * time.Hour
)

// Entry is one cached document set. Entries are replaced wholesale.
type Entry struct {
	Documents []rag.Document `json:"documents"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Cache holds one entry per source key.
type Cache struct {
	sources  map[string]Source
	ttl      time.Duration
	entries  atomic.Pointer[map[string]*Entry]
	refresh  sync.Mutex
	now      func() time.Time
	snapshot *Snapshot
	log      *slog.Logger
	metrics  *cacheMetrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithSource registers src under key.
func WithSource(key string, src Source) Option {
	return func(c *Cache) { c.sources[key] = src }
}

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSnapshot persists entries to s and seeds the cache from it.
func WithSnapshot(s *Snapshot) Option {
	return func(c *Cache) { c.snapshot = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRegisterer registers the cache metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Cache) { c.metrics = newCacheMetrics(reg) }
}

// New returns an empty cache, seeded from the snapshot when one is set.
func New(opts ...Option) *Cache {
	c := &Cache{
		sources: make(map[string]Source),
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newCacheMetrics(prometheus.NewRegistry())
	}
	c.log = c.log.With(slog.String("component", "webcache"))

	initial := make(map[string]*Entry)
	if c.snapshot != nil {
		loaded, err := c.snapshot.LoadAll()
		if err != nil {
			c.log.Warn("webcache: snapshot unreadable, starting empty", slog.String("error", err.Error()))
		} else {
			initial = loaded
			c.log.Info("webcache: seeded from snapshot", slog.Int("entries", len(loaded)))
		}
	}
	c.entries.Store(&initial)
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Fetch returns the website documents. See FetchKey.
func (c *Cache) Fetch(ctx context.Context, force bool) ([]rag.Document, error) {
	return c.FetchKey(ctx, SiteKey, force)
}

// FetchKey returns the documents for key, refreshing from its source when
// the entry is missing, older than the TTL, or force is set. Concurrent
// callers wait for a single refresh. If the refresh fails, the previous
// entry is returned regardless of age; only when there is none does
// FetchKey return an error wrapping rag.ErrFetchFailed.
func (c *Cache) FetchKey(ctx context.Context, key string, force bool) ([]rag.Document, error) {
	if !force {
		if e := c.fresh(key); e != nil {
			c.metrics.fetches.WithLabelValues(key, resultHit).Inc()
			return e.Documents, nil
		}
	}

	c.refresh.Lock()
	defer c.refresh.Unlock()

	if !force {
		if e := c.fresh(key); e != nil {
			c.metrics.fetches.WithLabelValues(key, resultHit).Inc()
			return e.Documents, nil
		}
	}

	src, ok := c.sources[key]
	if !ok {
		return nil, fmt.Errorf("webcache: no source registered for %q", key)
	}

	start := time.Now()
	docs, err := src.Scrape(ctx)
	c.metrics.refreshDuration.Observe(time.Since(start).Seconds())
	if err == nil && len(docs) > 0 {
		entry := &Entry{Documents: docs, FetchedAt: c.now()}
		c.store(key, entry)
		c.metrics.fetches.WithLabelValues(key, resultRefresh).Inc()
		c.log.Info("webcache: refreshed", slog.String("key", key), slog.Int("documents", len(docs)))
		return entry.Documents, nil
	}
	if err == nil {
		err = fmt.Errorf("source returned no documents")
	}

	if stale, ok := c.Entry(key); ok {
		c.metrics.fetches.WithLabelValues(key, resultStale).Inc()
		c.log.Warn("webcache: refresh failed, serving stale entry",
			slog.String("key", key),
			slog.Time("fetched_at", stale.FetchedAt),
			slog.String("error", err.Error()),
		)
		return stale.Documents, nil
	}
	c.metrics.fetches.WithLabelValues(key, resultFailed).Inc()
	c.log.Error("webcache: refresh failed with nothing cached", slog.String("key", key), slog.String("error", err.Error()))
	return nil, fmt.Errorf("webcache: %s: %w: %v", key, rag.ErrFetchFailed, err)
}

// Entry returns the current entry for key regardless of age.
func (c *Cache) Entry(key string) (*Entry, bool) {
	e, ok := (*c.entries.Load())[key]
	return e, ok
}

// Keys returns the keys with an entry, sorted.
func (c *Cache) Keys() []string {
	m := *c.entries.Load()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fresh reports whether key has an entry younger than the TTL.
func (c *Cache) Fresh(key string) bool {
	return c.fresh(key) != nil
}

func (c *Cache) fresh(key string) *Entry {
	e, ok := c.Entry(key)
	if !ok || c.now().Sub(e.FetchedAt) >= c.ttl {
		return nil
	}
	return e
}

// store swaps in a copy of the entry map with key replaced. Callers hold
// the refresh lock.
func (c *Cache) store(key string, e *Entry) {
	old := *c.entries.Load()
	next := make(map[string]*Entry, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[key] = e
	c.entries.Store(&next)

	if c.snapshot != nil {
		if err := c.snapshot.Save(key, e); err != nil {
			c.log.Warn("webcache: snapshot write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}
