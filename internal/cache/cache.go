package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fluidspend/internal/core"
	"fluidspend/internal/metrics"
)

// ErrNotFound is returned by a Store when no entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Store persists one opaque entry per key. Save must replace the entry
// atomically: a concurrent Load sees either the old or the new bytes.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Entry is the persisted cache document.
type Entry struct {
	LastUpdated time.Time       `json:"last_updated"`
	Data        json.RawMessage `json:"data"`
}

// SourceCache is the TTL-gated view of a single source's cached dataset.
type SourceCache struct {
	store Store
	key   string
	ttl   time.Duration
	now   func() time.Time
}

// NewSourceCache creates a cache for key whose entries expire after ttl.
func NewSourceCache(store Store, key string, ttl time.Duration) *SourceCache {
	return &SourceCache{
		store: store,
		key:   key,
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (c *SourceCache) WithClock(now func() time.Time) *SourceCache {
	c.now = now
	return c
}

// Key returns the source identity the entry is stored under.
func (c *SourceCache) Key() string { return c.key }

// TTL returns the freshness window.
func (c *SourceCache) TTL() time.Duration { return c.ttl }

// Get returns the cached payload when an entry exists, parses, and is younger
// than the TTL. Every other case is a miss; errors are logged, never returned.
func (c *SourceCache) Get(ctx context.Context) (json.RawMessage, bool) {
	e, ok := c.lookup(ctx)
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// GetInto decodes a fresh payload into v and returns when it was written.
// A payload that does not decode into v counts as a miss.
func (c *SourceCache) GetInto(ctx context.Context, v any) (time.Time, bool) {
	e, ok := c.lookup(ctx)
	if !ok {
		return time.Time{}, false
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		metrics.IncCacheLookup(c.key, metrics.CacheCorrupt)
		slog.WarnContext(ctx, "Ignoring cache payload that does not decode",
			"cache_key", c.key, "error", fmt.Errorf("%w: %v", core.ErrCacheCorrupt, err))
		return time.Time{}, false
	}
	return e.LastUpdated, true
}

func (c *SourceCache) lookup(ctx context.Context) (Entry, bool) {
	e, err := c.load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.IncCacheLookup(c.key, metrics.CacheMiss)
		} else {
			metrics.IncCacheLookup(c.key, metrics.CacheCorrupt)
			slog.WarnContext(ctx, "Ignoring unreadable cache entry", "cache_key", c.key, "error", err)
		}
		return Entry{}, false
	}

	age := c.now().Sub(e.LastUpdated)
	if age < 0 {
		metrics.IncCacheLookup(c.key, metrics.CacheCorrupt)
		slog.WarnContext(ctx, "Ignoring cache entry stamped in the future", "cache_key", c.key, "last_updated", e.LastUpdated)
		return Entry{}, false
	}
	if age >= c.ttl {
		metrics.IncCacheLookup(c.key, metrics.CacheStale)
		slog.DebugContext(ctx, "Cache entry stale", "cache_key", c.key, "age", age, "ttl", c.ttl)
		return Entry{}, false
	}

	metrics.IncCacheLookup(c.key, metrics.CacheHit)
	return e, true
}

// Put overwrites the entry with payload, stamped with the current time.
func (c *SourceCache) Put(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", c.key, err)
	}
	doc, err := json.Marshal(Entry{LastUpdated: c.now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s entry: %w", c.key, err)
	}
	if err := c.store.Save(ctx, c.key, doc); err != nil {
		return fmt.Errorf("save %s entry: %w", c.key, err)
	}
	return nil
}

// Invalidate removes the entry. Removing a missing entry is not an error.
func (c *SourceCache) Invalidate(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete %s entry: %w", c.key, err)
	}
	return nil
}

// LastUpdated reports when the current entry was written, fresh or not.
func (c *SourceCache) LastUpdated(ctx context.Context) (time.Time, bool) {
	e, err := c.load(ctx)
	if err != nil {
		return time.Time{}, false
	}
	return e.LastUpdated, true
}

// CleanExpired deletes the entry if it is stale or unreadable. Returns the
// number of entries removed.
func (c *SourceCache) CleanExpired(ctx context.Context) int {
	e, err := c.load(ctx)
	if errors.Is(err, ErrNotFound) {
		return 0
	}
	if err == nil {
		if age := c.now().Sub(e.LastUpdated); age >= 0 && age < c.ttl {
			return 0
		}
	}
	if err := c.Invalidate(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to remove expired cache entry", "cache_key", c.key, "error", err)
		return 0
	}
	return 1
}

func (c *SourceCache) load(ctx context.Context) (Entry, error) {
	raw, err := c.store.Load(ctx, c.key)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", core.ErrCacheCorrupt, err)
	}
	if e.LastUpdated.IsZero() || len(e.Data) == 0 || string(e.Data) == "null" {
		return Entry{}, fmt.Errorf("%w: missing last_updated or data", core.ErrCacheCorrupt)
	}
	return e, nil
}
