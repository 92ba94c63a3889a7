// Package reportcache keeps the most recently generated report available to
// the HTTP API. Entries expire so a stalled scheduler never serves an
// arbitrarily old report.
package reportcache

import (
	"context"
	"sync"
	"time"

	"ar-io-observer/report"
)

// CurrentKey is the slot holding the latest report.
const CurrentKey = "current"

type Cache interface {
	Set(ctx context.Context, key string, r *report.ObserverReport, ttl time.Duration) error
	Get(ctx context.Context, key string) (*report.ObserverReport, bool, error)
}

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	value     *report.ObserverReport
	expiresAt time.Time
	hasExpiry bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*report.ObserverReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.hasExpiry && c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, r *report.ObserverReport, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{value: r}
	if ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

var _ Cache = (*MemoryCache)(nil)
