package github

import (
	"sync"
	"time"
)

// repoCache caches base-repo listings (PRs, issues, comments) within a
// run so that 200 learners sharing one base repository cost one fetch,
// not 200. Entries expire after the configured TTL, which keeps a slow
// backfill from serving stale data across day boundaries.
type repoCache struct {
	entries map[string]repoCacheEntry
	mu      sync.RWMutex
	ttl     time.Duration
}

type repoCacheEntry struct {
	value      any
	expiration time.Time
}

func newRepoCache(ttl time.Duration) *repoCache {
	return &repoCache{
		entries: make(map[string]repoCacheEntry),
		ttl:     ttl,
	}
}

func (c *repoCache) get(key string) (any, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()
	if !exists || time.Now().After(entry.expiration) {
		return nil, false
	}
	return entry.value, true
}

func (c *repoCache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = repoCacheEntry{
		value:      value,
		expiration: time.Now().Add(c.ttl),
	}
}
