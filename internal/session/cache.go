package session

import (
	"sync"
	"time"
)

// SnapshotCache holds the last remote playback read for a short TTL so that
// the several reads made while handling one event hit the remote once.
// Callers invalidate it at event boundaries and after every mutating call.
type SnapshotCache struct {
	mu       sync.RWMutex
	snapshot *PlaybackSnapshot
	hasData  bool
	cachedAt time.Time
	ttl      time.Duration

	hits   uint64
	misses uint64
}

// NewSnapshotCache creates a cache with the given TTL. A zero TTL disables
// caching.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{ttl: ttl}
}

// Get returns the cached snapshot and whether it is still fresh. A fresh
// entry may hold a nil snapshot, meaning nothing was playing.
func (c *SnapshotCache) Get() (*PlaybackSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasData || time.Since(c.cachedAt) > c.ttl {
		return nil, false
	}
	return c.snapshot, true
}

// Set stores a snapshot, which may be nil.
func (c *SnapshotCache) Set(snapshot *PlaybackSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = snapshot
	c.hasData = true
	c.cachedAt = time.Now()
}

// Invalidate drops the cached entry.
func (c *SnapshotCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = nil
	c.hasData = false
	c.cachedAt = time.Time{}
}

// GetOrFetch returns the cached snapshot if fresh, otherwise calls fetch and
// caches its result. Errors are not cached.
func (c *SnapshotCache) GetOrFetch(fetch func() (*PlaybackSnapshot, error)) (*PlaybackSnapshot, error) {
	if c == nil || c.ttl <= 0 {
		return fetch()
	}

	if snapshot, ok := c.Get(); ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return snapshot, nil
	}

	snapshot, err := fetch()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	c.Set(snapshot)
	return snapshot, nil
}

// CacheStats reports cache state for the device status route.
type CacheStats struct {
	CachedAt time.Time     `json:"cached_at,omitempty"`
	Age      time.Duration `json:"age_ns"`
	TTL      time.Duration `json:"ttl_ns"`
	HasData  bool          `json:"has_data"`
	IsFresh  bool          `json:"is_fresh"`
	Hits     uint64        `json:"hits"`
	Misses   uint64        `json:"misses"`
}

func (c *SnapshotCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		TTL:     c.ttl,
		HasData: c.hasData,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if c.hasData {
		stats.CachedAt = c.cachedAt
		stats.Age = time.Since(c.cachedAt)
		stats.IsFresh = stats.Age <= c.ttl
	}
	return stats
}
