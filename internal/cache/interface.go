// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package cache

import "time"

// Cacher abstracts the replacement policy so a handler can swap the
// unbounded TTL cache for the bounded LFU one without touching call
// sites:
//
//	var c cache.Cacher = cache.New(5 * time.Minute)
//	// or, bounded and frequency-aware:
//	var c cache.Cacher = cache.NewLFU(10000, 5*time.Minute)
//
//	c.Set(key, results)
//	if v, ok := c.Get(key); ok { ... }
type Cacher interface {
	// Get retrieves a value. Returns false for missing or expired keys.
	Get(key string) (interface{}, bool)

	// Set stores a value under the default TTL.
	Set(key string, value interface{})

	// SetWithTTL stores a value with its own TTL.
	SetWithTTL(key string, value interface{}, ttl time.Duration)

	// Delete removes a single key.
	Delete(key string)

	// Clear removes every entry.
	Clear()

	// GetStats returns cache counters.
	GetStats() Stats

	// HitRate returns the hit percentage.
	HitRate() float64
}

// NewLFU returns a bounded least-frequently-used cache behind the
// Cacher interface. Prefer it over New when the key space is large and
// skewed: search traffic where a few hot queries dominate keeps its
// entries while one-off queries age out.
func NewLFU(capacity int, ttl time.Duration) Cacher {
	return &lfuCacheAdapter{LFUCache: NewLFUCache(capacity, ttl)}
}

// lfuCacheAdapter papers over the signature differences between
// LFUCache and Cacher (Delete returns bool, Stats is positional).
type lfuCacheAdapter struct {
	*LFUCache
}

func (a *lfuCacheAdapter) Delete(key string) {
	a.LFUCache.Delete(key)
}

func (a *lfuCacheAdapter) GetStats() Stats {
	hits, misses, size := a.Stats()
	return Stats{
		Hits:      hits,
		Misses:    misses,
		TotalKeys: int64(size),
	}
}

var (
	_ Cacher = (*Cache)(nil)
	_ Cacher = (*lfuCacheAdapter)(nil)
)
