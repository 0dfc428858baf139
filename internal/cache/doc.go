// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

/*
Package cache provides thread-safe in-memory caching with TTL support.

The API layer puts it in front of read-heavy endpoints whose answers
change slowly relative to how often they are asked: catalog search while
a shopper browses a category, and interaction sentiment aggregates. The
cache cuts repeated DuckDB queries without any external service.

# Overview

The cache provides:
  - Thread-safe concurrent access (sync.RWMutex)
  - Time-to-live expiration, checked lazily on Get
  - A background sweep every 5 minutes for entries nobody re-reads
  - Hit/miss/eviction counters for the metrics endpoint

# Keys

GenerateKey hashes the full parameter struct so every distinct query
gets its own entry and equal queries share one:

	key := cache.GenerateKey("products:search", params)
	if cached, ok := h.cache.Get(key); ok {
	    metrics.RecordCacheHit("search")
	    resp.Success(cached)
	    return
	}
	metrics.RecordCacheMiss("search")
	results, err := h.db.SearchProducts(ctx, params)
	...
	h.cache.Set(key, results)

# Invalidation

Catalog writes call Clear rather than chasing individual keys: a product
upsert can change any number of search results, and a full invalidation
after the rare write is cheaper than being wrong. Session and profile
state is never cached here; those reads go straight to the store so a
turn always sees its own writes.

# Choosing a strategy

Cacher abstracts the replacement policy. New (TTL, unbounded) is the
default and fits search traffic, where a shopper's queries cluster over
a few minutes and then stop mattering. NewLFU bounds memory and keeps
the hottest entries when the key space is large and skewed.

The package also houses the envelope deduplication structures the broker
consumer uses: an exact LRU window (LRUCache) and the bloom-fronted
variant (BloomLRU) that answers the common "never seen" case without
touching the LRU lock.
*/
package cache
