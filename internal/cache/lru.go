// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package cache

import (
	"sync"
	"time"
)

// lruEntry is a node in the recency list. The value is the time the key
// was recorded, which doubles as the dedup timestamp.
type lruEntry struct {
	key       string
	value     time.Time
	prev      *lruEntry
	next      *lruEntry
	expiresAt time.Time
}

// LRUCache is a thread-safe least-recently-used set of string keys with
// TTL expiry. It is the exact half of the envelope dedup cache: bounded
// capacity, O(1) add and lookup, and lazy expiration so a key only
// counts as seen inside its window.
//
// A doubly-linked list keeps recency order and a map gives O(1) lookup;
// head.next is the most recently used, tail.prev the least.
type LRUCache struct {
	mu sync.RWMutex

	capacity int
	ttl      time.Duration

	items map[string]*lruEntry

	// Sentinel nodes so insert/remove never special-case the ends.
	head *lruEntry
	tail *lruEntry

	hits   int64
	misses int64
}

// NewLRUCache creates an LRU cache holding at most capacity keys, each
// expiring ttl after it was last recorded.
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c := &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*lruEntry, capacity),
		head:     &lruEntry{},
		tail:     &lruEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get returns when the key was recorded and whether it is still live.
// A hit refreshes recency but not the expiry.
func (c *LRUCache) Get(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[key]; exists {
		if time.Now().After(entry.expiresAt) {
			c.removeEntry(entry)
			c.misses++
			return time.Time{}, false
		}
		c.moveToFront(entry)
		c.hits++
		return entry.value, true
	}

	c.misses++
	return time.Time{}, false
}

// Contains reports whether the key is live without touching recency
// order. The dedup path uses this so checking an envelope never makes
// it look fresher than it is.
func (c *LRUCache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, exists := c.items[key]; exists {
		return !time.Now().After(entry.expiresAt)
	}
	return false
}

// Add records a key, resetting its window if it already exists. The
// least recently used key is evicted when capacity is exceeded.
func (c *LRUCache) Add(key string, value time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if entry, exists := c.items[key]; exists {
		entry.value = value
		entry.expiresAt = expiresAt
		c.moveToFront(entry)
		return
	}

	entry := &lruEntry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	}
	c.addToFront(entry)
	c.items[key] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Remove deletes a key. Returns true if it was present.
func (c *LRUCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[key]; exists {
		c.removeEntry(entry)
		return true
	}
	return false
}

// IsDuplicate reports whether the key is live, recording it when it is
// not. Check and record happen under one lock, so two concurrent calls
// for the same key cannot both see "new".
func (c *LRUCache) IsDuplicate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if entry, exists := c.items[key]; exists {
		if !now.After(entry.expiresAt) {
			c.moveToFront(entry)
			c.hits++
			return true
		}
		// Expired entry counts as never seen
		c.removeEntry(entry)
	}

	entry := &lruEntry{
		key:       key,
		value:     now,
		expiresAt: now.Add(c.ttl),
	}
	c.addToFront(entry)
	c.items[key] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}

	c.misses++
	return false
}

// Len returns the number of keys currently held, expired or not.
func (c *LRUCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear drops every key.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*lruEntry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// CleanupExpired removes every expired key and returns how many went.
func (c *LRUCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0

	// Walk from the tail; the oldest entries expire first.
	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		if now.After(entry.expiresAt) {
			c.removeEntry(entry)
			removed++
		}
		entry = prev
	}

	return removed
}

// Stats returns hit/miss counters and the current size.
func (c *LRUCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.items)
}

// List surgery below assumes the caller holds c.mu.

func (c *LRUCache) addToFront(entry *lruEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *LRUCache) moveToFront(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *LRUCache) removeEntry(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *LRUCache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
