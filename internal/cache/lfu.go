// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package cache

import (
	"sync"
	"time"
)

// lfuEntry is a node in one frequency bucket's recency list.
type lfuEntry struct {
	key       string
	value     interface{}
	freq      int
	expiresAt time.Time
	prev      *lfuEntry
	next      *lfuEntry
}

// freqList is the doubly-linked list of entries sharing one frequency,
// with sentinels so list surgery never special-cases the ends.
type freqList struct {
	head *lfuEntry
	tail *lfuEntry
	size int
}

func newFreqList() *freqList {
	fl := &freqList{
		head: &lfuEntry{},
		tail: &lfuEntry{},
	}
	fl.head.next = fl.tail
	fl.tail.prev = fl.head
	return fl
}

func (fl *freqList) addToFront(entry *lfuEntry) {
	entry.prev = fl.head
	entry.next = fl.head.next
	fl.head.next.prev = entry
	fl.head.next = entry
	fl.size++
}

func (fl *freqList) remove(entry *lfuEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	entry.prev = nil
	entry.next = nil
	fl.size--
}

// removeLast pops the least recently used entry at this frequency.
func (fl *freqList) removeLast() *lfuEntry {
	if fl.size == 0 {
		return nil
	}
	entry := fl.tail.prev
	fl.remove(entry)
	return entry
}

func (fl *freqList) isEmpty() bool {
	return fl.size == 0
}

// LFUCache is a bounded, thread-safe least-frequently-used cache with
// TTL expiry and O(1) get, set, and eviction.
//
// Three structures cooperate: keyMap for O(1) lookup, freqMap holding a
// recency list per access frequency, and minFreq pointing at the bucket
// the next eviction comes from. Ties inside a bucket evict the least
// recently used entry.
//
// Against the unbounded TTL Cache, LFU earns its keep when the key
// space is large and skewed: a few hot search queries stay resident
// while one-off queries cycle out.
type LFUCache struct {
	mu sync.RWMutex

	capacity int
	ttl      time.Duration

	keyMap  map[string]*lfuEntry
	freqMap map[int]*freqList
	minFreq int

	hits   int64
	misses int64
}

// NewLFUCache creates an LFU cache holding at most capacity entries,
// each expiring ttl after its last write.
func NewLFUCache(capacity int, ttl time.Duration) *LFUCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &LFUCache{
		capacity: capacity,
		ttl:      ttl,
		keyMap:   make(map[string]*lfuEntry, capacity),
		freqMap:  make(map[int]*freqList),
		minFreq:  0,
	}
}

// Get retrieves a value, bumping its frequency on a hit. Expired
// entries are dropped on the spot and count as misses.
func (c *LFUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.keyMap[key]
	if !exists {
		c.misses++
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		return nil, false
	}

	c.incrementFreq(entry)
	c.hits++

	return entry.value, true
}

// Set stores a value under the default TTL.
func (c *LFUCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with its own TTL, evicting the least
// frequently used entry when the cache is full.
func (c *LFUCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(ttl)

	if entry, exists := c.keyMap[key]; exists {
		entry.value = value
		entry.expiresAt = expiresAt
		c.incrementFreq(entry)
		return
	}

	if len(c.keyMap) >= c.capacity {
		c.evict()
	}

	// New entries start at frequency 1, which is also the new minFreq
	entry := &lfuEntry{
		key:       key,
		value:     value,
		freq:      1,
		expiresAt: expiresAt,
	}

	if c.freqMap[1] == nil {
		c.freqMap[1] = newFreqList()
	}
	c.freqMap[1].addToFront(entry)
	c.keyMap[key] = entry
	c.minFreq = 1
}

// Delete removes a key. Returns true if it was present.
func (c *LFUCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.keyMap[key]; exists {
		c.removeEntry(entry)
		return true
	}
	return false
}

// Contains reports whether the key is live without bumping frequency.
func (c *LFUCache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, exists := c.keyMap[key]; exists {
		return !time.Now().After(entry.expiresAt)
	}
	return false
}

// Len returns the number of entries currently held, expired or not.
func (c *LFUCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keyMap)
}

// Clear drops every entry and resets the frequency structure.
func (c *LFUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keyMap = make(map[string]*lfuEntry, c.capacity)
	c.freqMap = make(map[int]*freqList)
	c.minFreq = 0
}

// Stats returns hit/miss counters and the current size.
func (c *LFUCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.keyMap)
}

// HitRate returns the hit percentage.
func (c *LFUCache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	if total == 0 {
		return 0.0
	}
	return float64(c.hits) / float64(total) * 100.0
}

// GetFrequency returns how often the key has been touched, 0 when
// absent. Exposed for tests and debugging.
func (c *LFUCache) GetFrequency(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, exists := c.keyMap[key]; exists {
		return entry.freq
	}
	return 0
}

// CleanupExpired removes every expired entry and returns how many went.
func (c *LFUCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0

	for key, entry := range c.keyMap {
		if now.After(entry.expiresAt) {
			c.removeEntryUnlocked(key, entry)
			removed++
		}
	}

	return removed
}

// Frequency bookkeeping below assumes the caller holds c.mu.

// incrementFreq moves an entry to the next frequency bucket, advancing
// minFreq when it empties the lowest one.
func (c *LFUCache) incrementFreq(entry *lfuEntry) {
	oldFreq := entry.freq

	if fl, exists := c.freqMap[oldFreq]; exists {
		fl.remove(entry)
		if fl.isEmpty() && c.minFreq == oldFreq {
			c.minFreq++
		}
	}

	entry.freq++
	newFreq := entry.freq

	if c.freqMap[newFreq] == nil {
		c.freqMap[newFreq] = newFreqList()
	}
	c.freqMap[newFreq].addToFront(entry)
}

// evict drops the least recently used entry of the lowest frequency
// bucket.
func (c *LFUCache) evict() {
	fl := c.freqMap[c.minFreq]
	if fl == nil || fl.isEmpty() {
		return
	}

	entry := fl.removeLast()
	if entry != nil {
		delete(c.keyMap, entry.key)
	}
}

func (c *LFUCache) removeEntry(entry *lfuEntry) {
	c.removeEntryUnlocked(entry.key, entry)
}

func (c *LFUCache) removeEntryUnlocked(key string, entry *lfuEntry) {
	if fl, exists := c.freqMap[entry.freq]; exists {
		fl.remove(entry)
	}
	delete(c.keyMap, key)
}
