// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

// BloomFilter is a probabilistic set membership structure. It answers
// "definitely not present" exactly and "present" only probably, in O(1)
// per operation with roughly 10 bits per key at a 1% false positive
// rate. Keys cannot be removed.
//
// The dedup path uses it as a negative shortcut in front of the exact
// LRU check:
//
//	if !bloom.Test(key) {
//	    // definitely a new envelope
//	    return false
//	}
//	// maybe seen; the LRU decides
//	return lru.Contains(key)
type BloomFilter struct {
	mu       sync.RWMutex
	bits     []uint64
	size     uint64 // number of bits
	hashFns  int
	count    int // keys added, duplicates included
	capacity int
}

// NewBloomFilter sizes a filter for expectedItems keys at the given
// false positive rate. NewBloomFilter(10000, 0.01) spends ~12KB for a
// 1-in-100 maybe.
func NewBloomFilter(expectedItems int, falsePositiveRate float64) *BloomFilter {
	if expectedItems <= 0 {
		expectedItems = 10000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	// Standard sizing: m = -n*ln(p)/ln(2)^2 bits, k = (m/n)*ln(2) hashes.
	ln2 := 0.693147
	ln2Squared := ln2 * ln2
	lnP := approximateLn(falsePositiveRate)

	m := int(-float64(expectedItems) * lnP / ln2Squared)
	if m < 64 {
		m = 64
	}

	k := int(float64(m) / float64(expectedItems) * ln2)
	if k < 1 {
		k = 1
	}
	if k > 10 {
		k = 10
	}

	// Round up to whole words
	words := (m + 63) / 64

	return &BloomFilter{
		bits:     make([]uint64, words),
		size:     uint64(words * 64),
		hashFns:  k,
		capacity: expectedItems,
	}
}

// Add inserts a key.
func (bf *BloomFilter) Add(key string) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	for _, h := range bf.getHashes(key) {
		idx := h % bf.size
		bf.bits[idx/64] |= 1 << (idx % 64)
	}
	bf.count++
}

// Test reports whether the key might be present. False means definitely
// not; true means verify against an exact source.
func (bf *BloomFilter) Test(key string) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	for _, h := range bf.getHashes(key) {
		idx := h % bf.size
		if bf.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// AddAndTest inserts a key and reports whether it was possibly present
// already, under a single lock acquisition.
func (bf *BloomFilter) AddAndTest(key string) bool {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	hashes := bf.getHashes(key)

	allSet := true
	for _, h := range hashes {
		idx := h % bf.size
		if bf.bits[idx/64]&(1<<(idx%64)) == 0 {
			allSet = false
			break
		}
	}

	for _, h := range hashes {
		idx := h % bf.size
		bf.bits[idx/64] |= 1 << (idx % 64)
	}
	bf.count++

	return allSet
}

// Clear resets the filter to empty.
func (bf *BloomFilter) Clear() {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	for i := range bf.bits {
		bf.bits[i] = 0
	}
	bf.count = 0
}

// Count returns how many Add calls the filter has absorbed.
func (bf *BloomFilter) Count() int {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	return bf.count
}

// Capacity returns the expected key count the filter was sized for.
func (bf *BloomFilter) Capacity() int {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	return bf.capacity
}

// ApproximateFillRatio returns the fraction of set bits. Past ~0.5 the
// false positive rate climbs beyond the configured target.
func (bf *BloomFilter) ApproximateFillRatio() float64 {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	setBits := 0
	for _, word := range bf.bits {
		setBits += popcount(word)
	}
	return float64(setBits) / float64(bf.size)
}

// getHashes derives hashFns hash values by double hashing:
// h(i) = h1 + i*h2, cheaper than k independent functions.
func (bf *BloomFilter) getHashes(key string) []uint64 {
	h1 := fnv.New64a()
	h1.Write([]byte(key))
	hash1 := h1.Sum64()

	h2 := fnv.New64()
	h2.Write([]byte(key))
	h2.Write([]byte{0xff}) // salt so the two hashes differ on equal input
	hash2 := h2.Sum64()

	hashes := make([]uint64, bf.hashFns)
	for i := 0; i < bf.hashFns; i++ {
		hashes[i] = hash1 + uint64(i)*hash2
	}
	return hashes
}

// popcount counts set bits, Kernighan style.
func popcount(x uint64) int {
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}

// approximateLn looks up ln for the handful of false positive rates
// anyone actually configures, avoiding a math import for sizing.
func approximateLn(x float64) float64 {
	switch {
	case x >= 0.1:
		return -2.303 // ln(0.1)
	case x >= 0.05:
		return -2.996 // ln(0.05)
	case x >= 0.01:
		return -4.605 // ln(0.01)
	case x >= 0.005:
		return -5.298 // ln(0.005)
	case x >= 0.001:
		return -6.908 // ln(0.001)
	default:
		return -9.210 // ln(0.0001)
	}
}

// BloomLRU is the envelope dedup cache: a Bloom filter in front of an
// exact LRU. The filter short-circuits the common case of a never-seen
// envelope ID; only "maybe" answers pay for the LRU lock. Because the
// LRU is authoritative, a Bloom false positive costs a lookup, never a
// wrongly skipped envelope.
//
// Memory is bounded by the LRU capacity plus the filter bits. The
// filter itself cannot expire keys, so after heavy turnover Contains
// takes the slow path more often; dedup answers stay exact throughout.
type BloomLRU struct {
	bloom *BloomFilter
	lru   *LRUCache
	mu    sync.RWMutex

	bloomNegatives int64 // fast-path "definitely new" answers
	lruChecks      int64 // answers that needed the LRU
	duplicates     int64 // confirmed duplicates
}

// NewBloomLRU creates a dedup cache remembering up to capacity keys for
// ttl each, with the given Bloom false positive rate.
func NewBloomLRU(capacity int, ttl time.Duration, falsePositiveRate float64) *BloomLRU {
	return &BloomLRU{
		bloom: NewBloomFilter(capacity, falsePositiveRate),
		lru:   NewLRUCache(capacity, ttl),
	}
}

// IsDuplicate reports whether the key was seen inside its window and
// records it when it was not.
func (bl *BloomLRU) IsDuplicate(key string) bool {
	if !bl.bloom.Test(key) {
		bl.mu.Lock()
		bl.bloomNegatives++
		bl.mu.Unlock()

		bl.bloom.Add(key)
		bl.lru.Add(key, time.Now())
		return false
	}

	bl.mu.Lock()
	bl.lruChecks++
	bl.mu.Unlock()

	if bl.lru.IsDuplicate(key) {
		bl.mu.Lock()
		bl.duplicates++
		bl.mu.Unlock()
		return true
	}

	// Expired or a Bloom false positive; re-add so the filter stays
	// consistent with the LRU.
	bl.bloom.Add(key)
	return false
}

// Record marks a key as seen without answering anything. The ingest
// consumer calls this only after a turn fully applies, so an envelope
// that was nacked never poisons its own redelivery.
func (bl *BloomLRU) Record(key string) {
	bl.bloom.Add(key)
	bl.lru.Add(key, time.Now())
}

// Contains reports whether the key is live without modifying anything.
func (bl *BloomLRU) Contains(key string) bool {
	if !bl.bloom.Test(key) {
		return false
	}
	return bl.lru.Contains(key)
}

// CleanupExpired drops expired LRU entries. The Bloom filter keeps its
// bits; it only ever over-approximates.
func (bl *BloomLRU) CleanupExpired() int {
	return bl.lru.CleanupExpired()
}

// Clear resets both halves and the counters.
func (bl *BloomLRU) Clear() {
	bl.bloom.Clear()
	bl.lru.Clear()

	bl.mu.Lock()
	bl.bloomNegatives = 0
	bl.lruChecks = 0
	bl.duplicates = 0
	bl.mu.Unlock()
}

// Stats returns fast-path, slow-path, and duplicate counts plus the
// current LRU size.
func (bl *BloomLRU) Stats() (bloomNegatives, lruChecks, duplicates int64, lruSize int) {
	bl.mu.RLock()
	defer bl.mu.RUnlock()

	return bl.bloomNegatives, bl.lruChecks, bl.duplicates, bl.lru.Len()
}

// Len returns the number of live-or-expired keys in the LRU half.
func (bl *BloomLRU) Len() int {
	return bl.lru.Len()
}
