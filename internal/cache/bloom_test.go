// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestBloomFilter_BasicOperations(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	bf.Add("env-001")
	bf.Add("env-002")

	if !bf.Test("env-001") {
		t.Error("Expected env-001 to be found")
	}
	if !bf.Test("env-002") {
		t.Error("Expected env-002 to be found")
	}
}

func TestBloomFilter_NoFalseNegatives(t *testing.T) {
	bf := NewBloomFilter(10000, 0.01)

	items := make([]string, 1000)
	for i := 0; i < 1000; i++ {
		items[i] = fmt.Sprintf("env-%d", i)
		bf.Add(items[i])
	}

	// A bloom filter may lie about presence, never about absence.
	for _, item := range items {
		if !bf.Test(item) {
			t.Errorf("False negative for %s", item)
		}
	}
}

func TestBloomFilter_FalsePositiveRate(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	for i := 0; i < 1000; i++ {
		bf.Add(fmt.Sprintf("env-%d", i))
	}

	// Probe 10000 keys that were never added.
	falsePositives := 0
	for i := 1000; i < 11000; i++ {
		if bf.Test(fmt.Sprintf("env-%d", i)) {
			falsePositives++
		}
	}

	// Target is 1%; allow generous slack since sizing is approximate.
	fpRate := float64(falsePositives) / 10000.0
	if fpRate > 0.05 {
		t.Errorf("False positive rate too high: %.2f%% (expected ~1%%)", fpRate*100)
	}
}

func TestBloomFilter_AddAndTest(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	if bf.AddAndTest("env-001") {
		t.Error("First AddAndTest should report not present")
	}
	if !bf.AddAndTest("env-001") {
		t.Error("Second AddAndTest should report present")
	}
	if bf.AddAndTest("env-002") {
		t.Error("AddAndTest for a new key should report not present")
	}
}

func TestBloomFilter_Clear(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	bf.Add("env-001")
	if !bf.Test("env-001") {
		t.Error("Expected env-001 before Clear")
	}

	bf.Clear()

	if bf.Test("env-001") {
		// A cleared filter has no set bits, so this cannot collide.
		t.Error("Expected env-001 gone after Clear")
	}
	if bf.Count() != 0 {
		t.Errorf("Expected count 0 after Clear, got %d", bf.Count())
	}
}

func TestBloomFilter_FillRatio(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	if fill := bf.ApproximateFillRatio(); fill != 0 {
		t.Errorf("Expected 0 fill ratio initially, got %f", fill)
	}

	for i := 0; i < 500; i++ {
		bf.Add(fmt.Sprintf("env-%d", i))
	}

	if fill := bf.ApproximateFillRatio(); fill <= 0 || fill > 1 {
		t.Errorf("Fill ratio should be in (0,1], got %f", fill)
	}
}

func TestBloomFilter_Concurrent(t *testing.T) {
	bf := NewBloomFilter(10000, 0.01)

	var wg sync.WaitGroup
	numGoroutines := 100
	numOperations := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				key := fmt.Sprintf("env-%d-%d", id, j)
				bf.Add(key)
				bf.Test(key)
			}
		}(i)
	}

	wg.Wait()

	bf.Add("env-final")
	if !bf.Test("env-final") {
		t.Error("Filter should still work after concurrent access")
	}
}

func TestBloomLRU_BasicOperations(t *testing.T) {
	bl := NewBloomLRU(1000, time.Minute, 0.01)

	if bl.IsDuplicate("env-001") {
		t.Error("First sighting should not be a duplicate")
	}
	if !bl.IsDuplicate("env-001") {
		t.Error("Second sighting should be a duplicate")
	}

	if !bl.Contains("env-001") {
		t.Error("Expected env-001 to be contained")
	}
	if bl.Contains("env-999") {
		t.Error("Expected env-999 to not be contained")
	}
}

func TestBloomLRU_Record(t *testing.T) {
	bl := NewBloomLRU(1000, time.Minute, 0.01)

	bl.Record("env-001")

	if !bl.Contains("env-001") {
		t.Error("Expected env-001 contained after Record")
	}
	if !bl.IsDuplicate("env-001") {
		t.Error("Expected env-001 to be a duplicate after Record")
	}
}

func TestBloomLRU_Expiration(t *testing.T) {
	bl := NewBloomLRU(1000, 50*time.Millisecond, 0.01)

	bl.Record("env-001")

	if !bl.IsDuplicate("env-001") {
		t.Error("Should be a duplicate inside the window")
	}

	time.Sleep(60 * time.Millisecond)

	// The bloom half still has the key; the expired LRU half wins.
	if bl.IsDuplicate("env-001") {
		t.Error("Should not be a duplicate after the window")
	}
}

func TestBloomLRU_ContainsAfterExpiry(t *testing.T) {
	bl := NewBloomLRU(1000, 50*time.Millisecond, 0.01)

	bl.Record("env-001")
	time.Sleep(60 * time.Millisecond)

	if bl.Contains("env-001") {
		t.Error("Contains should report false once the window has passed")
	}
}

func TestBloomLRU_Stats(t *testing.T) {
	bl := NewBloomLRU(1000, time.Minute, 0.01)

	// Three fresh keys take the fast path.
	bl.IsDuplicate("env-a")
	bl.IsDuplicate("env-b")
	bl.IsDuplicate("env-c")

	// A repeat forces the exact check.
	bl.IsDuplicate("env-a")

	bloomNeg, lruChecks, dups, size := bl.Stats()

	if bloomNeg != 3 {
		t.Errorf("Expected 3 bloom negatives, got %d", bloomNeg)
	}
	if lruChecks != 1 {
		t.Errorf("Expected 1 LRU check, got %d", lruChecks)
	}
	if dups != 1 {
		t.Errorf("Expected 1 duplicate, got %d", dups)
	}
	if size != 3 {
		t.Errorf("Expected size 3, got %d", size)
	}
}

func TestBloomLRU_Clear(t *testing.T) {
	bl := NewBloomLRU(1000, time.Minute, 0.01)

	bl.Record("env-001")
	bl.Record("env-002")

	bl.Clear()

	if bl.Len() != 0 {
		t.Errorf("Expected len 0 after Clear, got %d", bl.Len())
	}
	if bl.IsDuplicate("env-001") {
		t.Error("Should not be a duplicate after Clear")
	}
}

func BenchmarkBloomFilter_Add(b *testing.B) {
	bf := NewBloomFilter(100000, 0.01)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bf.Add(fmt.Sprintf("env-%d", i))
	}
}

func BenchmarkBloomFilter_Test(b *testing.B) {
	bf := NewBloomFilter(100000, 0.01)

	for i := 0; i < 10000; i++ {
		bf.Add(fmt.Sprintf("env-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bf.Test(fmt.Sprintf("env-%d", i%10000))
	}
}

func BenchmarkBloomLRU_IsDuplicate(b *testing.B) {
	bl := NewBloomLRU(100000, time.Minute, 0.01)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bl.IsDuplicate(fmt.Sprintf("env-%d", i%10000))
	}
}

func BenchmarkBloomLRU_FastPath(b *testing.B) {
	bl := NewBloomLRU(100000, time.Minute, 0.01)

	// Unique keys every iteration keep the filter answering "new".
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bl.IsDuplicate(fmt.Sprintf("env-unique-%d", i))
	}
}
