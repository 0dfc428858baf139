// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package journal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. Suitable for tests and
// ephemeral deployments; events are lost on restart.
type MemoryStore struct {
	events []Event
	mu     sync.RWMutex
	maxLen int
}

// NewMemoryStore creates a new in-memory journal store holding at most
// maxLen events.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		events: make([]Event, 0, maxLen),
		maxLen: maxLen,
	}
}

// Save persists one event, evicting the oldest tenth when full.
func (s *MemoryStore) Save(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.maxLen {
		removeCount := s.maxLen / 10
		if removeCount < 1 {
			removeCount = 1
		}
		s.events = s.events[removeCount:]
	}

	s.events = append(s.events, *event)
	return nil
}

// Get retrieves an event by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.events {
		if s.events[i].ID == id {
			event := s.events[i]
			return &event, nil
		}
	}
	return nil, fmt.Errorf("event not found: %s", id)
}

// Query retrieves events matching the filter, newest first.
func (s *MemoryStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Event
	skipped := 0

	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]
		if !matchesFilter(&event, &filter) {
			continue
		}
		if filter.Offset > 0 && skipped < filter.Offset {
			skipped++
			continue
		}

		results = append(results, event)

		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}

	return results, nil
}

// matchesFilter returns true if the event matches all filter criteria.
//
//nolint:gocyclo // complexity inherent to multi-criteria filter matching
func matchesFilter(event *Event, filter *QueryFilter) bool {
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.UserID != "" && event.UserID != filter.UserID {
		return false
	}
	if filter.SessionID != "" && event.SessionID != filter.SessionID {
		return false
	}
	if filter.Category != "" && event.Category != filter.Category {
		return false
	}
	if filter.Attribute != "" && event.Attribute != filter.Attribute {
		return false
	}

	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}

	if filter.SearchText != "" {
		searchLower := strings.ToLower(filter.SearchText)
		if !strings.Contains(strings.ToLower(event.Description), searchLower) &&
			!strings.Contains(strings.ToLower(event.Utterance), searchLower) {
			return false
		}
	}

	return true
}

// Count returns the number of events matching the filter.
func (s *MemoryStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.events {
		if matchesFilter(&s.events[i], &filter) {
			count++
		}
	}
	return count, nil
}

// Delete removes events older than the given time.
func (s *MemoryStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []Event
	var deleted int64

	for idx := range s.events {
		if s.events[idx].Timestamp.Before(olderThan) {
			deleted++
		} else {
			kept = append(kept, s.events[idx])
		}
	}

	s.events = kept
	return deleted, nil
}

// GetStats summarizes the journal.
func (s *MemoryStore) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		TotalEvents:      int64(len(s.events)),
		EventsByType:     make(map[string]int64),
		EventsByCategory: make(map[string]int64),
	}

	for idx := range s.events {
		event := &s.events[idx]
		stats.EventsByType[string(event.Type)]++
		if event.Category != "" {
			stats.EventsByCategory[event.Category]++
		}

		if stats.OldestEvent == nil || event.Timestamp.Before(*stats.OldestEvent) {
			t := event.Timestamp
			stats.OldestEvent = &t
		}
		if stats.NewestEvent == nil || event.Timestamp.After(*stats.NewestEvent) {
			t := event.Timestamp
			stats.NewestEvent = &t
		}
	}

	return stats, nil
}

// Clear removes all events (for testing).
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
