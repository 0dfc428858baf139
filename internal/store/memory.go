// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jcalloway/prefero/internal/prefs"
)

// MemoryStore keeps profiles in process memory. Suitable for tests and
// ephemeral deployments; state is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*prefs.UserProfile
	nowFunc  func() time.Time
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*prefs.UserProfile),
		nowFunc:  time.Now,
	}
}

// Get returns a copy of the stored profile, or a fresh one at version 0.
func (s *MemoryStore) Get(ctx context.Context, userID string) (*prefs.UserProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if stored, ok := s.profiles[userID]; ok {
		return stored.Clone(), nil
	}
	return prefs.NewUserProfile(userID, s.nowFunc()), nil
}

// Put stores the profile if the version check passes.
func (s *MemoryStore) Put(ctx context.Context, profile *prefs.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("profile with user id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := uint64(0)
	if stored, ok := s.profiles[profile.UserID]; ok {
		current = stored.Version
	}
	if profile.Version != current {
		return fmt.Errorf("user %s at version %d, caller has %d: %w",
			profile.UserID, current, profile.Version, prefs.ErrVersionConflict)
	}

	profile.Version = current + 1
	profile.LastUpdated = s.nowFunc()
	s.profiles[profile.UserID] = profile.Clone()
	return nil
}

// Delete removes the profile. Absent profiles are ignored.
func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.profiles, userID)
	return nil
}

// UserIDs lists every stored user.
func (s *MemoryStore) UserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	return ids, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
