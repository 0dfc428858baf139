// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package store persists user preference profiles with optimistic
// concurrency control.
//
// # Versioning
//
// Every profile carries a monotonically increasing version. Get returns an
// isolated copy; Put accepts the copy back only if the stored version still
// matches the version that was read, otherwise it fails with
// prefs.ErrVersionConflict. Update wraps the read-modify-write cycle with a
// bounded retry so concurrent turns against the same user converge without
// losing writes.
//
// # Backends
//
// Two implementations exist: a Badger-backed store for production and an
// in-memory store for tests and ephemeral deployments. Both apply identical
// version semantics.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/prefs"
)

// Config holds store settings.
type Config struct {
	// Path is the Badger data directory.
	Path string

	// SyncWrites makes Badger fsync every write.
	SyncWrites bool

	// RetryAttempts bounds Update retries on version conflicts.
	RetryAttempts int

	// GCInterval is the Badger value log GC cadence.
	GCInterval time.Duration
}

// DefaultConfig returns production store defaults.
func DefaultConfig() Config {
	return Config{
		Path:          "/data/profiles",
		RetryAttempts: 3,
		GCInterval:    10 * time.Minute,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.RetryAttempts)
	}
	return nil
}

// Store is the profile persistence interface.
type Store interface {
	// Get returns an isolated copy of the user's profile. A missing profile
	// yields a fresh empty one at version 0; nothing is persisted until the
	// first Put.
	Get(ctx context.Context, userID string) (*prefs.UserProfile, error)

	// Put persists the profile if the stored version still matches
	// profile.Version, then advances profile.Version to the stored value.
	// A mismatch returns prefs.ErrVersionConflict and stores nothing.
	Put(ctx context.Context, profile *prefs.UserProfile) error

	// Delete removes the user's profile. Deleting an absent profile is not
	// an error.
	Delete(ctx context.Context, userID string) error

	// UserIDs lists every user with a stored profile.
	UserIDs(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// Update runs fn against the user's profile inside a read-modify-write
// cycle, retrying on version conflicts up to attempts times. fn receives an
// isolated copy and may mutate it freely; returning an error aborts without
// writing. The persisted profile is returned.
func Update(ctx context.Context, s Store, userID string, attempts int, fn func(*prefs.UserProfile) error) (*prefs.UserProfile, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		profile, err := s.Get(ctx, userID)
		if err != nil {
			return nil, err
		}

		if err := fn(profile); err != nil {
			return nil, err
		}

		err = s.Put(ctx, profile)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, prefs.ErrVersionConflict) {
			return nil, err
		}
		metrics.RecordVersionConflict()
		lastErr = err
	}

	return nil, fmt.Errorf("update for user %s exhausted %d attempts: %w", userID, attempts, lastErr)
}
