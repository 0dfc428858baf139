// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/prefs"
)

// profileKeyPrefix namespaces profile records inside Badger.
const profileKeyPrefix = "profile:"

// badgerGCRatio is the value log rewrite threshold passed to RunValueLogGC.
const badgerGCRatio = 0.5

// BadgerStore persists profiles in BadgerDB. Version checks run inside a
// single Badger transaction, so concurrent writers against the same user
// resolve to exactly one winner per version.
type BadgerStore struct {
	db      *badger.DB
	nowFunc func() time.Time
}

// OpenBadger opens (or creates) the profile database at cfg.Path.
func OpenBadger(cfg Config) (*BadgerStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Profile store opened")

	return &BadgerStore{db: db, nowFunc: time.Now}, nil
}

// NewBadgerStore wraps an already-open Badger database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, nowFunc: time.Now}
}

func profileKey(userID string) []byte {
	return []byte(profileKeyPrefix + userID)
}

// Get returns a copy of the stored profile, or a fresh one at version 0.
func (s *BadgerStore) Get(ctx context.Context, userID string) (*prefs.UserProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id required")
	}

	var profile *prefs.UserProfile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}

		return item.Value(func(val []byte) error {
			var p prefs.UserProfile
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("unmarshal profile: %w", err)
			}
			profile = &p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if profile == nil {
		return prefs.NewUserProfile(userID, s.nowFunc()), nil
	}
	return profile, nil
}

// Put stores the profile if the version check passes. The read, compare, and
// write happen inside one transaction.
func (s *BadgerStore) Put(ctx context.Context, profile *prefs.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("profile with user id required")
	}

	key := profileKey(profile.UserID)
	callerVersion := profile.Version
	callerUpdated := profile.LastUpdated

	err := s.db.Update(func(txn *badger.Txn) error {
		current := uint64(0)

		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// First write for this user.
		case err != nil:
			return fmt.Errorf("get profile: %w", err)
		default:
			err = item.Value(func(val []byte) error {
				var stored struct {
					Version uint64 `json:"version"`
				}
				if err := json.Unmarshal(val, &stored); err != nil {
					return fmt.Errorf("unmarshal stored version: %w", err)
				}
				current = stored.Version
				return nil
			})
			if err != nil {
				return err
			}
		}

		if callerVersion != current {
			return fmt.Errorf("user %s at version %d, caller has %d: %w",
				profile.UserID, current, callerVersion, prefs.ErrVersionConflict)
		}

		profile.Version = current + 1
		profile.LastUpdated = s.nowFunc()
		data, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("marshal profile: %w", err)
		}
		return txn.Set(key, data)
	})

	if err != nil {
		profile.Version = callerVersion
		profile.LastUpdated = callerUpdated
		// Badger aborts one of two overlapping transactions; surface that
		// the same way as a stale version so Update retries it.
		if errors.Is(err, badger.ErrConflict) {
			return fmt.Errorf("transaction conflict for user %s: %w", profile.UserID, prefs.ErrVersionConflict)
		}
		return err
	}
	return nil
}

// Delete removes the profile. Absent profiles are ignored.
func (s *BadgerStore) Delete(ctx context.Context, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(profileKey(userID))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete profile: %w", err)
		}
		return nil
	})
}

// UserIDs lists every stored user via a key-only prefix scan.
func (s *BadgerStore) UserIDs(ctx context.Context) ([]string, error) {
	var ids []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(profileKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan profiles: %w", err)
	}
	return ids, nil
}

// StartGC runs value log garbage collection on a ticker until ctx ends.
func (s *BadgerStore) StartGC(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.db.RunValueLogGC(badgerGCRatio); err != nil &&
					!errors.Is(err, badger.ErrNoRewrite) {
					logging.Warn().Err(err).Msg("Badger value log GC failed")
				}
			}
		}
	}()
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
