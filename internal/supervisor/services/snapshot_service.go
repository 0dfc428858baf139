// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package services

import (
	"context"
	"sort"
	"time"

	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/prefs"
	"github.com/jcalloway/prefero/internal/store"
)

// Checkpointer flushes a database's write-ahead log into its main file.
//
// Satisfied by *database.DB. A nil Checkpointer disables the post-snapshot
// checkpoint.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// SnapshotServiceConfig holds the snapshot schedule and retention.
type SnapshotServiceConfig struct {
	// Interval between snapshots. Default: 6h.
	Interval time.Duration

	// Keep is how many snapshot versions survive pruning. Default: 5.
	Keep int
}

// SnapshotService periodically captures every stored profile into a versioned
// snapshot file, prunes old versions, and checkpoints the catalog database so
// a backup of the data directory is consistent end to end.
type SnapshotService struct {
	store  store.Store
	snaps  *store.SnapshotStore
	db     Checkpointer
	config SnapshotServiceConfig
	name   string
}

// NewSnapshotService creates a profile snapshot service. db may be nil.
func NewSnapshotService(st store.Store, snaps *store.SnapshotStore, db Checkpointer, cfg SnapshotServiceConfig) *SnapshotService {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.Keep < 1 {
		cfg.Keep = 5
	}
	return &SnapshotService{
		store:  st,
		snaps:  snaps,
		db:     db,
		config: cfg,
		name:   "snapshot-service",
	}
}

// Serve implements suture.Service. Snapshots run on the ticker only; the
// store was just opened at startup, so an immediate snapshot would duplicate
// the newest existing version.
func (s *SnapshotService) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", s.config.Interval).
		Int("keep", s.config.Keep).
		Msg("Snapshot service starting")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Snapshot service shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.snapshot(ctx)
		}
	}
}

// snapshot captures one full pass: collect, save, prune, checkpoint.
// Errors are logged and reported to metrics; the next tick retries.
func (s *SnapshotService) snapshot(ctx context.Context) error {
	start := time.Now()

	profiles, err := s.collect(ctx)
	if err != nil {
		metrics.RecordSnapshot(time.Since(start), err)
		logging.Warn().Err(err).Msg("Profile snapshot failed to collect profiles")
		return err
	}

	meta, err := s.snaps.Save(ctx, profiles)
	metrics.RecordSnapshot(time.Since(start), err)
	if err != nil {
		logging.Warn().Err(err).Msg("Profile snapshot failed")
		return err
	}

	if err := s.snaps.Prune(ctx, s.config.Keep); err != nil {
		logging.Warn().Err(err).Msg("Snapshot pruning failed")
	}

	if s.db != nil {
		if err := s.db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Msg("Post-snapshot checkpoint failed")
		}
	}

	logging.Info().
		Int("version", meta.Version).
		Int("profiles", meta.ProfileCount).
		Int64("bytes", meta.SizeBytes).
		Dur("took", time.Since(start)).
		Msg("Profile snapshot written")
	return nil
}

// collect reads every profile out of the store. IDs are sorted so identical
// store contents produce identical snapshot payloads.
func (s *SnapshotService) collect(ctx context.Context) ([]*prefs.UserProfile, error) {
	ids, err := s.store.UserIDs(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	profiles := make([]*prefs.UserProfile, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *SnapshotService) String() string {
	return s.name
}
