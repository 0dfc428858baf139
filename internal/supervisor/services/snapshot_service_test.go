// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/jcalloway/prefero/internal/store"
)

// mockCheckpointer is a test double for the Checkpointer interface.
type mockCheckpointer struct {
	calls atomic.Int32
	err   error
}

func (m *mockCheckpointer) Checkpoint(ctx context.Context) error {
	m.calls.Add(1)
	return m.err
}

func (m *mockCheckpointer) Calls() int {
	return int(m.calls.Load())
}

func newTestSnapshotStore(t *testing.T) *store.SnapshotStore {
	t.Helper()

	snaps, err := store.NewSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSnapshotStore() error = %v", err)
	}
	return snaps
}

func TestSnapshotService_Interface(t *testing.T) {
	// Verify SnapshotService implements suture.Service
	var _ suture.Service = (*SnapshotService)(nil)
}

func TestNewSnapshotService_Defaults(t *testing.T) {
	svc := NewSnapshotService(store.NewMemoryStore(), newTestSnapshotStore(t), nil, SnapshotServiceConfig{})

	if svc.config.Interval != 6*time.Hour {
		t.Errorf("expected default interval 6h, got %v", svc.config.Interval)
	}
	if svc.config.Keep != 5 {
		t.Errorf("expected default keep 5, got %d", svc.config.Keep)
	}
	if svc.String() != "snapshot-service" {
		t.Errorf("expected 'snapshot-service', got %q", svc.String())
	}
}

func TestSnapshotService_Snapshot(t *testing.T) {
	now := time.Now().UTC()

	t.Run("captures all profiles and checkpoints", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedProfile(t, st, "user-1", 0.8, now)
		seedProfile(t, st, "user-2", 0.5, now)

		snaps := newTestSnapshotStore(t)
		cp := &mockCheckpointer{}
		svc := NewSnapshotService(st, snaps, cp, SnapshotServiceConfig{Keep: 3})

		if err := svc.snapshot(context.Background()); err != nil {
			t.Fatalf("snapshot() error = %v", err)
		}

		version, ok := snaps.Latest()
		if !ok || version != 1 {
			t.Errorf("expected latest version 1, got %d (ok=%v)", version, ok)
		}
		if cp.Calls() != 1 {
			t.Errorf("expected 1 checkpoint, got %d", cp.Calls())
		}

		profiles, meta, err := snaps.Load(context.Background(), 0)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(profiles) != 2 {
			t.Errorf("expected 2 profiles in snapshot, got %d", len(profiles))
		}
		if meta.ProfileCount != 2 {
			t.Errorf("expected profile count 2 in metadata, got %d", meta.ProfileCount)
		}

		// A second pass writes the next version.
		if err := svc.snapshot(context.Background()); err != nil {
			t.Fatalf("snapshot() error = %v", err)
		}
		if version, _ := snaps.Latest(); version != 2 {
			t.Errorf("expected latest version 2 after second pass, got %d", version)
		}
	})

	t.Run("prunes to the configured keep count", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedProfile(t, st, "user-1", 0.8, now)

		snaps := newTestSnapshotStore(t)
		svc := NewSnapshotService(st, snaps, nil, SnapshotServiceConfig{Keep: 2})

		for i := 0; i < 3; i++ {
			if err := svc.snapshot(context.Background()); err != nil {
				t.Fatalf("snapshot() pass %d error = %v", i+1, err)
			}
		}

		metas, err := snaps.List(context.Background())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(metas) != 2 {
			t.Fatalf("expected 2 surviving snapshots, got %d", len(metas))
		}
		if metas[0].Version != 2 || metas[1].Version != 3 {
			t.Errorf("expected versions 2 and 3 to survive, got %d and %d", metas[0].Version, metas[1].Version)
		}
	})

	t.Run("checkpoint failure does not fail the snapshot", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedProfile(t, st, "user-1", 0.8, now)

		snaps := newTestSnapshotStore(t)
		cp := &mockCheckpointer{err: errors.New("wal busy")}
		svc := NewSnapshotService(st, snaps, cp, SnapshotServiceConfig{})

		if err := svc.snapshot(context.Background()); err != nil {
			t.Errorf("snapshot() error = %v, want nil", err)
		}
		if version, ok := snaps.Latest(); !ok || version != 1 {
			t.Errorf("expected snapshot to be written despite checkpoint failure, got version %d", version)
		}
	})

	t.Run("nil checkpointer is allowed", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedProfile(t, st, "user-1", 0.8, now)

		svc := NewSnapshotService(st, newTestSnapshotStore(t), nil, SnapshotServiceConfig{})

		if err := svc.snapshot(context.Background()); err != nil {
			t.Errorf("snapshot() error = %v, want nil", err)
		}
	})

	t.Run("canceled context aborts collection", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedProfile(t, st, "user-1", 0.8, now)

		snaps := newTestSnapshotStore(t)
		svc := NewSnapshotService(st, snaps, nil, SnapshotServiceConfig{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := svc.snapshot(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if _, ok := snaps.Latest(); ok {
			t.Error("expected no snapshot after canceled collection")
		}
	})
}

func TestSnapshotService_Serve(t *testing.T) {
	t.Run("snapshots on schedule", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedProfile(t, st, "user-1", 0.8, time.Now().UTC())

		snaps := newTestSnapshotStore(t)
		svc := NewSnapshotService(st, snaps, nil, SnapshotServiceConfig{Interval: 40 * time.Millisecond})

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()

		_ = svc.Serve(ctx)

		if version, ok := snaps.Latest(); !ok || version < 1 {
			t.Errorf("expected at least one scheduled snapshot, got version %d (ok=%v)", version, ok)
		}
	})

	t.Run("graceful shutdown", func(t *testing.T) {
		svc := NewSnapshotService(store.NewMemoryStore(), newTestSnapshotStore(t), nil, SnapshotServiceConfig{})

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- svc.Serve(ctx)
		}()

		time.Sleep(30 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Serve did not return after cancellation")
		}
	})
}
