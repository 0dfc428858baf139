// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package store

import (
	"context"
	"testing"

	"github.com/jcalloway/prefero/internal/prefs"
)

func snapshotFixture(t *testing.T) []*prefs.UserProfile {
	t.Helper()

	p1 := prefs.NewUserProfile("u1", testTime)
	cat := p1.EnsureCategory("running shoes", testTime)
	pref := cat.EnsurePreference(prefs.ParseAttribute("brand"), "", testTime)
	pref.Preferred["solomon"] = &prefs.ValueEntry{Strength: 0.8, Reinforcements: 2, FirstSeen: testTime, LastSeen: testTime}
	p1.Version = 4

	p2 := prefs.NewUserProfile("u2", testTime)
	p2.Version = 1

	return []*prefs.UserProfile{p1, p2}
}

func TestSnapshotSaveAndLoad(t *testing.T) {
	t.Parallel()

	s, err := NewSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSnapshotStore failed: %v", err)
	}
	ctx := context.Background()

	meta, err := s.Save(ctx, snapshotFixture(t))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if meta.Version != 1 {
		t.Errorf("expected version 1, got %d", meta.Version)
	}
	if meta.ProfileCount != 2 {
		t.Errorf("expected 2 profiles, got %d", meta.ProfileCount)
	}
	if meta.Checksum == "" || meta.SizeBytes == 0 {
		t.Error("metadata missing checksum or size")
	}

	profiles, loadedMeta, err := s.Load(ctx, 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loadedMeta.Version != 1 {
		t.Errorf("expected loaded version 1, got %d", loadedMeta.Version)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}

	var p1 *prefs.UserProfile
	for _, p := range profiles {
		if p.UserID == "u1" {
			p1 = p
		}
	}
	if p1 == nil {
		t.Fatal("u1 missing from snapshot")
	}
	if p1.Version != 4 {
		t.Errorf("expected u1 version 4, got %d", p1.Version)
	}
	pref := p1.Category("running shoes").Preference("brand")
	if pref == nil || pref.Preferred["solomon"] == nil || pref.Preferred["solomon"].Strength != 0.8 {
		t.Error("preference state lost in snapshot round trip")
	}
}

func TestSnapshotVersionsAdvanceAndSurviveReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewSnapshotStore(dir)
	if err != nil {
		t.Fatalf("NewSnapshotStore failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Save(ctx, snapshotFixture(t)); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	reopened, err := NewSnapshotStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	latest, ok := reopened.Latest()
	if !ok || latest != 3 {
		t.Errorf("expected latest 3 after reopen, got %d (ok=%v)", latest, ok)
	}

	meta, err := reopened.Save(ctx, snapshotFixture(t))
	if err != nil {
		t.Fatalf("Save after reopen failed: %v", err)
	}
	if meta.Version != 4 {
		t.Errorf("expected version 4, got %d", meta.Version)
	}
}

func TestSnapshotPruneKeepsNewest(t *testing.T) {
	t.Parallel()

	s, err := NewSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSnapshotStore failed: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Save(ctx, snapshotFixture(t)); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	if err := s.Prune(ctx, 2); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	metas, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 snapshots after prune, got %d", len(metas))
	}
	if metas[0].Version != 4 || metas[1].Version != 5 {
		t.Errorf("expected versions 4 and 5, got %d and %d", metas[0].Version, metas[1].Version)
	}

	// The newest snapshot still loads.
	if _, _, err := s.Load(ctx, 0); err != nil {
		t.Errorf("Load after prune failed: %v", err)
	}
	// Pruned versions are gone.
	if _, _, err := s.Load(ctx, 1); err == nil {
		t.Error("expected error loading pruned snapshot")
	}
}
