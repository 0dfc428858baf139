// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/prefs"
)

// addIdlePreference installs a preference last touched at the given time.
func addIdlePreference(profile *prefs.UserProfile, category, attribute string, confidence float64, updatedAt time.Time) *prefs.AttributePreference {
	cat := profile.EnsureCategory(category, updatedAt)
	pref := cat.EnsurePreference(prefs.ParseAttribute(attribute), "", updatedAt)
	pref.Confidence = confidence
	pref.UpdatedAt = updatedAt
	pref.Preferred["blue"] = &prefs.ValueEntry{Strength: 0.7, FirstSeen: updatedAt, LastSeen: updatedAt}
	return pref
}

func TestDecayHalvesAfterHalfLife(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	halfLife := r.cfg.HalfLife

	profile := prefs.NewUserProfile("user-1", testTime)
	pref := addIdlePreference(profile, "tshirt", "color", 0.8, testTime.Add(-halfLife))

	changed := r.Decay(context.Background(), profile, halfLife)
	if changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}
	if !almostEqual(pref.Confidence, 0.4) {
		t.Errorf("confidence = %f, want 0.4 after one half-life", pref.Confidence)
	}

	// UpdatedAt is untouched, so the next sweep halves again.
	changed = r.Decay(context.Background(), profile, halfLife)
	if changed != 1 {
		t.Fatalf("second sweep changed = %d, want 1", changed)
	}
	if !almostEqual(pref.Confidence, 0.2) {
		t.Errorf("confidence = %f, want 0.2 after two half-lives", pref.Confidence)
	}
}

func TestDecaySkipsActivePreferences(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)

	active := addIdlePreference(profile, "tshirt", "color", 0.8, testTime.Add(-30*time.Minute))
	drained := addIdlePreference(profile, "tshirt", "material", 0, testTime.Add(-48*time.Hour))

	changed := r.Decay(context.Background(), profile, time.Hour)
	if changed != 0 {
		t.Fatalf("changed = %d, want 0", changed)
	}
	if !almostEqual(active.Confidence, 0.8) {
		t.Errorf("recently touched preference decayed to %f", active.Confidence)
	}
	if drained.Confidence != 0 {
		t.Errorf("empty confidence moved to %f", drained.Confidence)
	}
}

func TestDecayRecomputesAggregates(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	halfLife := r.cfg.HalfLife

	profile := prefs.NewUserProfile("user-1", testTime)
	pref := addIdlePreference(profile, "tshirt", "color", 0.8, testTime.Add(-halfLife))
	profile.Category("tshirt").Confidence = 0.8
	profile.Confidence = 0.8

	if changed := r.Decay(context.Background(), profile, halfLife); changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}

	// Single attribute, so the rollups track it exactly.
	if !almostEqual(profile.Category("tshirt").Confidence, pref.Confidence) {
		t.Errorf("category confidence %f does not track attribute %f",
			profile.Category("tshirt").Confidence, pref.Confidence)
	}
	if !almostEqual(profile.Confidence, pref.Confidence) {
		t.Errorf("profile confidence %f does not track attribute %f",
			profile.Confidence, pref.Confidence)
	}
}

func TestDecayJournalsOnlyMeaningfulDrops(t *testing.T) {
	t.Parallel()

	store := journal.NewMemoryStore(100)
	recorder := journal.NewRecorder(store, journal.DefaultConfig())
	r := newTestReconciler(t, recorder)
	ctx := context.Background()

	// A full half-life drop is worth a journal entry.
	big := prefs.NewUserProfile("user-1", testTime)
	addIdlePreference(big, "tshirt", "color", 0.8, testTime.Add(-r.cfg.HalfLife))
	if changed := r.Decay(ctx, big, r.cfg.HalfLife); changed != 1 {
		t.Fatalf("big sweep changed = %d, want 1", changed)
	}

	// An hourly nibble still applies but stays out of the journal.
	small := prefs.NewUserProfile("user-2", testTime)
	pref := addIdlePreference(small, "tshirt", "color", 0.5, testTime.Add(-2*time.Hour))
	if changed := r.Decay(ctx, small, time.Hour); changed != 1 {
		t.Fatalf("small sweep changed = %d, want 1", changed)
	}
	if pref.Confidence >= 0.5 {
		t.Errorf("small sweep did not apply, confidence = %f", pref.Confidence)
	}

	if err := recorder.Close(); err != nil {
		t.Fatalf("recorder close: %v", err)
	}

	count, err := store.Count(ctx, journal.QueryFilter{
		Types: []journal.EventType{journal.EventPreferenceDecayed},
	})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("decay events = %d, want only the half-life drop", count)
	}
}
