// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/jcalloway/prefero/internal/prefs"
)

// addLongTermAvoid installs a hand-built long_term preference so transfer
// tests can start from an established profile.
func addLongTermAvoid(profile *prefs.UserProfile, category, attribute, value string, confidence, strength float64) {
	cat := profile.EnsureCategory(category, testTime)
	pref := cat.EnsurePreference(prefs.ParseAttribute(attribute), "", testTime)
	pref.Scope = prefs.ScopeLongTerm
	pref.Confidence = confidence
	pref.Avoided[value] = &prefs.ValueEntry{
		Strength:       strength,
		Reinforcements: 4,
		FirstSeen:      testTime,
		LastSeen:       testTime,
	}
}

func TestSeedNewCategoryFromLongTermPreferences(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	addLongTermAvoid(profile, "running shoes", "material", "synthetic", 0.8, 0.9)
	addLongTermAvoid(profile, "running shoes", "brand", "cheapcraft", 0.9, 0.9)

	// First ever signal in a brand-new category.
	res, err := r.Apply(context.Background(), profile,
		signal(prefs.PolarityPositive, "sweater", "color", "green", 0.5, testTime.Add(time.Hour)),
		Options{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Outcome != OutcomeCreated {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeCreated)
	}

	sweater := profile.Category("sweater")
	seeded := sweater.Preference("material")
	if seeded == nil {
		t.Fatal("material preference did not transfer into the new category")
	}
	if seeded.Origin != prefs.OriginTransferred {
		t.Errorf("origin = %s, want transferred", seeded.Origin)
	}
	if seeded.Scope != prefs.ScopeLongTerm {
		t.Errorf("scope = %s, want long_term", seeded.Scope)
	}
	if seeded.WeightClass != prefs.WeightSoft {
		t.Errorf("weight class = %s, want soft", seeded.WeightClass)
	}
	if !almostEqual(seeded.Confidence, 0.8*0.4) {
		t.Errorf("confidence = %f, want %f", seeded.Confidence, 0.8*0.4)
	}
	entry := seeded.Avoided["synthetic"]
	if entry == nil {
		t.Fatal("avoided value did not travel with the transfer")
	}
	if !almostEqual(entry.Strength, 0.9) {
		t.Errorf("transferred strength = %f, want 0.9", entry.Strength)
	}
	if entry.Streak != 0 || entry.Reinforcements != 0 {
		t.Errorf("transferred entry kept history: streak=%d reinforcements=%d", entry.Streak, entry.Reinforcements)
	}

	// Brand preferences are category specific and must not travel.
	if sweater.Preference("brand") != nil {
		t.Error("brand preference transferred across categories")
	}

	// The triggering signal itself landed as a normal direct preference.
	if color := sweater.Preference("color"); color == nil || color.Origin != prefs.OriginDirect {
		t.Error("triggering signal did not land as a direct preference")
	}
}

func TestSeedIgnoresSessionScopedSources(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)

	cat := profile.EnsureCategory("running shoes", testTime)
	pref := cat.EnsurePreference(prefs.ParseAttribute("material"), "sess-0", testTime)
	pref.Confidence = 0.9 // still session scope
	pref.Avoided["synthetic"] = &prefs.ValueEntry{Strength: 0.9, FirstSeen: testTime, LastSeen: testTime}

	if _, err := r.Apply(context.Background(), profile,
		signal(prefs.PolarityPositive, "sweater", "color", "green", 0.5, testTime.Add(time.Hour)),
		Options{SessionID: "sess-1"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if profile.Category("sweater").Preference("material") != nil {
		t.Error("session-scoped preference leaked into a new category")
	}
}

func TestSeedPicksHighestConfidenceSource(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	addLongTermAvoid(profile, "jacket", "material", "wool", 0.5, 0.6)
	addLongTermAvoid(profile, "running shoes", "material", "synthetic", 0.8, 0.9)

	if _, err := r.Apply(context.Background(), profile,
		signal(prefs.PolarityPositive, "sweater", "color", "green", 0.5, testTime.Add(time.Hour)),
		Options{SessionID: "sess-1"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	seeded := profile.Category("sweater").Preference("material")
	if seeded == nil {
		t.Fatal("material did not seed")
	}
	if !almostEqual(seeded.Confidence, 0.8*0.4) {
		t.Errorf("confidence = %f, want %f from the stronger source", seeded.Confidence, 0.8*0.4)
	}
	if _, ok := seeded.Avoided["synthetic"]; !ok {
		t.Error("seed did not come from the higher confidence source")
	}
	if _, ok := seeded.Avoided["wool"]; ok {
		t.Error("seed mixed in the weaker source")
	}
}

func TestPushNeverOverridesExistingPreference(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	ctx := context.Background()

	// The target category already knows its own material preference.
	if _, err := r.Apply(ctx, profile,
		signal(prefs.PolarityPositive, "hiking boots", "material", "leather", 0.5, testTime),
		Options{SessionID: "sess-1"}); err != nil {
		t.Fatalf("target setup: %v", err)
	}

	// Drive the source category's material preference across the long_term
	// threshold, which triggers the push.
	var transferred []string
	for i := 0; i < 3; i++ {
		at := testTime.Add(time.Duration(i+1) * time.Minute)
		res, err := r.Apply(ctx, profile,
			signal(prefs.PolarityNegative, "running shoes", "material", "synthetic", 1.0, at),
			Options{SessionID: "sess-1"})
		if err != nil {
			t.Fatalf("source apply %d: %v", i, err)
		}
		if res.PromotedLongTerm {
			transferred = res.TransferredTo
		}
	}

	if len(transferred) != 0 {
		t.Errorf("push reported transfers %v despite the target holding its own entry", transferred)
	}

	target := profile.Category("hiking boots").Preference("material")
	if target.Origin != prefs.OriginDirect {
		t.Errorf("target origin = %s, want untouched direct", target.Origin)
	}
	if _, ok := target.Preferred["leather"]; !ok {
		t.Error("target lost its own preferred value")
	}
	if _, crept := target.Avoided["synthetic"]; crept {
		t.Error("push overwrote the target's own preference")
	}
}

func TestTransferredPreferenceCorroboration(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	addLongTermAvoid(profile, "running shoes", "material", "synthetic", 0.8, 0.9)
	ctx := context.Background()

	// Seed the sweater category.
	if _, err := r.Apply(ctx, profile,
		signal(prefs.PolarityPositive, "sweater", "color", "green", 0.5, testTime.Add(time.Hour)),
		Options{SessionID: "sess-1"}); err != nil {
		t.Fatalf("seed apply: %v", err)
	}

	// First direct signal corroborates; streak starts from scratch.
	res, err := r.Apply(ctx, profile,
		signal(prefs.PolarityNegative, "sweater", "material", "synthetic", 0.9, testTime.Add(2*time.Hour)),
		Options{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("corroborating apply: %v", err)
	}
	if !res.Corroborated {
		t.Error("direct signal did not corroborate the transferred preference")
	}

	pref := profile.Category("sweater").Preference("material")
	if pref.Origin != prefs.OriginDirect {
		t.Errorf("origin = %s, want direct after corroboration", pref.Origin)
	}
	if got := pref.Avoided["synthetic"].Streak; got != 1 {
		t.Errorf("streak = %d, want 1; transfers must not inherit promotion credit", got)
	}
	if res.PromotedHard {
		t.Error("hardened on the first direct signal")
	}

	// Two more strong signals complete a fresh streak and harden normally.
	for i := 0; i < 2; i++ {
		at := testTime.Add(time.Duration(i+3) * time.Hour)
		res, err = r.Apply(ctx, profile,
			signal(prefs.PolarityNegative, "sweater", "material", "synthetic", 0.9, at),
			Options{SessionID: "sess-1"})
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
		if res.Corroborated {
			t.Errorf("apply %d: corroboration reported twice", i)
		}
	}
	if !res.PromotedHard {
		t.Error("corroborated preference did not harden after a full streak")
	}
}

func TestTransfersNeverChain(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	addLongTermAvoid(profile, "running shoes", "material", "synthetic", 0.8, 0.9)
	ctx := context.Background()

	// Sweater receives the transferred copy at 0.32.
	if _, err := r.Apply(ctx, profile,
		signal(prefs.PolarityPositive, "sweater", "color", "green", 0.5, testTime.Add(time.Hour)),
		Options{SessionID: "sess-1"}); err != nil {
		t.Fatalf("sweater apply: %v", err)
	}

	// A third category must seed from the original source, not from the
	// sweater's transferred copy at a compounded discount.
	if _, err := r.Apply(ctx, profile,
		signal(prefs.PolarityPositive, "scarf", "color", "green", 0.5, testTime.Add(2*time.Hour)),
		Options{SessionID: "sess-1"}); err != nil {
		t.Fatalf("scarf apply: %v", err)
	}

	seeded := profile.Category("scarf").Preference("material")
	if seeded == nil {
		t.Fatal("scarf did not seed material")
	}
	if !almostEqual(seeded.Confidence, 0.8*0.4) {
		t.Errorf("confidence = %f, want %f from the original source", seeded.Confidence, 0.8*0.4)
	}
}
