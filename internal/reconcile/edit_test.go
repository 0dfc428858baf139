// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/prefs"
)

func TestApplyEditSet(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)

	res, err := r.ApplyEdit(context.Background(), profile, Edit{
		Category:  "Running Shoes",
		Attribute: "color",
		Action:    EditSet,
		Value:     "Red",
	})
	if err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}
	if res.Outcome != OutcomeCreated {
		t.Errorf("outcome = %s, want created", res.Outcome)
	}

	pref := profile.Category("running shoes").Preference("color")
	if pref == nil {
		t.Fatal("no color preference after set")
	}
	entry := pref.Preferred["red"]
	if entry == nil {
		t.Fatal("red missing from preferred bucket")
	}
	if !almostEqual(entry.Strength, defaultEditStrength) {
		t.Errorf("strength = %f, want default %f", entry.Strength, defaultEditStrength)
	}
	if pref.Scope != prefs.ScopeLongTerm {
		t.Errorf("scope = %s, want long_term: drawer edits are durable", pref.Scope)
	}
	if pref.SessionID != "" {
		t.Errorf("session id = %q, want empty after long_term pin", pref.SessionID)
	}
	if res.Scope != prefs.ScopeLongTerm {
		t.Errorf("result scope = %s, want long_term", res.Scope)
	}
}

func TestApplyEditExplicitStrength(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)

	if _, err := r.ApplyEdit(context.Background(), profile, Edit{
		Category:  "tshirt",
		Attribute: "material",
		Action:    EditAvoid,
		Value:     "polyester",
		Strength:  0.4,
	}); err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}

	entry := profile.Category("tshirt").Preference("material").Avoided["polyester"]
	if entry == nil {
		t.Fatal("polyester missing from avoided bucket")
	}
	if !almostEqual(entry.Strength, 0.4) {
		t.Errorf("strength = %f, want the requested 0.4", entry.Strength)
	}
}

func TestApplyEditOverridesHardConstraint(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	ctx := context.Background()

	// Conversational path would reject this flip; the drawer always wins.
	cat := profile.EnsureCategory("running shoes", testTime)
	hardPref(cat, "brand", "cheapcraft", "", prefs.ScopeLongTerm, testTime)

	res, err := r.ApplyEdit(ctx, profile, Edit{
		Category:  "running shoes",
		Attribute: "brand",
		Action:    EditSet,
		Value:     "cheapcraft",
	})
	if err != nil {
		t.Fatalf("ApplyEdit against hard constraint: %v", err)
	}
	if res.Outcome != OutcomeSuperseded {
		t.Errorf("outcome = %s, want superseded", res.Outcome)
	}

	pref := profile.Category("running shoes").Preference("brand")
	if _, still := pref.Avoided["cheapcraft"]; still {
		t.Error("cheapcraft still avoided after a drawer set")
	}
	if pref.Preferred["cheapcraft"] == nil {
		t.Error("cheapcraft missing from preferred bucket")
	}
}

func TestApplyEditBoundedReplaces(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	ctx := context.Background()

	for _, budget := range []string{"<=200", "<=120"} {
		if _, err := r.ApplyEdit(ctx, profile, Edit{
			Category:  "running shoes",
			Attribute: "price_range",
			Action:    EditSet,
			Value:     budget,
		}); err != nil {
			t.Fatalf("ApplyEdit %q: %v", budget, err)
		}
	}

	pref := profile.Category("running shoes").Preference("price_range")
	if len(pref.Preferred) != 1 {
		t.Fatalf("preferred entries = %d, want the restated budget alone", len(pref.Preferred))
	}
	if pref.Preferred["<=120"] == nil {
		t.Error("restated budget <=120 missing")
	}
	if pref.WeightClass != prefs.WeightHard {
		t.Errorf("weight class = %s, want hard for a bounded constraint", pref.WeightClass)
	}
}

func TestApplyEditRelax(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	cat := profile.EnsureCategory("running shoes", testTime)
	hardPref(cat, "material", "synthetic", "", prefs.ScopeLongTerm, testTime)

	res, err := r.ApplyEdit(context.Background(), profile, Edit{
		Category:  "running shoes",
		Attribute: "material",
		Action:    EditRelax,
	})
	if err != nil {
		t.Fatalf("ApplyEdit relax: %v", err)
	}
	if res.Outcome != OutcomeEdited {
		t.Errorf("outcome = %s, want edited", res.Outcome)
	}
	if res.WeightClass != prefs.WeightSoft {
		t.Errorf("weight class = %s, want soft after relax", res.WeightClass)
	}

	// Nothing hard left; a second relax has no target.
	_, err = r.ApplyEdit(context.Background(), profile, Edit{
		Category:  "running shoes",
		Attribute: "material",
		Action:    EditRelax,
	})
	if !errors.Is(err, ErrNoSuchEntry) {
		t.Errorf("second relax error = %v, want ErrNoSuchEntry", err)
	}
}

func TestApplyEditRelaxSkipsSessionScoped(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	cat := profile.EnsureCategory("running shoes", testTime)
	hardPref(cat, "brand", "cheapcraft", "sess-1", prefs.ScopeSession, testTime)

	// A session-scoped hard belongs to its conversation, not the drawer.
	_, err := r.ApplyEdit(context.Background(), profile, Edit{
		Category:  "running shoes",
		Attribute: "brand",
		Action:    EditRelax,
	})
	if !errors.Is(err, ErrNoSuchEntry) {
		t.Errorf("relax of session-scoped hard = %v, want ErrNoSuchEntry", err)
	}
}

func TestApplyEditRemove(t *testing.T) {
	t.Parallel()

	store := journal.NewMemoryStore(100)
	recorder := journal.NewRecorder(store, journal.DefaultConfig())
	r := newTestReconciler(t, recorder)
	profile := prefs.NewUserProfile("user-1", testTime)
	ctx := context.Background()

	if _, err := r.Apply(ctx, profile,
		signal(prefs.PolarityPositive, "running shoes", "color", "red", 0.8, testTime),
		Options{SessionID: "sess-1"}); err != nil {
		t.Fatalf("seed apply: %v", err)
	}

	res, err := r.ApplyEdit(ctx, profile, Edit{
		Category:  "running shoes",
		Attribute: "color",
		Action:    EditRemove,
		Value:     "red",
	})
	if err != nil {
		t.Fatalf("ApplyEdit remove: %v", err)
	}
	if res.Outcome != OutcomeEdited {
		t.Errorf("outcome = %s, want edited", res.Outcome)
	}
	if res.Strength != 0 {
		t.Errorf("result strength = %f, want 0", res.Strength)
	}

	// The entry survives at zero strength; removal never erases history.
	entry := profile.Category("running shoes").Preference("color").Preferred["red"]
	if entry == nil {
		t.Fatal("entry deleted outright; removal must keep it")
	}
	if entry.Strength != 0 || entry.Streak != 0 {
		t.Errorf("entry strength/streak = %f/%d, want zeroed", entry.Strength, entry.Streak)
	}

	if err := recorder.Close(); err != nil {
		t.Fatalf("recorder close: %v", err)
	}
	events, err := store.Query(ctx, journal.QueryFilter{
		Types: []journal.EventType{journal.EventPreferenceEdited},
	})
	if err != nil {
		t.Fatalf("query edits: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("edited events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Delta == nil {
		t.Fatal("edited event missing delta")
	}
	if ev.Delta.StrengthAfter != 0 || ev.Delta.StrengthBefore == 0 {
		t.Errorf("delta = %f -> %f, want nonzero -> 0",
			ev.Delta.StrengthBefore, ev.Delta.StrengthAfter)
	}
}

func TestApplyEditRemoveMisses(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	profile.EnsureCategory("running shoes", testTime)
	ctx := context.Background()

	for name, edit := range map[string]Edit{
		"unknown category":  {Category: "hat", Attribute: "color", Action: EditRemove, Value: "red"},
		"unknown attribute": {Category: "running shoes", Attribute: "color", Action: EditRemove, Value: "red"},
	} {
		if _, err := r.ApplyEdit(ctx, profile, edit); !errors.Is(err, ErrNoSuchEntry) {
			t.Errorf("%s: error = %v, want ErrNoSuchEntry", name, err)
		}
	}
}

func TestApplyEditRejectsMalformed(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	ctx := context.Background()

	cases := map[string]Edit{
		"missing category":  {Attribute: "color", Action: EditSet, Value: "red"},
		"missing attribute": {Category: "tshirt", Action: EditSet, Value: "red"},
		"set without value": {Category: "tshirt", Attribute: "color", Action: EditSet},
		"unknown action":    {Category: "tshirt", Attribute: "color", Action: "purge", Value: "red"},
	}
	for name, edit := range cases {
		if _, err := r.ApplyEdit(ctx, profile, edit); err == nil {
			t.Errorf("%s: ApplyEdit succeeded, want error", name)
		}
	}
}

func TestApplyEditSessionRestatementFollowsDrawer(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, nil)
	profile := prefs.NewUserProfile("user-1", testTime)
	ctx := context.Background()

	// A young session-scoped preference, then a drawer set on the same
	// attribute: the pin makes it visible everywhere.
	if _, err := r.Apply(ctx, profile,
		signal(prefs.PolarityPositive, "tshirt", "color", "blue", 0.3, testTime),
		Options{SessionID: "sess-1"}); err != nil {
		t.Fatalf("seed apply: %v", err)
	}
	pref := profile.Category("tshirt").Preference("color")
	if pref.Scope != prefs.ScopeSession {
		t.Fatalf("seed scope = %s, want session", pref.Scope)
	}

	if _, err := r.ApplyEdit(ctx, profile, Edit{
		Category:  "tshirt",
		Attribute: "color",
		Action:    EditSet,
		Value:     "blue",
		Strength:  0.5,
	}); err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}

	if !pref.VisibleTo("sess-2") {
		t.Error("drawer-pinned preference invisible to a later session")
	}
	if got := pref.Preferred["blue"].Reinforcements; got != 2 {
		t.Errorf("reinforcements = %d, want 2", got)
	}
}
