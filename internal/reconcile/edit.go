// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/prefs"
)

// EditAction selects what a transparency drawer edit does.
type EditAction string

const (
	// EditSet places the value in the preferred bucket.
	EditSet EditAction = "set"

	// EditAvoid places the value in the avoided bucket.
	EditAvoid EditAction = "avoid"

	// EditRelax demotes the attribute's hard constraint back to soft.
	EditRelax EditAction = "relax"

	// EditRemove zeroes the value's strength in whichever bucket holds it.
	// The entry itself stays: removal supersedes, it never erases history.
	EditRemove EditAction = "remove"
)

// IsValid reports whether the action is one of the declared constants.
func (a EditAction) IsValid() bool {
	switch a {
	case EditSet, EditAvoid, EditRelax, EditRemove:
		return true
	}
	return false
}

// ErrNoSuchEntry marks edits against a value or constraint the profile does
// not hold.
var ErrNoSuchEntry = errors.New("no such preference entry")

// defaultEditStrength is where a set or avoid lands when the edit carries no
// strength of its own. Drawer edits are deliberate statements; they start
// strong.
const defaultEditStrength = 0.9

// Edit is one transparency drawer mutation.
type Edit struct {
	// Category the edit applies to.
	Category string

	// Attribute the edit applies to, raw key.
	Attribute string

	// Action is set, avoid, relax, or remove.
	Action EditAction

	// Value being set, avoided, or removed. Unused for relax.
	Value string

	// Strength for set and avoid, in (0,1]. Zero means
	// defaultEditStrength.
	Strength float64
}

// ApplyEdit folds a drawer edit into the profile. Edits are the user working
// on the durable profile directly, so set and avoid always apply, hard
// constraints included, and the touched preference is long_term no matter
// how young it is. Relax and remove return ErrNoSuchEntry when there is
// nothing to touch. Every edit leaves a preference.edited event behind.
func (r *Reconciler) ApplyEdit(ctx context.Context, profile *prefs.UserProfile, edit Edit) (*Result, error) {
	if profile == nil {
		return nil, fmt.Errorf("nil profile")
	}

	category := prefs.NormalizeValue(edit.Category)
	attr := prefs.ParseAttribute(edit.Attribute)
	value := prefs.NormalizeValue(edit.Value)
	if category == "" {
		return nil, fmt.Errorf("edit missing category")
	}
	if attr.Key == "" {
		return nil, fmt.Errorf("edit missing attribute")
	}

	var (
		res *Result
		err error
	)
	switch edit.Action {
	case EditSet, EditAvoid:
		res, err = r.editApply(ctx, profile, category, attr, value, edit)
	case EditRelax:
		res, err = r.editRelax(ctx, profile, category, attr)
	case EditRemove:
		res, err = r.editRemove(ctx, profile, category, attr, value)
	default:
		return nil, fmt.Errorf("unknown edit action %q", edit.Action)
	}
	if err != nil {
		return nil, err
	}

	logger := logging.Ctx(ctx)
	logger.Info().
		Str("user_id", profile.UserID).
		Str("category", category).
		Str("attribute", attr.Key).
		Str("value", value).
		Str("action", string(edit.Action)).
		Msg("Drawer edit applied")

	return res, nil
}

// editApply pushes a set or avoid through the normal reconciliation path
// with override, then pins the result to long_term scope.
func (r *Reconciler) editApply(ctx context.Context, profile *prefs.UserProfile, category string, attr prefs.Attribute, value string, edit Edit) (*Result, error) {
	if value == "" {
		return nil, fmt.Errorf("%s edit missing value", edit.Action)
	}

	strength := edit.Strength
	if strength == 0 {
		strength = defaultEditStrength
	}
	polarity := prefs.PolarityPositive
	if edit.Action == EditAvoid {
		polarity = prefs.PolarityNegative
	}

	res, err := r.Apply(ctx, profile, &prefs.Signal{
		UserID:          profile.UserID,
		Category:        category,
		Polarity:        polarity,
		Attribute:       attr.Key,
		Value:           value,
		SourceUtterance: "transparency drawer edit",
		StrengthHint:    strength,
	}, Options{Override: true})
	if err != nil {
		return nil, err
	}

	// The drawer edits the durable profile, not a conversation: if the
	// apply left the preference session-scoped, pin it. The pin alone does
	// not push transfers; only organic promotion travels.
	pref := profile.Category(category).Preference(attr.Key)
	if pref.Scope != prefs.ScopeLongTerm {
		pref.Scope = prefs.ScopeLongTerm
		pref.SessionID = ""
		res.Scope = prefs.ScopeLongTerm
	}

	r.emit(ctx, &journal.Event{
		Type:        journal.EventPreferenceEdited,
		UserID:      profile.UserID,
		Category:    category,
		Attribute:   attr.Key,
		Value:       value,
		Polarity:    string(polarity),
		Utterance:   "transparency drawer edit",
		Description: fmt.Sprintf("drawer edit: %s %s=%q", edit.Action, attr.Key, value),
	})
	return res, nil
}

// editRelax demotes a hard constraint. The empty session ID restricts the
// relax to long_term constraints; session-scoped hards belong to their own
// conversations, not the drawer.
func (r *Reconciler) editRelax(ctx context.Context, profile *prefs.UserProfile, category string, attr prefs.Attribute) (*Result, error) {
	if !r.RelaxHard(ctx, profile, category, attr.Key, "") {
		return nil, fmt.Errorf("no hard %s constraint in %s: %w", attr.Key, category, ErrNoSuchEntry)
	}

	pref := profile.Category(category).Preference(attr.Key)
	return &Result{
		Outcome:     OutcomeEdited,
		Category:    category,
		Attribute:   attr,
		Confidence:  pref.Confidence,
		Scope:       pref.Scope,
		WeightClass: pref.WeightClass,
	}, nil
}

// editRemove zeroes the value's strength and streak in place.
func (r *Reconciler) editRemove(ctx context.Context, profile *prefs.UserProfile, category string, attr prefs.Attribute, value string) (*Result, error) {
	if value == "" {
		return nil, fmt.Errorf("remove edit missing value")
	}

	cat := profile.Category(category)
	if cat == nil {
		return nil, fmt.Errorf("no %s profile: %w", category, ErrNoSuchEntry)
	}
	pref := cat.Preference(attr.Key)
	if pref == nil {
		return nil, fmt.Errorf("no %s preference in %s: %w", attr.Key, category, ErrNoSuchEntry)
	}

	entry, held := pref.Preferred[value]
	if !held {
		entry, held = pref.Avoided[value]
	}
	if !held {
		return nil, fmt.Errorf("no entry for %s=%q in %s: %w", attr.Key, value, category, ErrNoSuchEntry)
	}

	before := entry.Strength
	entry.Strength = 0
	entry.Streak = 0
	now := r.nowFunc().UTC()
	entry.LastSeen = now
	pref.UpdatedAt = now

	r.emit(ctx, &journal.Event{
		Type:      journal.EventPreferenceEdited,
		UserID:    profile.UserID,
		Category:  category,
		Attribute: attr.Key,
		Value:     value,
		Utterance: "transparency drawer edit",
		Description: fmt.Sprintf("drawer edit: removed %s=%q, strength zeroed with history kept",
			attr.Key, value),
		Delta: &journal.Delta{
			StrengthBefore:   before,
			StrengthAfter:    0,
			ConfidenceBefore: pref.Confidence,
			ConfidenceAfter:  pref.Confidence,
		},
	})

	return &Result{
		Outcome:     OutcomeEdited,
		Category:    category,
		Attribute:   attr,
		Value:       value,
		Strength:    0,
		Confidence:  pref.Confidence,
		Scope:       pref.Scope,
		WeightClass: pref.WeightClass,
	}, nil
}
