// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/prefs"
)

// RelaxHard demotes the named hard constraint back to soft so an
// over-constrained ranking pass can be retried. Returns false when the
// attribute is not currently a hard constraint visible to the session; the
// caller then falls back to RelaxMostRecentHard.
func (r *Reconciler) RelaxHard(ctx context.Context, profile *prefs.UserProfile, category, attribute, sessionID string) bool {
	cat := profile.Category(prefs.NormalizeValue(category))
	if cat == nil {
		return false
	}
	pref := cat.Preference(prefs.ParseAttribute(attribute).Key)
	if pref == nil || pref.WeightClass != prefs.WeightHard || !pref.VisibleTo(sessionID) {
		return false
	}
	r.relax(ctx, profile.UserID, cat.Category, sessionID, pref)
	return true
}

// RelaxMostRecentHard demotes the most recently updated hard constraint
// visible to the session and returns its attribute key. The last constraint
// to harden is the likeliest over-tightening, so it goes first.
func (r *Reconciler) RelaxMostRecentHard(ctx context.Context, profile *prefs.UserProfile, category, sessionID string) (string, bool) {
	cat := profile.Category(prefs.NormalizeValue(category))
	if cat == nil {
		return "", false
	}

	keys := make([]string, 0, len(cat.Attributes))
	for key := range cat.Attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var pick *prefs.AttributePreference
	for _, key := range keys {
		pref := cat.Attributes[key]
		if pref.WeightClass != prefs.WeightHard || !pref.VisibleTo(sessionID) {
			continue
		}
		if pick == nil || pref.UpdatedAt.After(pick.UpdatedAt) {
			pick = pref
		}
	}
	if pick == nil {
		return "", false
	}

	r.relax(ctx, profile.UserID, cat.Category, sessionID, pick)
	return pick.Attribute.Key, true
}

// relax performs the demotion. Streaks reset so re-hardening needs a fresh
// run of strong signals, not one more reinforcement on top of stale history.
func (r *Reconciler) relax(ctx context.Context, userID, category, sessionID string, pref *prefs.AttributePreference) {
	pref.WeightClass = prefs.WeightSoft
	for _, entry := range pref.Preferred {
		entry.Streak = 0
	}
	for _, entry := range pref.Avoided {
		entry.Streak = 0
	}
	pref.UpdatedAt = r.nowFunc().UTC()

	r.emit(ctx, &journal.Event{
		Type:        journal.EventPreferenceEdited,
		UserID:      userID,
		SessionID:   sessionID,
		Category:    category,
		Attribute:   pref.Attribute.Key,
		Description: fmt.Sprintf("hard %s constraint relaxed to soft after it filtered out every candidate", pref.Attribute.Key),
	})

	logger := logging.Ctx(ctx)
	logger.Info().
		Str("user_id", userID).
		Str("category", category).
		Str("attribute", pref.Attribute.Key).
		Msg("Hard constraint relaxed")
}
