// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package reconcile

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/prefs"
)

// journalDecayThreshold keeps sub-percent decay steps out of the journal.
// The decay itself always applies; only the trail is filtered.
const journalDecayThreshold = 0.01

// Decay applies one sweep of inactivity decay to the profile and reports how
// many preferences changed. A preference idle for a full sweep interval loses
// a fixed fraction per sweep, sized so that repeated sweeps halve confidence
// once per half-life. UpdatedAt is left alone: decay is not an interaction,
// and the idle clock keeps running.
//
// Callers decide what to do with the count; a zero means the profile does not
// need to be written back.
func (r *Reconciler) Decay(ctx context.Context, profile *prefs.UserProfile, interval time.Duration) int {
	if profile == nil || interval <= 0 {
		return 0
	}

	now := r.nowFunc().UTC()
	factor := math.Pow(0.5, float64(interval)/float64(r.cfg.HalfLife))
	cutoff := now.Add(-interval)

	changed := 0
	for _, cat := range profile.Categories {
		for _, pref := range cat.Attributes {
			if pref.Confidence <= 0 {
				continue
			}
			if pref.UpdatedAt.After(cutoff) {
				continue
			}

			before := pref.Confidence
			pref.Confidence = prefs.Clamp01(before * factor)
			if pref.Confidence == before {
				continue
			}
			changed++

			if before-pref.Confidence >= journalDecayThreshold {
				r.emit(ctx, &journal.Event{
					Type:      journal.EventPreferenceDecayed,
					UserID:    profile.UserID,
					Category:  cat.Category,
					Attribute: pref.Attribute.Key,
					Description: fmt.Sprintf("%s confidence decayed %.2f -> %.2f after inactivity",
						pref.Attribute.Key, before, pref.Confidence),
					Delta: &journal.Delta{
						ConfidenceBefore: before,
						ConfidenceAfter:  pref.Confidence,
					},
				})
			}
		}
	}

	if changed > 0 {
		r.Recompute(profile, now)
	}
	return changed
}
