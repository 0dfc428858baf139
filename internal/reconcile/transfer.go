// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/prefs"
)

// transferRecord describes one value copied across categories, kept so the
// journal can explain the copy after the mutation is done.
type transferRecord struct {
	TargetCategory   string
	SourceCategory   string
	Attribute        prefs.Attribute
	Polarity         prefs.Polarity
	Value            string
	Strength         float64
	ConfidenceBefore float64
	ConfidenceAfter  float64
}

// seedCategory populates a newly created category with transferable long_term
// preferences from the rest of the profile. Each attribute takes its highest
// confidence source; transferred copies never chain into further transfers.
func (r *Reconciler) seedCategory(profile *prefs.UserProfile, target *prefs.CategoryProfile, now time.Time) []transferRecord {
	type source struct {
		category string
		pref     *prefs.AttributePreference
	}
	best := make(map[string]source)

	names := profile.TouchedCategories(target.Category)
	sort.Strings(names)

	for _, name := range names {
		cat := profile.Category(name)
		if cat == nil {
			continue
		}
		keys := make([]string, 0, len(cat.Attributes))
		for key := range cat.Attributes {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			pref := cat.Attributes[key]
			if !r.eligibleForTransfer(pref) {
				continue
			}
			if _, taken := target.Attributes[key]; taken {
				continue
			}
			if cur, ok := best[key]; !ok || pref.Confidence > cur.pref.Confidence {
				best[key] = source{category: name, pref: pref}
			}
		}
	}

	keys := make([]string, 0, len(best))
	for key := range best {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var records []transferRecord
	for _, key := range keys {
		src := best[key]
		records = append(records, r.transferPreference(target, src.category, src.pref, now)...)
	}
	return records
}

// pushTransfer copies a freshly promoted long_term preference into every
// other category the user has touched, skipping categories that already hold
// their own entry for the attribute.
func (r *Reconciler) pushTransfer(profile *prefs.UserProfile, from *prefs.CategoryProfile, pref *prefs.AttributePreference, now time.Time) []transferRecord {
	names := profile.TouchedCategories(from.Category)
	sort.Strings(names)

	var records []transferRecord
	for _, name := range names {
		target := profile.Category(name)
		if target == nil {
			continue
		}
		if _, taken := target.Attributes[pref.Attribute.Key]; taken {
			continue
		}
		records = append(records, r.transferPreference(target, from.Category, pref, now)...)
	}
	return records
}

// eligibleForTransfer reports whether a preference may seed another category.
func (r *Reconciler) eligibleForTransfer(pref *prefs.AttributePreference) bool {
	if pref.Scope != prefs.ScopeLongTerm {
		return false
	}
	if !pref.Attribute.Kind.Transferable() {
		return false
	}
	if pref.Origin == prefs.OriginTransferred {
		return false
	}
	return len(pref.Preferred) > 0 || len(pref.Avoided) > 0
}

// transferPreference installs a discounted copy of source into target. Copies
// arrive soft regardless of the source weight class and with zeroed streaks,
// so hard promotion always requires fresh direct evidence.
func (r *Reconciler) transferPreference(target *prefs.CategoryProfile, sourceCategory string, source *prefs.AttributePreference, now time.Time) []transferRecord {
	copied := prefs.NewAttributePreference(source.Attribute, "", now)
	copied.Scope = prefs.ScopeLongTerm
	copied.Origin = prefs.OriginTransferred
	copied.Confidence = prefs.Clamp01(source.Confidence * r.cfg.Transfer.Discount)
	target.Attributes[source.Attribute.Key] = copied

	var records []transferRecord
	appendBucket := func(from map[string]*prefs.ValueEntry, to map[string]*prefs.ValueEntry, polarity prefs.Polarity) {
		values := make([]string, 0, len(from))
		for v := range from {
			values = append(values, v)
		}
		sort.Strings(values)

		for _, v := range values {
			entry := from[v]
			to[v] = &prefs.ValueEntry{
				Strength:  entry.Strength,
				FirstSeen: now,
				LastSeen:  now,
			}
			records = append(records, transferRecord{
				TargetCategory:   target.Category,
				SourceCategory:   sourceCategory,
				Attribute:        source.Attribute,
				Polarity:         polarity,
				Value:            v,
				Strength:         entry.Strength,
				ConfidenceBefore: source.Confidence,
				ConfidenceAfter:  copied.Confidence,
			})
		}
	}
	appendBucket(source.Preferred, copied.Preferred, prefs.PolarityPositive)
	appendBucket(source.Avoided, copied.Avoided, prefs.PolarityNegative)
	return records
}

// emitTransfers journals one event per transferred value.
func (r *Reconciler) emitTransfers(ctx context.Context, userID, sessionID string, records []transferRecord) {
	if r.recorder == nil {
		return
	}
	for i := range records {
		rec := &records[i]
		bucket := "preferred"
		if rec.Polarity == prefs.PolarityNegative {
			bucket = "avoided"
		}
		r.recorder.Record(ctx, &journal.Event{
			Type:      journal.EventPreferenceTransferred,
			UserID:    userID,
			SessionID: sessionID,
			Category:  rec.TargetCategory,
			Attribute: rec.Attribute.Key,
			Value:     rec.Value,
			Polarity:  string(rec.Polarity),
			Description: fmt.Sprintf("%s %s %q transferred from %s at confidence %.2f",
				bucket, rec.Attribute.Key, rec.Value, rec.SourceCategory, rec.ConfidenceAfter),
			Delta: &journal.Delta{
				StrengthBefore:   rec.Strength,
				StrengthAfter:    rec.Strength,
				ConfidenceBefore: rec.ConfidenceBefore,
				ConfidenceAfter:  rec.ConfidenceAfter,
			},
			Metadata: journal.MustJSON(map[string]interface{}{
				"source_category": rec.SourceCategory,
				"discount":        r.cfg.Transfer.Discount,
			}),
		})
	}
}

// transferredCategories reduces records to the sorted unique target names.
func transferredCategories(records []transferRecord) []string {
	if len(records) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(records))
	var names []string
	for i := range records {
		name := records[i].TargetCategory
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
