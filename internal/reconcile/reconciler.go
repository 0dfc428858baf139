// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package reconcile folds interpreted signals into user profiles. One call to
// Apply handles the whole policy for a turn: bucket placement with
// most-recent-wins contradiction handling, strength and confidence updates,
// hard and long_term promotion, cross-category transfer, and the journal
// trail explaining each of those.
//
// The reconciler mutates the profile it is handed and never touches storage;
// callers run it inside a store.Update round so version conflicts retry with
// a fresh profile.
package reconcile

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/prefs"
)

// Outcome names what a signal did to the profile.
type Outcome string

const (
	// OutcomeCreated means the value entered its bucket for the first time.
	OutcomeCreated Outcome = "created"

	// OutcomeReinforced means an existing entry grew stronger.
	OutcomeReinforced Outcome = "reinforced"

	// OutcomeSuperseded means the signal displaced earlier state: a polarity
	// flip on a soft preference, or a restated bounded constraint.
	OutcomeSuperseded Outcome = "superseded"

	// OutcomeNoted means a question raised the attribute's interest counter
	// and nothing else.
	OutcomeNoted Outcome = "noted"

	// OutcomeConflict means the signal contradicted a hard constraint and
	// was not applied.
	OutcomeConflict Outcome = "conflict"

	// OutcomeEdited means a drawer edit mutated the profile directly:
	// a relaxation or a retired value.
	OutcomeEdited Outcome = "edited"
)

// Options adjusts how a signal is applied.
type Options struct {
	// SessionID is the conversation the signal belongs to. New preferences
	// start scoped to it.
	SessionID string

	// Override applies a signal even when it contradicts a hard constraint.
	// Set after the user confirms a clarification prompt, and for
	// transparency drawer edits, which always win.
	Override bool
}

// Result reports what Apply did.
type Result struct {
	// Outcome is the primary effect.
	Outcome Outcome `json:"outcome"`

	// Category the signal landed in.
	Category string `json:"category"`

	// Attribute the signal landed on.
	Attribute prefs.Attribute `json:"attribute"`

	// Value after normalization, empty for questions without one.
	Value string `json:"value,omitempty"`

	// Strength of the touched entry after the update.
	Strength float64 `json:"strength"`

	// Confidence of the attribute preference after the update.
	Confidence float64 `json:"confidence"`

	// Scope of the preference after the update.
	Scope prefs.Scope `json:"scope"`

	// WeightClass of the preference after the update.
	WeightClass prefs.WeightClass `json:"weight_class"`

	// PromotedHard is true when this signal hardened the preference.
	PromotedHard bool `json:"promoted_hard,omitempty"`

	// PromotedLongTerm is true when this signal promoted the preference to
	// long_term scope.
	PromotedLongTerm bool `json:"promoted_long_term,omitempty"`

	// Corroborated is true when this signal confirmed a transferred
	// preference with direct evidence.
	Corroborated bool `json:"corroborated,omitempty"`

	// TransferredTo lists categories that received a transferred copy as a
	// consequence of this signal, sorted.
	TransferredTo []string `json:"transferred_to,omitempty"`
}

// Reconciler applies signals to profiles under one Config.
type Reconciler struct {
	cfg      Config
	recorder *journal.Recorder
	nowFunc  func() time.Time
}

// New creates a Reconciler. The recorder may be nil; reconciliation then
// runs without a journal trail.
func New(cfg Config, recorder *journal.Recorder) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reconcile config: %w", err)
	}
	return &Reconciler{
		cfg:      cfg,
		recorder: recorder,
		nowFunc:  time.Now,
	}, nil
}

// Config returns the active configuration.
func (r *Reconciler) Config() Config {
	return r.cfg
}

// Apply folds one signal into the profile and reports what happened.
//
// The profile is mutated in place. On ErrConflictingConstraint the profile is
// unchanged and the returned Result carries OutcomeConflict so callers can
// render a clarification; on ErrMalformedSignal the profile is unchanged and
// the Result is nil. No other errors occur.
func (r *Reconciler) Apply(ctx context.Context, profile *prefs.UserProfile, sig *prefs.Signal, opts Options) (*Result, error) {
	if profile == nil {
		return nil, fmt.Errorf("nil profile")
	}
	if err := sig.Validate(); err != nil {
		if r.recorder != nil {
			r.recorder.RecordMalformedSignal(ctx, signalUserID(sig), opts.SessionID, signalUtterance(sig), err.Error())
		}
		return nil, err
	}

	now := sig.Time(r.nowFunc()).UTC()
	category := prefs.NormalizeValue(sig.Category)
	attr := prefs.ParseAttribute(sig.Attribute)
	value := prefs.NormalizeValue(sig.Value)

	newCategory := profile.Category(category) == nil
	cat := profile.EnsureCategory(category, now)

	// A category touched for the first time inherits transferable long_term
	// preferences the user built up elsewhere, at discounted confidence.
	if newCategory && r.cfg.Transfer.Enabled {
		seeded := r.seedCategory(profile, cat, now)
		r.emitTransfers(ctx, profile.UserID, opts.SessionID, seeded)
	}

	result := &Result{Category: category, Attribute: attr, Value: value}

	pref := cat.EnsurePreference(attr, opts.SessionID, now)

	// An attribute restated in a later session follows that session: the
	// stored evidence is the user's own, and the new session surfaced it.
	if pref.Scope == prefs.ScopeSession && opts.SessionID != "" && pref.SessionID != opts.SessionID {
		pref.SessionID = opts.SessionID
	}

	if sig.Polarity == prefs.PolarityQuestion {
		pref.Interest++
		pref.UpdatedAt = now
		cat.LastInteraction = now
		result.Outcome = OutcomeNoted
		result.Confidence = pref.Confidence
		result.Scope = pref.Scope
		result.WeightClass = pref.WeightClass
		return result, nil
	}

	target, opposite := pref.Preferred, pref.Avoided
	if sig.Polarity == prefs.PolarityNegative {
		target, opposite = pref.Avoided, pref.Preferred
	}

	// A polarity flip against a hard constraint is rejected, not applied.
	// The session controller turns this into a clarification; Override is
	// how a confirmed clarification or a drawer edit gets back in.
	if _, held := opposite[value]; held && pref.WeightClass == prefs.WeightHard && !opts.Override {
		result.Outcome = OutcomeConflict
		result.Confidence = pref.Confidence
		result.Scope = pref.Scope
		result.WeightClass = pref.WeightClass
		r.emit(ctx, &journal.Event{
			Type:        journal.EventPreferenceContradicted,
			UserID:      profile.UserID,
			SessionID:   opts.SessionID,
			Category:    category,
			Attribute:   attr.Key,
			Value:       value,
			Polarity:    string(sig.Polarity),
			Utterance:   sig.SourceUtterance,
			Description: fmt.Sprintf("signal contradicts hard %s constraint on %q, not applied", attr.Key, value),
		})
		return result, fmt.Errorf("%s=%q contradicts a hard constraint: %w", attr.Key, value, prefs.ErrConflictingConstraint)
	}

	confBefore := pref.Confidence
	superseded := false

	// Most recent polarity wins: the value leaves the opposite bucket and
	// the contradiction costs confidence.
	if _, held := opposite[value]; held {
		delete(opposite, value)
		pref.Confidence = prefs.Clamp01(pref.Confidence * (1 - r.cfg.ContradictionPenalty))
		superseded = true
	}

	// Bounded constraints replace rather than accumulate: a restated budget
	// displaces the previous one instead of sitting next to it.
	if attr.Kind.Bounded() {
		for v := range target {
			if v != value {
				delete(target, v)
				superseded = true
			}
		}
	}

	hint := sig.StrengthHint
	entry, exists := target[value]
	strengthBefore := 0.0
	if exists {
		strengthBefore = entry.Strength
		entry.Strength = prefs.Clamp01(entry.Strength + r.cfg.LearningRate*hint*(1-entry.Strength))
		entry.Reinforcements++
		entry.LastSeen = now
		result.Outcome = OutcomeReinforced
	} else {
		entry = &prefs.ValueEntry{
			Strength:       prefs.Clamp01(hint),
			Reinforcements: 1,
			FirstSeen:      now,
			LastSeen:       now,
		}
		target[value] = entry
		result.Outcome = OutcomeCreated
	}
	if superseded {
		result.Outcome = OutcomeSuperseded
	}

	if hint >= r.cfg.HardPromotionStrength {
		entry.Streak++
	} else {
		entry.Streak = 0
	}

	pref.Confidence = prefs.Clamp01(pref.Confidence + r.cfg.ConfidenceGain*hint*(1-pref.Confidence))
	pref.UpdatedAt = now
	cat.LastInteraction = now

	// Direct evidence in the preference's own category corroborates a
	// transferred copy. Happens before the promotion checks so a confirmed
	// transfer can start earning hard promotion from this signal onward.
	if pref.Origin == prefs.OriginTransferred {
		pref.Origin = prefs.OriginDirect
		result.Corroborated = true
	}

	if pref.WeightClass == prefs.WeightSoft {
		switch {
		case attr.Kind.Bounded():
			// Numeric and bounded constraints are filters from the start.
			pref.WeightClass = prefs.WeightHard
			result.PromotedHard = true
		case entry.Streak >= r.cfg.HardPromotionStreak:
			pref.WeightClass = prefs.WeightHard
			result.PromotedHard = true
		}
	}

	var transferred []transferRecord
	if pref.Scope == prefs.ScopeSession && pref.Confidence >= r.cfg.LongTermThreshold {
		pref.Scope = prefs.ScopeLongTerm
		pref.SessionID = ""
		result.PromotedLongTerm = true

		// Crossing into long_term is what makes a preference eligible to
		// travel; push it to the categories the user already touched.
		if r.cfg.Transfer.Enabled && attr.Kind.Transferable() {
			transferred = r.pushTransfer(profile, cat, pref, now)
			result.TransferredTo = transferredCategories(transferred)
		}
	}

	r.Recompute(profile, now)

	result.Strength = entry.Strength
	result.Confidence = pref.Confidence
	result.Scope = pref.Scope
	result.WeightClass = pref.WeightClass

	r.journalApply(ctx, profile.UserID, opts.SessionID, sig, result, &journal.Delta{
		StrengthBefore:   strengthBefore,
		StrengthAfter:    entry.Strength,
		ConfidenceBefore: confBefore,
		ConfidenceAfter:  pref.Confidence,
	})
	r.emitTransfers(ctx, profile.UserID, opts.SessionID, transferred)

	logger := logging.Ctx(ctx)
	logger.Debug().
		Str("user_id", profile.UserID).
		Str("category", category).
		Str("attribute", attr.Key).
		Str("value", value).
		Str("outcome", string(result.Outcome)).
		Float64("strength", result.Strength).
		Float64("confidence", result.Confidence).
		Msg("Signal reconciled")

	return result, nil
}

// journalApply records the primary outcome and any promotions it caused.
func (r *Reconciler) journalApply(ctx context.Context, userID, sessionID string, sig *prefs.Signal, res *Result, delta *journal.Delta) {
	if r.recorder == nil {
		return
	}

	base := journal.Event{
		UserID:    userID,
		SessionID: sessionID,
		Category:  res.Category,
		Attribute: res.Attribute.Key,
		Value:     res.Value,
		Polarity:  string(sig.Polarity),
		Utterance: sig.SourceUtterance,
	}

	bucket := "preferred"
	if sig.Polarity == prefs.PolarityNegative {
		bucket = "avoided"
	}

	main := base
	main.Delta = delta
	switch res.Outcome {
	case OutcomeCreated:
		main.Type = journal.EventPreferenceCreated
		main.Description = fmt.Sprintf("%s %s %q entered at strength %.2f", bucket, res.Attribute.Key, res.Value, delta.StrengthAfter)
	case OutcomeReinforced:
		main.Type = journal.EventPreferenceReinforced
		main.Description = fmt.Sprintf("%s %s %q reinforced %.2f -> %.2f", bucket, res.Attribute.Key, res.Value, delta.StrengthBefore, delta.StrengthAfter)
	case OutcomeSuperseded:
		main.Type = journal.EventPreferenceSuperseded
		main.Description = fmt.Sprintf("%s %s %q superseded earlier state, now at strength %.2f", bucket, res.Attribute.Key, res.Value, delta.StrengthAfter)
	default:
		return
	}
	r.emit(ctx, &main)

	if res.Corroborated {
		ev := base
		ev.Type = journal.EventPreferenceCorroborated
		ev.Description = fmt.Sprintf("transferred %s preference corroborated by direct signal", res.Attribute.Key)
		r.emit(ctx, &ev)
	}
	if res.PromotedHard {
		ev := base
		ev.Type = journal.EventPreferencePromotedHard
		ev.Description = fmt.Sprintf("%s %q hardened into a filter", res.Attribute.Key, res.Value)
		r.emit(ctx, &ev)
	}
	if res.PromotedLongTerm {
		ev := base
		ev.Type = journal.EventPreferencePromotedLong
		ev.Description = fmt.Sprintf("%s preference promoted to long_term at confidence %.2f", res.Attribute.Key, delta.ConfidenceAfter)
		r.emit(ctx, &ev)
	}
}

// Recompute rolls attribute confidences up into category and profile
// confidence, weighting each constituent by how recently it was touched.
// Apply and Decay call it; manual profile edits should too.
func (r *Reconciler) Recompute(profile *prefs.UserProfile, now time.Time) {
	var catNum, catDen float64
	for _, cat := range profile.Categories {
		var num, den float64
		for _, pref := range cat.Attributes {
			w := r.recencyWeight(now, pref.UpdatedAt)
			num += w * pref.Confidence
			den += w
		}
		if den > 0 {
			cat.Confidence = prefs.Clamp01(num / den)
		} else {
			cat.Confidence = 0
		}

		cw := r.recencyWeight(now, cat.LastInteraction)
		catNum += cw * cat.Confidence
		catDen += cw
	}
	if catDen > 0 {
		profile.Confidence = prefs.Clamp01(catNum / catDen)
	} else {
		profile.Confidence = 0
	}
}

// recencyWeight halves for every half-life elapsed since the timestamp.
func (r *Reconciler) recencyWeight(now, at time.Time) float64 {
	if at.IsZero() || !at.Before(now) {
		return 1
	}
	age := now.Sub(at)
	return math.Pow(0.5, float64(age)/float64(r.cfg.HalfLife))
}

// emit sends one event to the journal when a recorder is attached.
func (r *Reconciler) emit(ctx context.Context, ev *journal.Event) {
	if r.recorder == nil {
		return
	}
	r.recorder.Record(ctx, ev)
}

func signalUserID(sig *prefs.Signal) string {
	if sig == nil {
		return ""
	}
	return sig.UserID
}

func signalUtterance(sig *prefs.Signal) string {
	if sig == nil {
		return ""
	}
	return sig.SourceUtterance
}
