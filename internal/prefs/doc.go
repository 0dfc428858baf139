// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package prefs defines the preference domain model and the engine's outcome
// taxonomy.
//
// # Model
//
// A UserProfile owns CategoryProfiles keyed by category name; each category
// maps attribute keys to AttributePreferences, the atomic unit of learning.
// A preference carries two value buckets (preferred, avoided) with per-value
// strengths, plus scope (session or long_term), weight class (soft or hard),
// confidence, and origin (direct, inferred, transferred).
//
// # Invariants
//
// Strength and confidence values stay in [0,1]. A value never appears in
// both buckets of the same attribute: the most recent polarity wins and the
// supersede is journaled. Interaction counters only increase. Preferences
// are never hard-deleted; superseded entries lose confidence instead so the
// transparency drawer can always explain how the model got here.
//
// # Signals
//
// A Signal is the normalized output of the external signal interpreter, one
// per utterance turn. Unknown attribute keys are preserved under the opaque
// extension kind rather than rejected. Malformed signals fail validation
// with ErrMalformedSignal, the only outcome callers log and skip.
package prefs
