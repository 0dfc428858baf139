// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// errors.go - Engine outcome taxonomy shared across packages.
package prefs

import "errors"

var (
	// ErrConflictingConstraint indicates a signal contradicts an active hard
	// constraint. The signal is not applied; the session controller should
	// turn this into a clarification prompt.
	ErrConflictingConstraint = errors.New("signal conflicts with hard constraint")

	// ErrVersionConflict indicates a profile write lost the optimistic
	// concurrency race. Recoverable: re-fetch and re-apply.
	ErrVersionConflict = errors.New("profile version conflict")

	// ErrNoCandidates indicates hard filtering removed every candidate.
	// Recoverable: relax the most recently hardened constraint and re-rank.
	ErrNoCandidates = errors.New("no candidates after hard filtering")

	// ErrMalformedSignal indicates the signal interpreter produced a signal
	// missing required fields. The turn is logged and skipped; nothing else
	// in this taxonomy is ever swallowed.
	ErrMalformedSignal = errors.New("malformed signal")
)
