// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package prefs

import (
	"fmt"
	"strings"
	"time"
)

// Polarity classifies the direction of a user reaction.
type Polarity string

const (
	// PolarityPositive adds or reinforces a preferred value.
	PolarityPositive Polarity = "positive"

	// PolarityNegative adds or reinforces an avoided value.
	PolarityNegative Polarity = "negative"

	// PolarityQuestion is a neutral information request ("does it come in
	// suede?"). It never touches the preference buckets; it only raises the
	// interest counter for the queried attribute.
	PolarityQuestion Polarity = "question"
)

// String returns the polarity name.
func (p Polarity) String() string {
	return string(p)
}

// IsValid reports whether the polarity is one of the declared constants.
func (p Polarity) IsValid() bool {
	switch p {
	case PolarityPositive, PolarityNegative, PolarityQuestion:
		return true
	}
	return false
}

// Signal is the normalized output of the external signal interpreter for one
// utterance turn. It is the engine's only input besides catalog candidates
// and is immutable once produced.
type Signal struct {
	// UserID identifies the reacting user.
	UserID string `json:"user_id" validate:"required"`

	// Category is the product category the reaction applies to.
	Category string `json:"category" validate:"required"`

	// Polarity is the reaction direction.
	Polarity Polarity `json:"polarity" validate:"required,oneof=positive negative question"`

	// Attribute is the raw attribute key named by the interpreter. Unknown
	// keys are stored opaquely, never rejected.
	Attribute string `json:"attribute" validate:"required"`

	// Value is the attribute value the reaction refers to. Optional for
	// question polarity.
	Value string `json:"value,omitempty"`

	// SourceUtterance is the transcript fragment the interpreter derived
	// this signal from, kept for the transparency drawer.
	SourceUtterance string `json:"source_utterance,omitempty"`

	// StrengthHint is the interpreter's own confidence in [0,1].
	StrengthHint float64 `json:"strength_hint" validate:"gte=0,lte=1"`

	// ObservedAt is when the utterance happened. Zero means now.
	ObservedAt time.Time `json:"observed_at,omitempty"`
}

// Validate checks the contract fields. Violations are reported as
// ErrMalformedSignal so callers can log and skip the turn instead of
// failing it.
func (s *Signal) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil signal", ErrMalformedSignal)
	}
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("%w: missing user_id", ErrMalformedSignal)
	}
	if strings.TrimSpace(s.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrMalformedSignal)
	}
	if !s.Polarity.IsValid() {
		return fmt.Errorf("%w: invalid polarity %q", ErrMalformedSignal, s.Polarity)
	}
	if strings.TrimSpace(s.Attribute) == "" {
		return fmt.Errorf("%w: missing attribute", ErrMalformedSignal)
	}
	if s.Polarity != PolarityQuestion && strings.TrimSpace(s.Value) == "" {
		return fmt.Errorf("%w: missing value for %s polarity", ErrMalformedSignal, s.Polarity)
	}
	if s.StrengthHint < 0 || s.StrengthHint > 1 {
		return fmt.Errorf("%w: strength_hint %f outside [0,1]", ErrMalformedSignal, s.StrengthHint)
	}
	return nil
}

// Time returns ObservedAt, or fallback when unset.
func (s *Signal) Time(fallback time.Time) time.Time {
	if s.ObservedAt.IsZero() {
		return fallback
	}
	return s.ObservedAt
}
