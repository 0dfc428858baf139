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

// Sentiment is the terminal judgment of an interaction.
type Sentiment string

const (
	// SentimentGood marks a product the user liked.
	SentimentGood Sentiment = "good"

	// SentimentBad marks a product the user rejected.
	SentimentBad Sentiment = "bad"
)

// IsValid reports whether the sentiment is one of the declared constants.
func (s Sentiment) IsValid() bool {
	return s == SentimentGood || s == SentimentBad
}

// Interaction records one terminal judgment for a (user, product) pair.
// At most one interaction exists per pair: a repeat judgment overwrites the
// previous one (idempotent upsert), it never appends.
type Interaction struct {
	// UserID identifies the judging user.
	UserID string `json:"user_id" validate:"required"`

	// ProductID identifies the judged product.
	ProductID string `json:"product_id" validate:"required"`

	// Sentiment is good or bad.
	Sentiment Sentiment `json:"sentiment" validate:"required,oneof=good bad"`

	// Note is an optional free-text remark.
	Note string `json:"note,omitempty"`

	// CreatedAt is when the pair was first judged.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the most recent overwrite.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the interaction fields.
func (i *Interaction) Validate() error {
	if strings.TrimSpace(i.UserID) == "" {
		return fmt.Errorf("interaction missing user_id")
	}
	if strings.TrimSpace(i.ProductID) == "" {
		return fmt.Errorf("interaction missing product_id")
	}
	if !i.Sentiment.IsValid() {
		return fmt.Errorf("interaction has invalid sentiment %q", i.Sentiment)
	}
	return nil
}
