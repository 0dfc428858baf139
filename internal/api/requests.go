// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package api request types with validation tags.
//
// requests.go - Request structs for all write and query endpoints
//
// Every request body is decoded into one of these structs and passed
// through validateRequest before any handler logic runs, so handlers
// only ever see structurally valid input. Query-parameter endpoints
// populate their struct by hand and validate the same way.
package api

import (
	"time"

	"github.com/jcalloway/prefero/internal/catalog"
	"github.com/jcalloway/prefero/internal/prefs"
)

// OpenSessionRequest is the body for POST /api/v1/sessions.
type OpenSessionRequest struct {
	// UserID identifies the shopper the session belongs to
	UserID string `json:"user_id" validate:"required,min=1,max=128"`

	// Category is the product category the conversation starts in
	Category string `json:"category" validate:"required,min=1,max=100"`
}

// SignalRequest is the body for POST /api/v1/sessions/{id}/signals.
// UserID and Category may be omitted; the session supplies them.
type SignalRequest struct {
	// UserID must match the session user when present
	UserID string `json:"user_id,omitempty" validate:"omitempty,max=128"`

	// Category moves the conversation to another category when present
	Category string `json:"category,omitempty" validate:"omitempty,max=100"`

	// Polarity is the reaction direction: positive, negative, or question
	Polarity string `json:"polarity" validate:"required,oneof=positive negative question"`

	// Attribute is the attribute the reaction refers to
	Attribute string `json:"attribute" validate:"required,max=100"`

	// Value is the attribute value; optional for question polarity
	Value string `json:"value,omitempty" validate:"omitempty,max=200"`

	// SourceUtterance is the transcript fragment behind the signal
	SourceUtterance string `json:"source_utterance,omitempty" validate:"omitempty,max=500"`

	// StrengthHint is the interpreter's confidence in [0,1]
	StrengthHint float64 `json:"strength_hint,omitempty" validate:"gte=0,lte=1"`

	// ObservedAt is when the utterance happened; zero means now
	ObservedAt time.Time `json:"observed_at,omitempty"`
}

// Signal converts the request into the domain signal.
func (req *SignalRequest) Signal() *prefs.Signal {
	return &prefs.Signal{
		UserID:          req.UserID,
		Category:        req.Category,
		Polarity:        prefs.Polarity(req.Polarity),
		Attribute:       req.Attribute,
		Value:           req.Value,
		SourceUtterance: req.SourceUtterance,
		StrengthHint:    req.StrengthHint,
		ObservedAt:      req.ObservedAt,
	}
}

// PreferenceEditRequest is the body for
// PATCH /api/v1/profiles/{user_id}/preferences. Value is required for
// every action except relax, which targets the whole attribute.
type PreferenceEditRequest struct {
	// Category the edited preference lives in
	Category string `json:"category" validate:"required,max=100"`

	// Attribute being edited
	Attribute string `json:"attribute" validate:"required,max=100"`

	// Action is one of set, avoid, relax, remove
	Action string `json:"action" validate:"required,oneof=set avoid relax remove"`

	// Value names the preference value for set, avoid, and remove
	Value string `json:"value,omitempty" validate:"required_unless=Action relax,omitempty,max=200"`

	// Strength overrides the default drawer strength for set and avoid
	Strength float64 `json:"strength,omitempty" validate:"gte=0,lte=1"`
}

// JournalQueryRequest holds the parsed query parameters for
// GET /api/v1/profiles/{user_id}/journal.
type JournalQueryRequest struct {
	// Types filters to the given event types (comma-separated)
	Types []string `json:"types,omitempty" validate:"omitempty,max=20"`

	// SessionID filters to one conversation
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=64"`

	// Category filters by category
	Category string `json:"category,omitempty" validate:"omitempty,max=100"`

	// Attribute filters by attribute key
	Attribute string `json:"attribute,omitempty" validate:"omitempty,max=100"`

	// StartTime and EndTime bound the event timestamp (RFC3339)
	StartTime string `json:"start_time,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime   string `json:"end_time,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`

	// SearchText matches against utterances and descriptions
	SearchText string `json:"search_text,omitempty" validate:"omitempty,max=200"`

	// OrderBy selects the sort column
	OrderBy string `json:"order_by,omitempty" validate:"omitempty,oneof=timestamp event_type category attribute"`

	// OrderDesc reverses the sort (default true, newest first)
	OrderDesc bool `json:"order_desc,omitempty"`

	// Limit caps results
	Limit int `json:"limit,omitempty" validate:"omitempty,min=1,max=500"`

	// Offset skips results for pagination
	Offset int `json:"offset,omitempty" validate:"omitempty,gte=0"`
}

// UpsertProductsRequest is the body for PUT /api/v1/products.
type UpsertProductsRequest struct {
	// Products to insert or update, validated individually
	Products []catalog.Product `json:"products" validate:"required,min=1,max=500"`
}

// SearchProductsRequest holds the parsed query parameters for
// GET /api/v1/products/search.
type SearchProductsRequest struct {
	// Brands filters to any of the given brands (comma-separated)
	Brands []string `json:"brands,omitempty" validate:"omitempty,max=20"`

	// Category filters by exact category
	Category string `json:"category,omitempty" validate:"omitempty,max=100"`

	// SubCategory matches the product type attribute
	SubCategory string `json:"sub_category,omitempty" validate:"omitempty,max=100"`

	// StyleTags, Colors, Materials, UseCases match attribute values
	StyleTags []string `json:"style_tags,omitempty" validate:"omitempty,max=20"`
	Colors    []string `json:"colors,omitempty" validate:"omitempty,max=20"`
	Materials []string `json:"materials,omitempty" validate:"omitempty,max=20"`
	UseCases  []string `json:"use_cases,omitempty" validate:"omitempty,max=20"`

	// PriceMin and PriceMax bound the price, inclusive
	PriceMin *float64 `json:"price_min,omitempty" validate:"omitempty,gte=0"`
	PriceMax *float64 `json:"price_max,omitempty" validate:"omitempty,gte=0"`

	// Size matches the size attribute
	Size string `json:"size,omitempty" validate:"omitempty,max=50"`

	// Text is a free-text search over title and description
	Text string `json:"text,omitempty" validate:"omitempty,max=200"`

	// Limit caps results
	Limit int `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`

	// Offset skips results for pagination
	Offset int `json:"offset,omitempty" validate:"omitempty,gte=0"`
}

// InteractionRequest is the body for PUT /api/v1/interactions. When
// SessionID is set, the judgment also feeds the live session; Selected
// marks the purchase that completes it.
type InteractionRequest struct {
	// UserID is the judging user
	UserID string `json:"user_id" validate:"required,max=128"`

	// ProductID is the judged product
	ProductID string `json:"product_id" validate:"required,max=128"`

	// Sentiment is good or bad
	Sentiment string `json:"sentiment" validate:"required,oneof=good bad"`

	// Note is optional free-text context
	Note string `json:"note,omitempty" validate:"omitempty,max=1000"`

	// SessionID routes the judgment into a live session
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=64"`

	// Selected marks the product as chosen, ending the session
	Selected bool `json:"selected,omitempty"`
}

// Interaction converts the request into the domain interaction.
func (req *InteractionRequest) Interaction() *prefs.Interaction {
	return &prefs.Interaction{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Sentiment: prefs.Sentiment(req.Sentiment),
		Note:      req.Note,
	}
}

// ListInteractionsRequest holds the parsed query parameters for
// GET /api/v1/interactions.
type ListInteractionsRequest struct {
	// UserID filters by judging user
	UserID string `json:"user_id,omitempty" validate:"omitempty,max=128"`

	// ProductID filters by judged product
	ProductID string `json:"product_id,omitempty" validate:"omitempty,max=128"`

	// Sentiment filters by good or bad
	Sentiment string `json:"sentiment,omitempty" validate:"omitempty,oneof=good bad"`

	// Limit caps results
	Limit int `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`

	// Offset skips results for pagination
	Offset int `json:"offset,omitempty" validate:"omitempty,gte=0"`
}

// InteractionStatsRequest holds the parsed query parameters for
// GET /api/v1/interactions/stats.
type InteractionStatsRequest struct {
	// UserID is the user whose sentiment is aggregated
	UserID string `json:"user_id" validate:"required,max=128"`

	// Category scopes the aggregation
	Category string `json:"category" validate:"required,max=100"`
}
