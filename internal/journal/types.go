// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package journal records every preference mutation as an explainable,
// queryable event trail. Each reconciliation outcome, promotion, transfer,
// decay sweep, and manual edit lands here with the utterance that caused it,
// so "why is this preferred?" always has an answer.
package journal

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes journal events.
type EventType string

const (
	// Preference lifecycle events
	EventPreferenceCreated      EventType = "preference.created"
	EventPreferenceReinforced   EventType = "preference.reinforced"
	EventPreferenceContradicted EventType = "preference.contradicted"
	EventPreferenceSuperseded   EventType = "preference.superseded"
	EventPreferencePromotedHard EventType = "preference.promoted_hard"
	EventPreferencePromotedLong EventType = "preference.promoted_longterm"
	EventPreferenceTransferred  EventType = "preference.transferred"
	EventPreferenceCorroborated EventType = "preference.corroborated"
	EventPreferenceDecayed      EventType = "preference.decayed"
	EventPreferenceEdited       EventType = "preference.edited"

	// Signal events
	EventSignalMalformed EventType = "signal.malformed"

	// Session events
	EventSessionStateChanged EventType = "session.state_changed"
)

// Delta captures strength and confidence before and after a mutation.
type Delta struct {
	StrengthBefore   float64 `json:"strength_before"`
	StrengthAfter    float64 `json:"strength_after"`
	ConfidenceBefore float64 `json:"confidence_before"`
	ConfidenceAfter  float64 `json:"confidence_after"`
}

// Event is one journal entry.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// UserID owns the affected profile.
	UserID string `json:"user_id"`

	// SessionID is the conversation the event arose in, if any.
	SessionID string `json:"session_id,omitempty"`

	// Category is the product category affected, if any.
	Category string `json:"category,omitempty"`

	// Attribute is the affected attribute key, if any.
	Attribute string `json:"attribute,omitempty"`

	// Value is the affected attribute value, if any.
	Value string `json:"value,omitempty"`

	// Polarity of the triggering signal, if any.
	Polarity string `json:"polarity,omitempty"`

	// Utterance is the user phrasing that caused the change. This is the
	// provenance link back to the conversation.
	Utterance string `json:"utterance,omitempty"`

	// Description is a human-readable summary.
	Description string `json:"description"`

	// Delta holds the numeric change, when one applies.
	Delta *Delta `json:"delta,omitempty"`

	// Metadata carries event-specific extras.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// RequestID correlates the event with an API request.
	RequestID string `json:"request_id,omitempty"`
}

// QueryFilter narrows journal queries. Zero values match everything.
type QueryFilter struct {
	Types     []EventType
	UserID    string
	SessionID string
	Category  string
	Attribute string
	StartTime *time.Time
	EndTime   *time.Time

	// SearchText matches against description and utterance,
	// case-insensitive.
	SearchText string

	OrderBy   string
	OrderDesc bool
	Limit     int
	Offset    int
}

// Stats summarizes the journal contents.
type Stats struct {
	TotalEvents      int64            `json:"total_events"`
	EventsByType     map[string]int64 `json:"events_by_type"`
	EventsByCategory map[string]int64 `json:"events_by_category"`
	OldestEvent      *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time       `json:"newest_event,omitempty"`
}

// Store persists journal events.
type Store interface {
	// Save persists one event.
	Save(ctx context.Context, event *Event) error

	// Get retrieves an event by ID.
	Get(ctx context.Context, id string) (*Event, error)

	// Query retrieves events matching the filter, newest first by default.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// Delete removes events older than the given time and reports how many
	// were removed.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)

	// GetStats summarizes the journal.
	GetStats(ctx context.Context) (*Stats, error)
}

// MustJSON converts a value to JSON, returning an empty object on error.
func MustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
