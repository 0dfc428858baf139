// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package session

import (
	"time"

	"github.com/jcalloway/prefero/internal/rank"
)

// State is where a session sits in the turn loop.
type State string

const (
	// StateAwaitingIntent is a freshly opened session before its first
	// signal.
	StateAwaitingIntent State = "AWAITING_INTENT"

	// StatePresenting is the transient state while a turn reconciles and
	// ranks; the session rests in StateAwaitingSignal once the product is
	// out.
	StatePresenting State = "PRESENTING_PRODUCT"

	// StateAwaitingSignal is the resting state between turns.
	StateAwaitingSignal State = "AWAITING_SIGNAL"

	// StateClarifying means the next signal answers a pending
	// clarification prompt.
	StateClarifying State = "CLARIFYING"

	// StateEnded is terminal: explicit exit, completed purchase, or idle
	// expiry.
	StateEnded State = "ENDED"
)

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// ClarifyReason says why a clarification turn was raised.
type ClarifyReason string

const (
	// ReasonConflict means the signal contradicted a hard constraint. The
	// next signal is applied with override: it is the user's answer.
	ReasonConflict ClarifyReason = "conflicting_constraint"

	// ReasonIndistinguishable means the top two candidates score within
	// the clarification band after enough turns.
	ReasonIndistinguishable ClarifyReason = "indistinguishable"
)

// Clarification is the prompt payload handed to the presentation layer when
// a session enters StateClarifying.
type Clarification struct {
	// Reason the clarification was raised.
	Reason ClarifyReason `json:"reason"`

	// Attribute in conflict, for ReasonConflict.
	Attribute string `json:"attribute,omitempty"`

	// Value in conflict, for ReasonConflict.
	Value string `json:"value,omitempty"`

	// ProductIDs are the near-tied candidates, for
	// ReasonIndistinguishable.
	ProductIDs []string `json:"product_ids,omitempty"`

	// Prompt is a renderable question for the user.
	Prompt string `json:"prompt"`
}

// Snapshot is a read-only view of a session for APIs and feeds.
type Snapshot struct {
	SessionID     string         `json:"session_id"`
	UserID        string         `json:"user_id"`
	Category      string         `json:"category"`
	State         State          `json:"state"`
	Turns         int            `json:"turns"`
	SeenCount     int            `json:"seen_count"`
	LastProductID string         `json:"last_product_id,omitempty"`
	Clarification *Clarification `json:"clarification,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	LastActiveAt  time.Time      `json:"last_active_at"`
}

// EventType labels live feed notifications.
type EventType string

const (
	EventOpened        EventType = "session.opened"
	EventTurn          EventType = "session.turn"
	EventClarification EventType = "session.clarification"
	EventEnded         EventType = "session.ended"
)

// Event is one notification pushed to live feeds (the websocket hub) as a
// session progresses.
type Event struct {
	Type      EventType           `json:"type"`
	SessionID string              `json:"session_id"`
	UserID    string              `json:"user_id"`
	Category  string              `json:"category"`
	State     State               `json:"state"`
	Turn      int                 `json:"turn,omitempty"`
	Product   *rank.ScoredProduct `json:"product,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Notifier receives session events. Implementations must not block and must
// not call back into the controller; Notify runs inline on the turn path
// with session state held.
type Notifier interface {
	Notify(Event)
}
