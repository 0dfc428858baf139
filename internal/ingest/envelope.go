// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package ingest

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/jcalloway/prefero/internal/prefs"
)

// SignalEnvelope is the wire format for one turn on the broker path: the
// session to drive plus the normalized signal to drive it with. The
// envelope ID doubles as the JetStream message ID, so republishing the
// same envelope within the stream's duplicate window is a no-op.
type SignalEnvelope struct {
	// EnvelopeID uniquely identifies this envelope across publishes and
	// redeliveries.
	EnvelopeID string `json:"envelope_id"`

	// SessionID is the conversation the signal belongs to.
	SessionID string `json:"session_id"`

	// Signal is the interpreter's normalized reading of the utterance.
	Signal prefs.Signal `json:"signal"`

	// Explain requests scoring fragments on the resulting turn. They only
	// matter to feed watchers, so interpreters usually leave this off.
	Explain bool `json:"explain,omitempty"`

	// Source names the interpreter that produced the envelope.
	Source string `json:"source,omitempty"`

	// PublishedAt is when the envelope was produced.
	PublishedAt time.Time `json:"published_at"`
}

// NewSignalEnvelope wraps a signal for publishing, stamping a fresh
// envelope ID and timestamp.
func NewSignalEnvelope(sessionID string, sig prefs.Signal) *SignalEnvelope {
	return &SignalEnvelope{
		EnvelopeID:  uuid.NewString(),
		SessionID:   sessionID,
		Signal:      sig,
		PublishedAt: time.Now().UTC(),
	}
}

// Validate checks the envelope-level fields. The signal inside is judged
// by the reconciler, which sees the session context this check does not.
func (e *SignalEnvelope) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil envelope", ErrMalformedEnvelope)
	}
	if e.EnvelopeID == "" {
		return fmt.Errorf("%w: missing envelope_id", ErrMalformedEnvelope)
	}
	if e.SessionID == "" {
		return fmt.Errorf("%w: missing session_id", ErrMalformedEnvelope)
	}
	return nil
}

// EncodeEnvelope marshals an envelope for publishing.
func EncodeEnvelope(env *SignalEnvelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope unmarshals a consumed payload. The caller validates.
func DecodeEnvelope(data []byte) (*SignalEnvelope, error) {
	var env SignalEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return &env, nil
}
