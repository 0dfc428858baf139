// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/jcalloway/prefero/internal/prefs"
)

func testSignal() prefs.Signal {
	return prefs.Signal{
		UserID:          "user-1",
		Category:        "laptops",
		Polarity:        prefs.PolarityPositive,
		Attribute:       "brand",
		Value:           "framework",
		SourceUtterance: "I like Framework laptops",
		ObservedAt:      time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}
}

func TestNewSignalEnvelope(t *testing.T) {
	env := NewSignalEnvelope("session-1", testSignal())

	if env.EnvelopeID == "" {
		t.Error("Expected EnvelopeID to be set")
	}
	if env.SessionID != "session-1" {
		t.Errorf("Expected SessionID=session-1, got %s", env.SessionID)
	}
	if env.Signal.UserID != "user-1" {
		t.Errorf("Expected Signal.UserID=user-1, got %s", env.Signal.UserID)
	}
	if env.PublishedAt.IsZero() {
		t.Error("Expected PublishedAt to be set")
	}
	if env.Explain {
		t.Error("Expected Explain=false by default")
	}

	// IDs must differ across envelopes or the duplicate window would
	// collapse distinct turns.
	other := NewSignalEnvelope("session-1", testSignal())
	if env.EnvelopeID == other.EnvelopeID {
		t.Errorf("Expected distinct envelope IDs, both were %s", env.EnvelopeID)
	}
}

func TestSignalEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		env     *SignalEnvelope
		wantErr bool
	}{
		{
			name: "valid envelope",
			env: &SignalEnvelope{
				EnvelopeID: "env-1",
				SessionID:  "session-1",
				Signal:     testSignal(),
			},
			wantErr: false,
		},
		{
			name: "missing envelope_id",
			env: &SignalEnvelope{
				SessionID: "session-1",
				Signal:    testSignal(),
			},
			wantErr: true,
		},
		{
			name: "missing session_id",
			env: &SignalEnvelope{
				EnvelopeID: "env-1",
				Signal:     testSignal(),
			},
			wantErr: true,
		},
		{
			name:    "nil envelope",
			env:     nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if !errors.Is(err, ErrMalformedEnvelope) {
					t.Errorf("Expected ErrMalformedEnvelope, got %v", err)
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestEncodeDecodeEnvelope(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		env := NewSignalEnvelope("session-1", testSignal())
		env.Explain = true
		env.Source = "interpreter-a"

		data, err := EncodeEnvelope(env)
		if err != nil {
			t.Fatalf("EncodeEnvelope failed: %v", err)
		}

		decoded, err := DecodeEnvelope(data)
		if err != nil {
			t.Fatalf("DecodeEnvelope failed: %v", err)
		}

		if decoded.EnvelopeID != env.EnvelopeID {
			t.Errorf("EnvelopeID mismatch: got %s, want %s", decoded.EnvelopeID, env.EnvelopeID)
		}
		if decoded.SessionID != env.SessionID {
			t.Errorf("SessionID mismatch: got %s, want %s", decoded.SessionID, env.SessionID)
		}
		if !decoded.Explain {
			t.Error("Expected Explain to survive the round trip")
		}
		if decoded.Source != "interpreter-a" {
			t.Errorf("Source mismatch: got %s", decoded.Source)
		}
		if decoded.Signal.Polarity != prefs.PolarityPositive {
			t.Errorf("Signal.Polarity mismatch: got %s", decoded.Signal.Polarity)
		}
		if !decoded.Signal.ObservedAt.Equal(env.Signal.ObservedAt) {
			t.Errorf("Signal.ObservedAt mismatch: got %v, want %v", decoded.Signal.ObservedAt, env.Signal.ObservedAt)
		}
	})

	t.Run("encode rejects invalid envelope", func(t *testing.T) {
		env := &SignalEnvelope{Signal: testSignal()} // No IDs
		if _, err := EncodeEnvelope(env); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("Expected ErrMalformedEnvelope, got %v", err)
		}
	})

	t.Run("decode rejects garbage", func(t *testing.T) {
		if _, err := DecodeEnvelope([]byte("not json")); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("Expected ErrMalformedEnvelope, got %v", err)
		}
	})

	t.Run("decode passes structurally valid but incomplete payloads", func(t *testing.T) {
		// Decode only parses. Validate is a separate step so the consumer
		// can journal the two failure modes with distinct reasons.
		env, err := DecodeEnvelope([]byte(`{"signal":{}}`))
		if err != nil {
			t.Fatalf("Unexpected decode error: %v", err)
		}
		if err := env.Validate(); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("Expected validation to catch missing IDs, got %v", err)
		}
	})
}
