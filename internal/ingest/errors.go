// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package ingest

import "errors"

// ErrNATSNotEnabled is returned when broker features are used in a binary
// built without the nats tag.
var ErrNATSNotEnabled = errors.New("NATS signal ingest not enabled (build with -tags nats)")

// ErrPublisherClosed is returned when publishing through a closed publisher.
var ErrPublisherClosed = errors.New("publisher is closed")

// ErrMalformedEnvelope marks envelopes that cannot drive a turn: undecodable
// payloads and envelopes missing required fields. They are acked and
// journaled, never redelivered.
var ErrMalformedEnvelope = errors.New("malformed signal envelope")
