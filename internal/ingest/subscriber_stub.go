// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

//go:build !nats

package ingest

import "context"

// Subscriber is a stub when the binary is built without the nats tag.
type Subscriber struct {
	// stub - no fields needed
}

// NewSubscriber returns ErrNATSNotEnabled in builds without the nats tag.
func NewSubscriber(cfg SubscriberConfig, logger interface{}) (*Subscriber, error) {
	return nil, ErrNATSNotEnabled
}

// Subscribe returns ErrNATSNotEnabled for the stub.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan interface{}, error) {
	return nil, ErrNATSNotEnabled
}

// Close is a no-op stub.
func (s *Subscriber) Close() error {
	return nil
}
