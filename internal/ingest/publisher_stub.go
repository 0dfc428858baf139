// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

//go:build !nats

package ingest

import (
	"context"

	"github.com/sony/gobreaker/v2"
)

// Publisher is a stub when the binary is built without the nats tag.
type Publisher struct {
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
}

// NewPublisher returns ErrNATSNotEnabled in builds without the nats tag.
func NewPublisher(cfg PublisherConfig, logger interface{}) (*Publisher, error) {
	return nil, ErrNATSNotEnabled
}

// SetCircuitBreaker stores the breaker for interface compatibility.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

// Publish returns ErrNATSNotEnabled for the stub.
func (p *Publisher) Publish(ctx context.Context, topic string, msg interface{}) error {
	return ErrNATSNotEnabled
}

// PublishEnvelope returns ErrNATSNotEnabled for the stub.
func (p *Publisher) PublishEnvelope(ctx context.Context, env *SignalEnvelope) error {
	return ErrNATSNotEnabled
}

// Close is a no-op stub.
func (p *Publisher) Close() error {
	return nil
}
