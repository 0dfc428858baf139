// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

//go:build !nats

package ingest

import (
	"context"

	"github.com/jcalloway/prefero/internal/journal"
)

// Service is a stub when the binary is built without the nats tag.
type Service struct {
	// stub - no fields needed
}

// NewService returns ErrNATSNotEnabled in builds without the nats tag.
// Callers that see this error should continue without broker ingest; the
// REST surface handles turns either way.
func NewService(cfg ServiceConfig, processor TurnProcessor, recorder *journal.Recorder) (*Service, error) {
	return nil, ErrNATSNotEnabled
}

// String identifies the service in supervisor logs.
func (s *Service) String() string {
	return "signal-ingest"
}

// Serve returns ErrNATSNotEnabled for the stub.
func (s *Service) Serve(ctx context.Context) error {
	return ErrNATSNotEnabled
}
