// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

//go:build !nats

package ingest

import "context"

// EmbeddedServer is a stub when the binary is built without the nats tag.
type EmbeddedServer struct {
	// stub - no fields needed
}

// NewEmbeddedServer returns ErrNATSNotEnabled in builds without the nats
// tag.
func NewEmbeddedServer(cfg ServerConfig) (*EmbeddedServer, error) {
	return nil, ErrNATSNotEnabled
}

// ClientURL returns an empty URL for the stub.
func (s *EmbeddedServer) ClientURL() string {
	return ""
}

// Shutdown is a no-op stub.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	return nil
}

// IsRunning always reports false for the stub.
func (s *EmbeddedServer) IsRunning() bool {
	return false
}

// JetStreamEnabled always reports false for the stub.
func (s *EmbeddedServer) JetStreamEnabled() bool {
	return false
}
