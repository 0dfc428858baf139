// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package services

import (
	"context"
	"time"

	"github.com/jcalloway/prefero/internal/logging"
)

// SessionRegistry ends sessions idle past their TTL and reports how many
// were removed.
//
// Satisfied by *session.Controller.
type SessionRegistry interface {
	Sweep(ctx context.Context) int
}

// SessionSweeper drives the session controller's TTL eviction on a ticker.
// The controller owns the idle policy (including skipping sessions mid-turn);
// this service only supplies the heartbeat.
type SessionSweeper struct {
	registry SessionRegistry
	interval time.Duration
	name     string
}

// NewSessionSweeper creates a session sweeping service. A non-positive
// interval falls back to 5 minutes, which keeps eviction latency well under
// the default 2 hour session TTL.
func NewSessionSweeper(registry SessionRegistry, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionSweeper{
		registry: registry,
		interval: interval,
		name:     "session-sweeper",
	}
}

// Serve implements suture.Service. It sweeps on every tick until the context
// is canceled.
func (s *SessionSweeper) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", s.interval).Msg("Session sweeper starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Session sweeper shutting down")
			return ctx.Err()
		case <-ticker.C:
			if ended := s.registry.Sweep(ctx); ended > 0 {
				logging.Info().Int("ended", ended).Msg("Idle sessions swept")
			}
		}
	}
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *SessionSweeper) String() string {
	return s.name
}
