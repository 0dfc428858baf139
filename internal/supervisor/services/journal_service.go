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

// EventPruner deletes journal events that aged past their retention window
// and reports how many were removed.
//
// Satisfied by *journal.Recorder.
type EventPruner interface {
	Prune(ctx context.Context) (int64, error)
}

// JournalPruner runs retention pruning over the preference journal on a
// ticker. The journal is append-only by policy; pruning is the one sanctioned
// deletion, and it only ever removes events older than the configured
// retention.
type JournalPruner struct {
	pruner   EventPruner
	interval time.Duration
	name     string
}

// NewJournalPruner creates a journal pruning service. A non-positive interval
// falls back to 12 hours.
func NewJournalPruner(pruner EventPruner, interval time.Duration) *JournalPruner {
	if interval <= 0 {
		interval = 12 * time.Hour
	}
	return &JournalPruner{
		pruner:   pruner,
		interval: interval,
		name:     "journal-pruner",
	}
}

// Serve implements suture.Service. One pass runs at startup to catch events
// that expired while the engine was down, then the ticker takes over.
func (s *JournalPruner) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", s.interval).Msg("Journal pruner starting")

	s.prune(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Journal pruner shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.prune(ctx)
		}
	}
}

// prune runs a single retention pass. Errors are logged, not propagated: a
// failed pass leaves stale events behind, which the next pass removes.
func (s *JournalPruner) prune(ctx context.Context) {
	removed, err := s.pruner.Prune(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Journal retention pruning failed")
		return
	}
	if removed > 0 {
		logging.Info().Int64("removed", removed).Msg("Journal events pruned")
	}
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *JournalPruner) String() string {
	return s.name
}
