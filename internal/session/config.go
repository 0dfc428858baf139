// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package session

import (
	"fmt"
	"time"
)

// Config contains the session controller parameters.
type Config struct {
	// ClarificationBand is the top-2 base score distance below which a
	// ranking is treated as indistinguishable. Default: 0.02.
	ClarificationBand float64 `json:"clarification_band"`

	// ClarificationMinTurns is how many turns a session must have run
	// before an indistinguishable top-2 triggers a clarification.
	// Default: 5.
	ClarificationMinTurns int `json:"clarification_min_turns"`

	// CandidateBatchSize bounds the candidates handed to the ranking
	// engine per turn. Default: 50.
	CandidateBatchSize int `json:"candidate_batch_size"`

	// TTL is how long an idle session survives before the sweep expires
	// it. Default: 2h.
	TTL time.Duration `json:"ttl"`

	// MaxSessions caps concurrently tracked sessions. Default: 10000.
	MaxSessions int `json:"max_sessions"`

	// UpdateRetries bounds optimistic profile write retries per turn
	// before a version conflict surfaces. Default: 3.
	UpdateRetries int `json:"update_retries"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		ClarificationBand:     0.02,
		ClarificationMinTurns: 5,
		CandidateBatchSize:    50,
		TTL:                   2 * time.Hour,
		MaxSessions:           10000,
		UpdateRetries:         3,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ClarificationBand < 0 || c.ClarificationBand > 1 {
		return fmt.Errorf("clarification_band must be in [0, 1], got %f", c.ClarificationBand)
	}
	if c.ClarificationMinTurns < 1 {
		return fmt.Errorf("clarification_min_turns must be at least 1, got %d", c.ClarificationMinTurns)
	}
	if c.CandidateBatchSize < 1 {
		return fmt.Errorf("candidate_batch_size must be positive, got %d", c.CandidateBatchSize)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", c.TTL)
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be positive, got %d", c.MaxSessions)
	}
	if c.UpdateRetries < 1 {
		return fmt.Errorf("update_retries must be at least 1, got %d", c.UpdateRetries)
	}
	return nil
}
