// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package session

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative band", func(c *Config) { c.ClarificationBand = -0.1 }},
		{"band above one", func(c *Config) { c.ClarificationBand = 1.5 }},
		{"zero min turns", func(c *Config) { c.ClarificationMinTurns = 0 }},
		{"zero batch size", func(c *Config) { c.CandidateBatchSize = 0 }},
		{"zero ttl", func(c *Config) { c.TTL = 0 }},
		{"negative ttl", func(c *Config) { c.TTL = -time.Minute }},
		{"zero max sessions", func(c *Config) { c.MaxSessions = 0 }},
		{"zero update retries", func(c *Config) { c.UpdateRetries = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
