// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package rank

import "fmt"

// Config contains the ranking engine parameters.
type Config struct {
	// ExplorationAmplitude sizes the bounded noise added to scores, as a
	// fraction of the candidate score range. Zero disables exploration.
	// Default: 0.05.
	ExplorationAmplitude float64 `json:"exploration_amplitude"`

	// Seed initializes the exploration RNG so runs reproduce exactly.
	// Default: 42.
	Seed int64 `json:"seed"`

	// DefaultLimit is how many ranked products to return when the request
	// does not say. Default: 10.
	DefaultLimit int `json:"default_limit"`

	// MaxLimit caps the requested limit. Default: 100.
	MaxLimit int `json:"max_limit"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		ExplorationAmplitude: 0.05,
		Seed:                 42,
		DefaultLimit:         10,
		MaxLimit:             100,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ExplorationAmplitude < 0 || c.ExplorationAmplitude > 1 {
		return fmt.Errorf("exploration_amplitude must be in [0, 1], got %f", c.ExplorationAmplitude)
	}
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default_limit must be positive, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit must be >= default_limit, got %d < %d", c.MaxLimit, c.DefaultLimit)
	}
	return nil
}
