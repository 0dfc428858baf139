// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package reconcile

import (
	"fmt"
	"time"
)

// Config contains the reconciliation constants. All of them are tunable, but
// the defaults are the ones the scoring model was calibrated against.
type Config struct {
	// LearningRate scales strength updates. A reinforcement moves strength
	// toward 1 by LearningRate * hint * (1 - current), so repeated identical
	// signals converge with strictly decreasing increments.
	// Default: 0.5.
	LearningRate float64 `json:"learning_rate"`

	// ConfidenceGain scales attribute confidence growth on reinforcement,
	// using the same saturating form as strength.
	// Default: 0.3.
	ConfidenceGain float64 `json:"confidence_gain"`

	// ContradictionPenalty is the confidence fraction lost when a polarity
	// flip supersedes an entry in the opposite bucket.
	// Default: 0.15.
	ContradictionPenalty float64 `json:"contradiction_penalty"`

	// HardPromotionStreak is how many consecutive strong reinforcements a
	// value needs before its soft preference hardens into a filter.
	// Default: 3.
	HardPromotionStreak int `json:"hard_promotion_streak"`

	// HardPromotionStrength is the signal strength floor a reinforcement
	// must meet to count toward the streak. Weaker signals reset it.
	// Default: 0.8.
	HardPromotionStrength float64 `json:"hard_promotion_strength"`

	// LongTermThreshold is the attribute confidence at which a session
	// preference is promoted to long_term scope.
	// Default: 0.6.
	LongTermThreshold float64 `json:"long_term_threshold"`

	// HalfLife is the inactivity period after which confidence halves and
	// recency weights drop to 0.5. Shared by decay and the aggregate
	// confidence rollup.
	// Default: 336h (14 days).
	HalfLife time.Duration `json:"half_life"`

	// Transfer contains the cross-category transfer parameters.
	Transfer TransferConfig `json:"transfer"`
}

// TransferConfig contains the cross-category transfer parameters.
type TransferConfig struct {
	// Enabled controls whether long_term preferences propagate to other
	// categories at all.
	// Default: true.
	Enabled bool `json:"enabled"`

	// Discount caps a transferred entry's confidence at
	// source confidence * Discount.
	// Default: 0.4.
	Discount float64 `json:"discount"`
}

// DefaultConfig returns a Config with the calibrated production defaults.
func DefaultConfig() Config {
	return Config{
		LearningRate:          0.5,
		ConfidenceGain:        0.3,
		ContradictionPenalty:  0.15,
		HardPromotionStreak:   3,
		HardPromotionStrength: 0.8,
		LongTermThreshold:     0.6,
		HalfLife:              336 * time.Hour,
		Transfer: TransferConfig{
			Enabled:  true,
			Discount: 0.4,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("learning_rate must be in (0, 1], got %f", c.LearningRate)
	}
	if c.ConfidenceGain <= 0 || c.ConfidenceGain > 1 {
		return fmt.Errorf("confidence_gain must be in (0, 1], got %f", c.ConfidenceGain)
	}
	if c.ContradictionPenalty < 0 || c.ContradictionPenalty > 1 {
		return fmt.Errorf("contradiction_penalty must be in [0, 1], got %f", c.ContradictionPenalty)
	}
	if c.HardPromotionStreak < 1 {
		return fmt.Errorf("hard_promotion_streak must be positive, got %d", c.HardPromotionStreak)
	}
	if c.HardPromotionStrength < 0 || c.HardPromotionStrength > 1 {
		return fmt.Errorf("hard_promotion_strength must be in [0, 1], got %f", c.HardPromotionStrength)
	}
	if c.LongTermThreshold <= 0 || c.LongTermThreshold > 1 {
		return fmt.Errorf("long_term_threshold must be in (0, 1], got %f", c.LongTermThreshold)
	}
	if c.HalfLife <= 0 {
		return fmt.Errorf("half_life must be positive, got %v", c.HalfLife)
	}
	if c.Transfer.Discount <= 0 || c.Transfer.Discount > 1 {
		return fmt.Errorf("transfer.discount must be in (0, 1], got %f", c.Transfer.Discount)
	}
	return nil
}
