// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// --- Test: Defaults ---

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
	if cfg.Engine.Reconcile.HardPromotionStreak != 3 {
		t.Errorf("expected hard promotion streak 3, got %d", cfg.Engine.Reconcile.HardPromotionStreak)
	}
	if cfg.Engine.Reconcile.HalfLife != 336*time.Hour {
		t.Errorf("expected half-life 336h, got %v", cfg.Engine.Reconcile.HalfLife)
	}
	if cfg.Engine.Transfer.Discount != 0.4 {
		t.Errorf("expected transfer discount 0.4, got %f", cfg.Engine.Transfer.Discount)
	}
	if cfg.Engine.Rank.Seed != 42 {
		t.Errorf("expected rank seed 42, got %d", cfg.Engine.Rank.Seed)
	}
}

// --- Test: Environment variable mapping ---

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  string
		want string
	}{
		{"short name port", "PORT", "server.port"},
		{"short name log level", "LOG_LEVEL", "logging.level"},
		{"prefixed single level", "PREFERO_DECAY__ENABLED", "decay.enabled"},
		{"prefixed nested", "PREFERO_ENGINE__RECONCILE__LEARNING_RATE", "engine.reconcile.learning_rate"},
		{"prefixed key with underscore", "PREFERO_STORE__RETRY_ATTEMPTS", "store.retry_attempts"},
		{"unprefixed skipped", "PATH", ""},
		{"empty after prefix", "PREFERO_", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("PORT", "9191")
	t.Setenv("PREFERO_ENGINE__RECONCILE__LEARNING_RATE", "0.7")
	t.Setenv("PREFERO_STORE__BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("expected port 9191, got %d", cfg.Server.Port)
	}
	if cfg.Engine.Reconcile.LearningRate != 0.7 {
		t.Errorf("expected learning rate 0.7, got %f", cfg.Engine.Reconcile.LearningRate)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected memory backend, got %q", cfg.Store.Backend)
	}
	// Untouched values keep their defaults.
	if cfg.Engine.Transfer.Discount != 0.4 {
		t.Errorf("expected default transfer discount, got %f", cfg.Engine.Transfer.Discount)
	}
}

func TestLoadSplitsCommaSeparatedOrigins(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %d: %v", len(cfg.Server.CORSOrigins), cfg.Server.CORSOrigins)
	}
	if cfg.Server.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("expected trimmed origin, got %q", cfg.Server.CORSOrigins[1])
	}
}

// --- Test: Config file layering ---

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefero.yaml")
	body := strings.Join([]string{
		"server:",
		"  port: 9000",
		"engine:",
		"  session:",
		"    clarification_min_turns: 8",
		"nats:",
		"  enabled: true",
		"  subject: signals.custom",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	// Environment still outranks the file.
	t.Setenv("PORT", "9001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("env should outrank file: expected 9001, got %d", cfg.Server.Port)
	}
	if cfg.Engine.Session.ClarificationMinTurns != 8 {
		t.Errorf("expected min turns 8 from file, got %d", cfg.Engine.Session.ClarificationMinTurns)
	}
	if !cfg.NATS.Enabled || cfg.NATS.Subject != "signals.custom" {
		t.Errorf("expected nats settings from file, got %+v", cfg.NATS)
	}
}

// --- Test: Validation ---

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"zero retries", func(c *Config) { c.Store.RetryAttempts = 0 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"learning rate above one", func(c *Config) { c.Engine.Reconcile.LearningRate = 1.5 }},
		{"zero promotion streak", func(c *Config) { c.Engine.Reconcile.HardPromotionStreak = 0 }},
		{"negative half-life", func(c *Config) { c.Engine.Reconcile.HalfLife = -time.Hour }},
		{"transfer discount zero", func(c *Config) { c.Engine.Transfer.Discount = 0 }},
		{"exploration too large", func(c *Config) { c.Engine.Rank.ExplorationAmplitude = 0.9 }},
		{"zero batch size", func(c *Config) { c.Engine.Session.CandidateBatchSize = 0 }},
		{"nats enabled without subject", func(c *Config) { c.NATS.Enabled = true; c.NATS.Subject = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

// --- Test: Clone ---

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Server.CORSOrigins = []string{"https://a.example.com"}

	clone := cfg.Clone()
	clone.Server.Port = 1
	clone.Server.CORSOrigins[0] = "https://evil.example.com"

	if cfg.Server.Port == 1 {
		t.Error("clone mutation leaked into original port")
	}
	if cfg.Server.CORSOrigins[0] != "https://a.example.com" {
		t.Error("clone mutation leaked into original origins")
	}
}
