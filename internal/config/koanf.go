// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// koanf.go - Layered configuration loading.
//
// Precedence, lowest to highest: built-in defaults, YAML config file,
// environment variables. The file is located via CONFIG_PATH or the
// DefaultConfigPaths search list.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/jcalloway/prefero/internal/logging"
)

// envMappings translates short, well-known environment variables to config
// paths. Everything else must use the PREFERO_ prefix with double
// underscores between nesting levels, e.g.
// PREFERO_ENGINE__RECONCILE__LEARNING_RATE -> engine.reconcile.learning_rate.
var envMappings = map[string]string{
	"HOST":          "server.host",
	"PORT":          "server.port",
	"CORS_ORIGINS":  "server.cors_origins",
	"LOG_LEVEL":     "logging.level",
	"LOG_FORMAT":    "logging.format",
	"STORE_BACKEND": "store.backend",
	"STORE_PATH":    "store.path",
	"DATABASE_PATH": "database.path",
	"SNAPSHOT_DIR":  "snapshot.dir",
	"NATS_ENABLED":  "nats.enabled",
	"NATS_URL":      "nats.url",
}

// sliceConfigPaths lists config paths that hold string slices. Environment
// variables provide these as comma-separated values, which koanf would
// otherwise leave as a single string.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// Load builds the configuration from defaults, an optional YAML file, and
// the environment, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		logging.Info().Str("path", configPath).Msg("Loaded config file")
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	processSliceFields(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// findConfigFile returns the config file path, or "" when none exists.
// CONFIG_PATH wins over the search list.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		logging.Warn().Str("path", path).Msg("CONFIG_PATH set but file not found")
		return ""
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps an environment variable name to a config path.
// Returning "" skips the variable.
func envTransformFunc(s string) string {
	if mapped, ok := envMappings[s]; ok {
		return mapped
	}
	if !strings.HasPrefix(s, "PREFERO_") {
		return ""
	}
	trimmed := strings.TrimPrefix(s, "PREFERO_")
	if trimmed == "" {
		return ""
	}
	parts := strings.Split(trimmed, "__")
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, ".")
}

// processSliceFields splits comma-separated env values into slices for the
// paths listed in sliceConfigPaths. YAML-provided slices pass through
// untouched.
func processSliceFields(k *koanf.Koanf) {
	for _, path := range sliceConfigPaths {
		if !k.Exists(path) {
			continue
		}
		if _, ok := k.Get(path).([]interface{}); ok {
			continue
		}
		raw := k.String(path)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				values = append(values, trimmed)
			}
		}
		if err := k.Set(path, values); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Failed to normalize slice config value")
		}
	}
}
