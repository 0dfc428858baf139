// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package logging provides centralized zerolog-based logging for Prefero.
//
// All packages log through the guarded global logger configured here:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("component", "reconcile").Msg("signal applied")
//
// Components derive scoped loggers once and reuse them:
//
//	logger := logging.With().Str("component", "rank").Logger()
//
// Always terminate log chains with .Msg() or .Send(); an unterminated chain
// emits nothing.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level to emit: trace, debug, info, warn, error.
	// Default: info.
	Level string

	// Format selects the output encoding: json or console. Default: json.
	Format string

	// Caller includes file:line of the call site. Default: false.
	Caller bool

	// Output overrides the destination. Default: os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Caller: false,
		Output: os.Stderr,
	}
}

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

func init() {
	initLogger(DefaultConfig())
}

// Init configures the global logger. Call once at startup before any
// component derives a scoped logger.
func Init(cfg Config) {
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}

	mu.Lock()
	log = ctx.Logger()
	mu.Unlock()
}

// parseLevel maps a level name to a zerolog level, defaulting to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger. Intended for tests.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
}

// With returns a context for building a scoped logger.
func With() zerolog.Context {
	return Logger().With()
}

// SetLevel changes the global minimum level at runtime.
func SetLevel(level string) error {
	l := parseLevel(level)
	if l == zerolog.InfoLevel && !isInfoName(level) {
		return fmt.Errorf("unknown log level %q", level)
	}
	zerolog.SetGlobalLevel(l)
	return nil
}

func isInfoName(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info", "":
		return true
	}
	return false
}

// GetLevel returns the current global minimum level.
func GetLevel() zerolog.Level {
	return zerolog.GlobalLevel()
}

// Trace starts a trace-level event.
func Trace() *zerolog.Event { l := Logger(); return l.Trace() }

// Debug starts a debug-level event.
func Debug() *zerolog.Event { l := Logger(); return l.Debug() }

// Info starts an info-level event.
func Info() *zerolog.Event { l := Logger(); return l.Info() }

// Warn starts a warn-level event.
func Warn() *zerolog.Event { l := Logger(); return l.Warn() }

// Error starts an error-level event.
func Error() *zerolog.Event { l := Logger(); return l.Error() }

// Fatal starts a fatal-level event. The process exits after Msg.
func Fatal() *zerolog.Event { l := Logger(); return l.Fatal() }

// Panic starts a panic-level event. Msg panics after logging.
func Panic() *zerolog.Event { l := Logger(); return l.Panic() }

// Err starts an error-level event when err is non-nil, otherwise info.
func Err(err error) *zerolog.Event { l := Logger(); return l.Err(err) }

// NewTestLogger returns a logger writing to w at debug level, for asserting
// on log output in tests.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}
