// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// contextKey is the private type for logging context keys.
type contextKey string

const (
	// requestIDKey carries the HTTP request ID.
	requestIDKey contextKey = "request_id"

	// sessionIDKey carries the conversation session ID.
	sessionIDKey contextKey = "session_id"

	// userIDKey carries the acting user ID.
	userIDKey contextKey = "user_id"
)

// GenerateRequestID creates a new unique request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a context carrying the request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithSessionID returns a context carrying the session ID.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the session ID, or "" when absent.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// ContextWithUserID returns a context carrying the user ID.
func ContextWithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the user ID, or "" when absent.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Ctx returns the global logger enriched with every correlation field the
// context carries. Handlers and the ingest consumer use this so one turn can
// be traced across reconcile, rank, and journal writes.
func Ctx(ctx context.Context) zerolog.Logger {
	builder := Logger().With()
	if id := RequestIDFromContext(ctx); id != "" {
		builder = builder.Str("request_id", id)
	}
	if id := SessionIDFromContext(ctx); id != "" {
		builder = builder.Str("session_id", id)
	}
	if id := UserIDFromContext(ctx); id != "" {
		builder = builder.Str("user_id", id)
	}
	return builder.Logger()
}
