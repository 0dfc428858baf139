// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package api provides Chi middleware factories built on the Chi
// ecosystem (go-chi/cors, go-chi/httprate).
package api

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/middleware"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSExposedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           int // seconds

	// Rate limiting configuration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultChiMiddlewareConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration, so
// a deployment never ships with wildcard CORS by accident.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins:   []string{},
		CORSAllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		CORSAllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		CORSExposedHeaders:   []string{"X-Request-ID"},
		CORSAllowCredentials: false,
		CORSMaxAge:           86400,

		RateLimitRequests: 300,
		RateLimitWindow:   time.Minute,
		RateLimitDisabled: false,
	}
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a new Chi middleware factory with the given
// configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   config.CORSAllowedMethods,
		AllowedHeaders:   config.CORSAllowedHeaders,
		ExposedHeaders:   config.CORSExposedHeaders,
		AllowCredentials: config.CORSAllowCredentials,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// NewChiMiddlewareFromServer creates a ChiMiddleware instance from the
// server configuration: CORS origins and the default per-IP rate limit.
// A rate limit of 0 disables limiting (local development).
func NewChiMiddlewareFromServer(corsOrigins []string, requestsPerMinute int) *ChiMiddleware {
	config := DefaultChiMiddlewareConfig()
	config.CORSAllowedOrigins = corsOrigins
	if requestsPerMinute <= 0 {
		config.RateLimitDisabled = true
	} else {
		config.RateLimitRequests = requestsPerMinute
	}

	return NewChiMiddleware(config)
}

// CORS returns a Chi-compatible CORS middleware using go-chi/cors.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the default per-IP rate limiting middleware using
// go-chi/httprate.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitConfig{
		Requests: m.config.RateLimitRequests,
		Window:   m.config.RateLimitWindow,
	})
}

// rateLimitExceeded is the shared on-limit handler: it counts the hit
// and answers with the standard error envelope.
func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	metrics.APIRateLimitHits.WithLabelValues(middleware.EndpointLabel(r)).Inc()
	WriteError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests,
		"Rate limit exceeded, slow down")
}

// RateLimitConfig defines rate limit parameters for specific endpoint
// groups.
type RateLimitConfig struct {
	// Requests is the number of requests allowed in the window
	Requests int
	// Window is the time window for rate limiting
	Window time.Duration
}

// Endpoint-specific rate limit configurations, tuned per endpoint
// characteristics.
var (
	// RateLimitTurns covers signal posting. A conversation produces at
	// most a few signals per utterance; 120/min leaves room for rapid
	// back-and-forth without letting one IP hammer the reconciler.
	RateLimitTurns = RateLimitConfig{Requests: 120, Window: time.Minute}

	// RateLimitSessions covers opening and ending sessions. Opening is
	// rare per shopper; a flood of opens is either a bug or abuse.
	RateLimitSessions = RateLimitConfig{Requests: 30, Window: time.Minute}

	// RateLimitDrawer covers transparency drawer reads and edits.
	// The drawer UI loads the profile and journal together and users
	// click through edits interactively.
	RateLimitDrawer = RateLimitConfig{Requests: 120, Window: time.Minute}

	// RateLimitSearch is permissive for cached catalog search; the
	// storefront queries on every keystroke with debouncing.
	RateLimitSearch = RateLimitConfig{Requests: 300, Window: time.Minute}

	// RateLimitWrite is moderate limiting for catalog and interaction
	// writes (ingestion pipelines batch, so 30/min of up-to-500-product
	// batches is plenty).
	RateLimitWrite = RateLimitConfig{Requests: 30, Window: time.Minute}

	// RateLimitHealth is permissive for health endpoints: monitoring
	// probes frequently, but the endpoints still should not be free
	// amplification.
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}

	// RateLimitWebSocket limits connection upgrade attempts.
	RateLimitWebSocket = RateLimitConfig{Requests: 30, Window: time.Minute}
)

// RateLimitCustom returns a per-IP rate limiter with custom
// configuration. All limiters share the on-limit handler so clients
// always get the standard envelope and every hit is counted.
func (m *ChiMiddleware) RateLimitCustom(config RateLimitConfig) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// RateLimitTurns returns the rate limiter for signal processing.
func (m *ChiMiddleware) RateLimitTurns() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitTurns)
}

// RateLimitSessions returns the rate limiter for session lifecycle
// endpoints.
func (m *ChiMiddleware) RateLimitSessions() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitSessions)
}

// RateLimitDrawer returns the rate limiter for profile and journal
// endpoints.
func (m *ChiMiddleware) RateLimitDrawer() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitDrawer)
}

// RateLimitSearch returns the rate limiter for catalog search.
func (m *ChiMiddleware) RateLimitSearch() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitSearch)
}

// RateLimitWrite returns the rate limiter for write operations.
func (m *ChiMiddleware) RateLimitWrite() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitWrite)
}

// RateLimitHealth returns the rate limiter for health endpoints.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitHealth)
}

// RateLimitWebSocket returns the rate limiter for WebSocket upgrades.
func (m *ChiMiddleware) RateLimitWebSocket() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitWebSocket)
}

// APISecurityHeaders returns a middleware that adds security headers to
// API responses.
//
// Headers added:
//   - X-Content-Type-Options: nosniff (prevents MIME type sniffing)
//   - X-Frame-Options: DENY (prevents clickjacking)
//   - Referrer-Policy: strict-origin-when-cross-origin
//
// Content-Security-Policy is not added; these endpoints serve JSON, not
// HTML. HSTS is added when the request arrived over HTTPS, directly or
// behind a TLS-terminating proxy.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// e2eDebugEnabled caches the E2E_DEBUG environment variable check.
var e2eDebugEnabled = os.Getenv("E2E_DEBUG") == "true"

// E2EDebugLogging returns a middleware that logs all incoming requests
// for end-to-end test debugging. Only active when the E2E_DEBUG
// environment variable is "true"; otherwise it is a pass-through.
func E2EDebugLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !e2eDebugEnabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logging.Info().
				Str("component", "e2e-debug").
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("query", r.URL.RawQuery).
				Str("remote_addr", r.RemoteAddr).
				Msg("[E2E] Request received")

			// The wrapper hides http.Hijacker, which WebSocket upgrades
			// need; those requests get the raw writer.
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}

			ww := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logging.Info().
				Str("component", "e2e-debug").
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.statusCode).
				Dur("duration", time.Since(start)).
				Msg("[E2E] Request completed")
		})
	}
}

// statusResponseWriter wraps http.ResponseWriter to capture the status code.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and calls the underlying WriteHeader.
func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
