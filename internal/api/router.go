// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package api HTTP routing using Chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jcalloway/prefero/internal/config"
	"github.com/jcalloway/prefero/internal/middleware"
)

// Router wires handlers and middleware into the HTTP surface.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router for the given handler. CORS origins and
// the base rate limit come from the server config; a nil config uses
// the middleware defaults.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	var corsOrigins []string
	requestsPerMinute := 0
	if cfg != nil {
		corsOrigins = cfg.Server.CORSOrigins
		requestsPerMinute = cfg.Server.RateLimit
	}

	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddlewareFromServer(corsOrigins, requestsPerMinute),
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so the shared middleware package
// works with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes. Rate limit tiers follow traffic
// shape: the conversation loop is generous, expensive writes are strict,
// and stacked limiters mean the tightest one wins.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order
	r.Use(chiMiddleware(middleware.RequestID)) // X-Request-ID header plus logging context
	r.Use(E2EDebugLogging())                   // E2E diagnostic logging (enabled via E2E_DEBUG=true)
	r.Use(chimiddleware.RealIP)                // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)             // Recover from panics
	r.Use(router.chiMiddleware.CORS())         // CORS must be global to handle OPTIONS preflight

	// Unmatched routes still answer in the response envelope.
	r.NotFound(func(w http.ResponseWriter, q *http.Request) {
		WriteNotFound(w, q, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, q *http.Request) {
		WriteError(w, q, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	// ========================
	// Health Endpoints
	// ========================
	// Permissive rate limiting so monitors can poll freely
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/performance", router.handler.HealthPerformance)
	})

	// ========================
	// Session Endpoints
	// ========================
	// The conversation loop: one signal per user utterance, so the
	// group limit matches turn cadence. Opening a session is stricter.
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitTurns())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(router.handler.PerformanceMiddleware())

		r.With(router.chiMiddleware.RateLimitSessions()).Post("/", router.handler.OpenSession)
		r.Post("/{id}/signals", router.handler.ProcessSignal)
		r.Get("/{id}", router.handler.GetSession)
		r.Delete("/{id}", router.handler.EndSession)
	})

	// ========================
	// Profile Endpoints
	// ========================
	// Transparency drawer: read the learned profile, edit it, page the
	// journal. Journal pages compress well.
	r.Route("/api/v1/profiles", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitDrawer())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(router.handler.PerformanceMiddleware())

		r.Get("/{user_id}", router.handler.GetProfile)
		r.Patch("/{user_id}/preferences", router.handler.EditPreferences)
		r.With(chiMiddleware(middleware.Compression)).Get("/{user_id}/journal", router.handler.GetJournal)
	})

	// ========================
	// Catalog Endpoints
	// ========================
	// Search is cached and read-heavy; batch upserts are strict.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitSearch())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.With(router.chiMiddleware.RateLimitWrite()).Put("/", router.handler.UpsertProducts)
		r.With(chiMiddleware(middleware.Compression)).Get("/search", router.handler.SearchProducts)
	})

	// ========================
	// Interaction Endpoints
	// ========================
	// Judgments arrive at turn cadence.
	r.Route("/api/v1/interactions", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitTurns())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Put("/", router.handler.UpsertInteraction)
		r.With(chiMiddleware(middleware.Compression)).Get("/", router.handler.ListInteractions)
		r.Get("/stats", router.handler.InteractionStats)
	})

	// ========================
	// WebSocket
	// ========================
	// No metrics or performance wrappers here: the upgrade needs the
	// raw writer's http.Hijacker, which wrapping hides.
	r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/api/v1/ws", router.handler.WebSocket)

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}
