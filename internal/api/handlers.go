// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package api provides HTTP handlers for the Prefero application.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jcalloway/prefero/internal/cache"
	"github.com/jcalloway/prefero/internal/config"
	"github.com/jcalloway/prefero/internal/database"
	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/middleware"
	"github.com/jcalloway/prefero/internal/reconcile"
	"github.com/jcalloway/prefero/internal/session"
	"github.com/jcalloway/prefero/internal/store"
	ws "github.com/jcalloway/prefero/internal/websocket"
)

// Handler holds the dependencies for all API endpoints.
type Handler struct {
	sessions   *session.Controller
	store      store.Store
	reconciler *reconcile.Reconciler
	recorder   *journal.Recorder
	db         *database.DB
	config     *config.Config
	wsHub      *ws.Hub
	cache      *cache.Cache
	perfMon    *middleware.PerformanceMonitor
	startTime  time.Time
}

// NewHandler creates the API handler with all its dependencies.
//
// The recorder and wsHub may be nil: the journal endpoints answer 503
// when the journal is disabled, and the WebSocket endpoint answers 503
// without a hub. Everything else is required.
//
// The handler initializes with a 5-minute TTL cache for catalog search
// and a performance monitor tracking the last 1000 requests.
func NewHandler(
	sessions *session.Controller,
	st store.Store,
	reconciler *reconcile.Reconciler,
	recorder *journal.Recorder,
	db *database.DB,
	cfg *config.Config,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		sessions:   sessions,
		store:      st,
		reconciler: reconciler,
		recorder:   recorder,
		db:         db,
		config:     cfg,
		wsHub:      wsHub,
		cache:      cache.New(5 * time.Minute),
		perfMon:    middleware.NewPerformanceMonitor(1000),
		startTime:  time.Now(),
	}
}

// ClearCache invalidates all cached search results. Called after every
// catalog upsert so clients never see products that just changed.
func (h *Handler) ClearCache() {
	if h.cache != nil {
		h.cache.Clear()
		logging.Info().Msg("Search cache cleared")
	}
}

// PerformanceMiddleware exposes the handler's performance monitor as a
// middleware for the router to install.
func (h *Handler) PerformanceMiddleware() func(http.Handler) http.Handler {
	return h.perfMon.Middleware
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow-client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browser WebSockets always include Origin; only non-browser
	// clients omit it. Allowing empty Origin bypasses CORS entirely.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// Nil config fails open for tests and development.
	if h.config == nil {
		return true
	}

	for _, allowedOrigin := range h.config.Server.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and registers the client with the
// hub. The client then receives session lifecycle and turn events as
// JSON frames until it disconnects.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}
