// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

/*
Package api provides the HTTP REST API layer for Prefero.

The conversational frontend drives shopping sessions through this
surface: it opens a session for a user and category, posts each parsed
preference signal, and renders the returned product card, alternates,
and explanations. Everything else here exists around that loop: the
transparency drawer (profile inspection, preference edits, the journal),
catalog maintenance, interaction history, and live session events over
WebSocket.

Key Components:

  - Router: Chi route configuration and middleware stack
  - Handler: request handlers for all endpoints
  - Response formatting: one JSON envelope for every response
  - Request validation: struct tags checked before any handler logic
  - Rate limiting: per-endpoint-group limits via go-chi/httprate
  - CORS: go-chi/cors for browser clients

API Categories:

 1. Session Endpoints (/api/v1/sessions):
    Open a session, post signals turn by turn, read session state,
    end a session.

 2. Profile Endpoints (/api/v1/profiles):
    The transparency drawer. Inspect a user's learned preferences,
    edit or relax them directly, and page through the journal that
    explains how each one came to be.

 3. Catalog Endpoints (/api/v1/products):
    Upsert products from the ingestion pipeline and search the
    catalog with structured filters.

 4. Interaction Endpoints (/api/v1/interactions):
    Record good/bad product judgments, list history, and aggregate
    sentiment per attribute.

 5. Health and Operations (/api/v1/health, /metrics):
    Liveness, readiness with dependency checks, Prometheus metrics.

 6. WebSocket Endpoint (/api/v1/ws):
    Session lifecycle and turn events for live dashboards.

Usage Example:

	import (
	    "github.com/jcalloway/prefero/internal/api"
	    "github.com/jcalloway/prefero/internal/database"
	    "github.com/jcalloway/prefero/internal/session"
	)

	handler := api.NewHandler(controller, st, reconciler, recorder, db, cfg, wsHub)
	router := api.NewRouter(handler, cfg)

	http.ListenAndServe(":8480", router.SetupChi())

Response Format:

Every endpoint wraps its payload in the same envelope:

	{
	  "success": true,
	  "data": { ... },
	  "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 3}
	}

Errors carry a machine-readable code alongside the message:

	{
	  "success": false,
	  "error": {"code": "SESSION_ENDED", "message": "...", "request_id": "..."}
	}

Thread Safety:

All handlers are safe for concurrent requests. Shared state (the
session controller, profile store, database, cache, WebSocket hub) is
synchronized by the owning package.

See Also:

  - internal/session: the turn loop behind the session endpoints
  - internal/reconcile: signal application and drawer edits
  - internal/journal: the provenance trail behind the drawer
  - internal/database: catalog and interaction storage
*/
package api
