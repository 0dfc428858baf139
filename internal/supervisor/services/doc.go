// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

/*
Package services provides suture.Service wrappers for Prefero components.

This package adapts application components to the suture v4 supervision
model, translating their lifecycle patterns (ListenAndServe, RunWithContext,
periodic passes over a store) into suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation into the Serve pattern
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

WebSocket Hub (WebSocketHubService):
  - Wraps the turn feed hub's RunWithContext
  - Handles client connection cleanup on shutdown

Decay Sweeper (DecaySweeper):
  - Walks the profile store on a ticker and fades idle preferences
  - Rate-limits profile writes so sweeps never starve live traffic
  - Skips the write entirely when a profile has nothing to decay

Journal Pruner (JournalPruner):
  - Runs retention pruning over the preference journal
  - One pass at startup, then on a ticker

Snapshot Service (SnapshotService):
  - Captures every profile into a versioned gob+gzip snapshot file
  - Prunes old versions and checkpoints the catalog database afterwards

Session Sweeper (SessionSweeper):
  - Drives the session controller's TTL eviction on a ticker

The NATS ingest service needs no wrapper: ingest.Service implements
Serve(ctx) error and String() natively and is added to the messaging layer
directly.

# Usage Example

Creating and registering services:

	import (
	    "net/http"
	    "time"

	    "github.com/jcalloway/prefero/internal/supervisor"
	    "github.com/jcalloway/prefero/internal/supervisor/services"
	)

	func setupSupervisor(server *http.Server, hub *websocket.Hub) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    // HTTP server with 10s shutdown timeout
	    tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	    // WebSocket hub
	    tree.AddMessagingService(services.NewWebSocketHubService(hub))

	    // Maintenance sweeps
	    tree.AddDataService(services.NewDecaySweeper(profiles, reconciler, services.DecaySweeperConfig{
	        Interval:        time.Hour,
	        WritesPerSecond: 25,
	    }))
	    tree.AddDataService(services.NewJournalPruner(recorder, 12*time.Hour))

	    // Start supervision
	    tree.Serve(ctx)
	}

# Lifecycle Patterns

The package handles two common lifecycle patterns:

ListenAndServe Pattern:

	type Listener interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

Ticker Pattern:

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    ticker := time.NewTicker(s.interval)
	    defer ticker.Stop()
	    for {
	        select {
	        case <-ctx.Done():
	            return ctx.Err()
	        case <-ticker.C:
	            s.pass(ctx)
	        }
	    }
	}

Components that already expose RunWithContext (the hub) or Serve (the ingest
service) need only delegation or no wrapper at all.

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

Within a ticker pass, failures are logged and the pass is retried on the
next tick rather than crashing the service: a failed snapshot or prune
leaves state that the next pass handles, so a restart buys nothing.

# Service Identification

All services implement fmt.Stringer for logging:

	func (s *HTTPServerService) String() string {
	    return "http-server"
	}

Suture uses this for log messages:

	INFO http-server: starting
	INFO http-server: stopped
	ERROR http-server: restarting after failure

# Thread Safety

All service wrappers are safe for concurrent use:
  - State is protected by mutexes where needed
  - Context cancellation is handled atomically
  - Multiple Serve calls are not supported (undefined behavior)

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
  - internal/websocket: Turn feed hub implementation
  - internal/ingest: NATS signal ingest service
*/
package services
