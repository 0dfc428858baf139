// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

/*
Package supervisor provides process supervision for Prefero using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of all long-running services in the engine. It provides
Erlang/OTP-style supervision with automatic restart, failure isolation, and
graceful shutdown.

# Overview

The supervisor tree organizes services into three layers for failure isolation:

	RootSupervisor ("prefero")
	├── DataSupervisor ("data-layer")
	│   ├── DecaySweeper (confidence decay over idle preferences)
	│   ├── JournalPruner (retention pruning of the preference journal)
	│   ├── SnapshotService (periodic profile snapshots, if enabled)
	│   └── SessionSweeper (TTL eviction of idle sessions)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocketHubService (live turn feed)
	│   └── ingest.Service (NATS signal consumer, build tag: nats)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

This hierarchy ensures that:
  - A crashing broker consumer restarts without dropping WebSocket clients
  - A stuck maintenance sweep never takes the HTTP surface down
  - Each layer has independent failure counting and backoff

# Key Features

Automatic Restart:
  - Crashed services are automatically restarted
  - Exponential backoff prevents restart storms
  - Configurable failure thresholds and decay rates

Failure Isolation:
  - Services are organized into logical groups
  - Child supervisor failures don't propagate upward
  - Each layer has independent failure counting

Graceful Shutdown:
  - Context cancellation triggers orderly shutdown
  - Configurable shutdown timeout per service
  - UnstoppedServiceReport for debugging hangs

Structured Logging:
  - Supervision events flow through sutureslog into the slog adapter,
    which lands in the same zerolog pipeline as the rest of the engine

# Usage Example

Basic setup in main.go:

	import (
	    "github.com/jcalloway/prefero/internal/logging"
	    "github.com/jcalloway/prefero/internal/supervisor"
	    "github.com/jcalloway/prefero/internal/supervisor/services"
	)

	func main() {
	    logger := logging.NewSlogLogger()
	    tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	    if err != nil {
	        log.Fatal(err)
	    }

	    // Add services to appropriate layers
	    tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	    tree.AddMessagingService(services.NewWebSocketHubService(hub))
	    tree.AddDataService(services.NewDecaySweeper(profileStore, reconciler, decayCfg))
	    tree.AddDataService(services.NewJournalPruner(recorder, 12*time.Hour))

	    // Start the tree (blocks until context canceled)
	    if err := tree.Serve(ctx); err != nil {
	        log.Printf("Supervisor stopped: %v", err)
	    }
	}

Background operation:

	// Start in background
	errChan := tree.ServeBackground(ctx)

	// Do other setup...

	// Wait for shutdown
	if err := <-errChan; err != nil {
	    log.Printf("Supervisor error: %v", err)
	}

# Configuration

The TreeConfig controls restart behavior:

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,              // Failures before backoff
	    FailureDecay:     30.0,             // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

Default values match suture's production-ready defaults:
  - FailureThreshold: 5 failures
  - FailureDecay: 30 seconds
  - FailureBackoff: 15 seconds
  - ShutdownTimeout: 10 seconds

# Failure Handling

The supervisor uses a failure counter with exponential decay:

 1. Each service failure increments the counter
 2. Counter decays exponentially over time (FailureDecay seconds)
 3. When counter exceeds FailureThreshold, supervisor enters backoff
 4. During backoff, restarts are delayed by FailureBackoff duration
 5. If failures continue, the child supervisor may be restarted by parent

Example failure scenarios:

	# Single crash - immediate restart
	Service crashes -> Counter: 1 -> Restart immediately

	# Rapid crashes - backoff triggered
	Service crashes 5x in 10s -> Counter: 5+ -> Wait 15s before restart

	# Isolated failures - counter decays
	Service crashes once, stable for 60s -> Counter: ~0.13 -> Normal restart

# Service Interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: Service stopped cleanly, will not be restarted
  - Return error: Service crashed, will be restarted
  - Context canceled: Shutdown requested, return promptly

# Build Tags

The NATS signal consumer is controlled by a build tag:

	-tags nats   # Enable the NATS/JetStream ingest service

Without the tag, ingest constructors return ErrNATSNotEnabled and main runs
REST-only, so nothing broker-related is ever added to the tree.

# What Is NOT Supervised

DuckDB and Badger are intentionally not supervised:
  - They are embedded libraries, not long-running services
  - Connections are owned by the database and store packages
  - A crash inside either would require a process restart anyway

Badger value log GC runs on its own ticker inside the store
(BadgerStore.StartGC); it holds no state worth restarting.

# Debugging Shutdown Issues

If services don't stop within the timeout:

	// Get report of unstopped services
	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("Service didn't stop: %v", svc)
	}

Common causes:
  - Goroutines not respecting context cancellation
  - Blocked network I/O without deadlines
  - Mutex deadlocks during shutdown

# Thread Safety

The SupervisorTree is safe for concurrent use:
  - Services can be added from any goroutine
  - Remove operations are synchronized
  - Multiple services can crash simultaneously

# See Also

  - internal/supervisor/services: Service wrappers
  - github.com/thejerf/suture/v4: Underlying library
*/
package supervisor
