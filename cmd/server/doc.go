// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

/*
Package main is the entry point for the Prefero server application.

Prefero is a preference reconciliation and ranking engine for
conversational shopping assistants. Dialogue signals extracted upstream
(an attribute the shopper praised, a product they rejected) are folded
into a versioned per-user preference profile, and catalog products are
ranked against that profile with score breakdowns the assistant can
explain. The profile is fully inspectable and editable, so shoppers can
see and correct what the engine has learned about them.

# Application Architecture

The server implements a layered architecture with Suture v4 process
supervision:

	RootSupervisor ("prefero")
	├── DataSupervisor ("data-layer")
	│   ├── Decay sweeper (idle-confidence fade)
	│   ├── Journal pruner (retention)
	│   ├── Snapshot service (optional)
	│   └── Session sweeper (TTL expiry)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket hub (live turn feed)
	│   └── Signal ingest (optional, -tags nats)
	└── APISupervisor ("api-layer")
	    └── HTTP server (REST API)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Profile store: BadgerDB (persistent) or in-memory, optimistic versioning
 4. Catalog database: DuckDB with the product catalog and turn journal
 5. Engines: signal reconciler and preference-weighted ranker
 6. Session controller: dialogue state and the per-turn pipeline
 7. WebSocket hub: live turn notifications
 8. Supervisor tree: Suture v4 process supervision
 9. HTTP server: Chi router with middleware stack

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	HOST=0.0.0.0                 # Listen address
	PORT=8480                    # HTTP server port
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Profile store
	STORE_BACKEND=badger         # badger or memory
	STORE_PATH=/data/profiles    # Badger data directory

	# Catalog database
	DATABASE_PATH=/data/catalog.db

	# Broker ingest (requires -tags nats)
	NATS_ENABLED=false
	NATS_URL=nats://127.0.0.1:4222

Any nested config key can be set with the PREFERO_ prefix, using __ as
the nesting separator:

	PREFERO_ENGINE__RECONCILE__LEARNING_RATE=0.4
	PREFERO_ENGINE__SESSION__TTL=30m
	PREFERO_DECAY__INTERVAL=30m
	PREFERO_SNAPSHOT__ENABLED=true

# Build Tags

Optional build tags enable additional functionality:

	go build ./cmd/server                # REST-only build
	go build -tags nats ./cmd/server     # Enable NATS JetStream signal ingest

The nats tag adds the broker-fed ingest consumer to the messaging
layer; without it the same config fails soft to REST-only operation.

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Disconnects WebSocket watchers
 3. Waits for in-flight requests (10s timeout)
 4. Lets running maintenance sweeps finish their current pass
 5. Drains the journal recorder and closes the profile store
 6. Reports any services that failed to stop

# Usage Examples

Development (in-memory profiles):

	export STORE_BACKEND=memory
	export LOG_FORMAT=console
	go run ./cmd/server

Production (persistent profiles, broker ingest):

	export STORE_BACKEND=badger
	export STORE_PATH=/data/profiles
	export DATABASE_PATH=/data/catalog.db
	export NATS_ENABLED=true
	export NATS_URL=nats://broker:4222
	./prefero

Docker:

	docker run -d \
	  -e STORE_BACKEND=badger \
	  -e STORE_PATH=/data/profiles \
	  -e DATABASE_PATH=/data/catalog.db \
	  -v prefero-data:/data \
	  -p 8480:8480 \
	  ghcr.io/jcalloway/prefero

# API

The REST API lives under /api/v1 and is organized into categories:

  - Health: liveness, readiness, and latency percentiles
  - Sessions: open a session, process signals, read state, end
  - Profiles: read the learned profile, edit preferences, page the journal
  - Products: batch catalog upserts and preference-aware search
  - Interactions: judgment history and per-product statistics
  - WebSocket: live turn feed at /api/v1/ws
  - Metrics: Prometheus exposition at /metrics

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/api: HTTP handlers and routing
  - internal/session: Dialogue state and the turn pipeline
  - internal/reconcile: Signal reconciliation semantics
  - internal/rank: Scoring and ranking semantics
*/
package main
