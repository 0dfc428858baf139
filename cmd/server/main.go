// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package main is the entry point for the Prefero server application.
//
// Prefero is a preference reconciliation and ranking engine for
// conversational shopping assistants. It keeps a versioned preference
// profile per user, folds extracted dialogue signals into that profile
// turn by turn, and ranks catalog products against it with score
// breakdowns an assistant can read back to the shopper.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Profile store: BadgerDB (persistent) or in-memory, with optimistic versioning
//  3. Catalog database: DuckDB holding the product catalog and the turn journal
//  4. Engines: signal reconciler and preference-weighted ranker
//  5. Session controller: dialogue state and the per-turn pipeline
//  6. WebSocket hub: live turn feed for connected watchers
//  7. NATS (optional): broker-fed signal ingest with JetStream persistence
//  8. Supervisor tree: Suture v4 supervision of every long-running service
//  9. HTTP server: REST API on a Chi router with Prometheus metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (curated short names or the PREFERO_ prefix)
//   - Config file (CONFIG_PATH, /config/prefero.yaml, ./prefero.yaml)
//   - Built-in defaults
//
// Core environment variables:
//
//	HOST=0.0.0.0                 # Listen address
//	PORT=8480                    # HTTP server port
//	LOG_LEVEL=info               # trace, debug, info, warn, error
//	LOG_FORMAT=json              # json or console
//	STORE_BACKEND=badger         # badger or memory
//	STORE_PATH=/data/profiles    # Badger data directory
//	DATABASE_PATH=/data/catalog.db
//	NATS_ENABLED=false
//	NATS_URL=nats://127.0.0.1:4222
//
// Any nested key can be set with the PREFERO_ prefix and __ as the
// nesting separator:
//
//	PREFERO_ENGINE__RECONCILE__LEARNING_RATE=0.4
//	PREFERO_DECAY__INTERVAL=30m
//	PREFERO_JOURNAL__RETENTION=720h
//
// # Build Tags
//
// The broker ingest path is optional and gated behind a build tag:
//
//	go build ./cmd/server               # REST-only build
//	go build -tags nats ./cmd/server    # Enable NATS JetStream signal ingest
//
// Enabling nats in config against a binary built without the tag fails
// soft: the server logs a warning and keeps serving the REST path.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new HTTP connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Lets running maintenance sweeps finish their current pass
//   - Drains the journal recorder and closes the profile store
//   - Reports any services that failed to stop
//
// # Example Usage
//
// Development (in-memory profiles, console logs):
//
//	export STORE_BACKEND=memory
//	export LOG_FORMAT=console
//	go run ./cmd/server
//
// Production (persistent profiles, broker ingest):
//
//	export STORE_BACKEND=badger
//	export STORE_PATH=/data/profiles
//	export DATABASE_PATH=/data/catalog.db
//	export NATS_ENABLED=true
//	export NATS_URL=nats://broker:4222
//	./prefero
//
// Docker:
//
//	docker run -d \
//	  -e STORE_BACKEND=badger \
//	  -e STORE_PATH=/data/profiles \
//	  -e DATABASE_PATH=/data/catalog.db \
//	  -v prefero-data:/data \
//	  -p 8480:8480 \
//	  ghcr.io/jcalloway/prefero
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jcalloway/prefero/internal/api"
	"github.com/jcalloway/prefero/internal/config"
	"github.com/jcalloway/prefero/internal/database"
	"github.com/jcalloway/prefero/internal/ingest"
	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/rank"
	"github.com/jcalloway/prefero/internal/reconcile"
	"github.com/jcalloway/prefero/internal/session"
	"github.com/jcalloway/prefero/internal/store"
	"github.com/jcalloway/prefero/internal/supervisor"
	"github.com/jcalloway/prefero/internal/supervisor/services"
	ws "github.com/jcalloway/prefero/internal/websocket"
)

// version is stamped into the app_info metric. Release builds override
// it via -ldflags "-X main.version=...".
var version = "1.0.0"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("version", version).Msg("Starting Prefero with supervisor tree")

	logging.Info().
		Str("store_backend", cfg.Store.Backend).
		Str("db_path", cfg.Database.Path).
		Bool("journal", cfg.Journal.Enabled).
		Bool("nats", cfg.NATS.Enabled).
		Msg("Configuration loaded")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the profile store. Badger is the production backend; memory
	// keeps everything in process for development and tests.
	var st store.Store
	switch cfg.Store.Backend {
	case "badger":
		badgerStore, err := store.OpenBadger(store.Config{
			Path:          cfg.Store.Path,
			SyncWrites:    cfg.Store.SyncWrites,
			RetryAttempts: cfg.Store.RetryAttempts,
			GCInterval:    cfg.Store.GCInterval,
		})
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open profile store")
		}
		defer func() {
			if err := badgerStore.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing profile store")
			}
		}()
		// Value-log GC is Badger IO housekeeping on its own goroutine,
		// not a supervised service.
		badgerStore.StartGC(ctx, cfg.Store.GCInterval)
		st = badgerStore
		logging.Info().
			Str("path", cfg.Store.Path).
			Bool("sync_writes", cfg.Store.SyncWrites).
			Msg("Badger profile store opened")
	case "memory":
		st = store.NewMemoryStore()
		logging.Warn().Msg("In-memory profile store selected - profiles are lost on restart")
	default:
		logging.Fatal().Str("backend", cfg.Store.Backend).Msg("Unknown store backend")
	}

	// Initialize the catalog database
	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize catalog database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing catalog database")
		}
	}()
	logging.Info().Str("path", cfg.Database.Path).Msg("Catalog database initialized")

	// Initialize the DuckDB-backed turn journal. The recorder is optional
	// everywhere downstream: a nil recorder disables journaling without
	// touching the turn path.
	var recorder *journal.Recorder
	if cfg.Journal.Enabled {
		journalStore := journal.NewDuckDBStore(db.Conn())
		if err := journalStore.CreateTable(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to create journal table - journaling disabled")
		} else {
			recorder = journal.NewRecorder(journalStore, journal.Config{
				Enabled:       true,
				BufferSize:    cfg.Journal.BufferSize,
				Retention:     cfg.Journal.Retention,
				PruneInterval: cfg.Journal.PruneInterval,
			})
			defer func() {
				if err := recorder.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing journal recorder")
				}
			}()
			logging.Info().
				Int("buffer_size", cfg.Journal.BufferSize).
				Dur("retention", cfg.Journal.Retention).
				Msg("Turn journal initialized with DuckDB persistence")
		}
	} else {
		logging.Info().Msg("Turn journal disabled (PREFERO_JOURNAL__ENABLED=false)")
	}

	// Build the reconciliation engine
	reconciler, err := reconcile.New(reconcile.Config{
		LearningRate:          cfg.Engine.Reconcile.LearningRate,
		ConfidenceGain:        cfg.Engine.Reconcile.ConfidenceGain,
		ContradictionPenalty:  cfg.Engine.Reconcile.ContradictionPenalty,
		HardPromotionStreak:   cfg.Engine.Reconcile.HardPromotionStreak,
		HardPromotionStrength: cfg.Engine.Reconcile.HardPromotionStrength,
		LongTermThreshold:     cfg.Engine.Reconcile.LongTermThreshold,
		HalfLife:              cfg.Engine.Reconcile.HalfLife,
		Transfer: reconcile.TransferConfig{
			Enabled:  cfg.Engine.Transfer.Enabled,
			Discount: cfg.Engine.Transfer.Discount,
		},
	}, recorder)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build reconciler")
	}

	// Build the ranking engine. Result limits are fixed defaults; only
	// exploration and the tie-break seed are operator-tunable.
	rankCfg := rank.DefaultConfig()
	rankCfg.ExplorationAmplitude = cfg.Engine.Rank.ExplorationAmplitude
	rankCfg.Seed = cfg.Engine.Rank.Seed
	engine, err := rank.New(rankCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build ranking engine")
	}

	// WebSocket hub for the live turn feed
	var hub *ws.Hub
	if cfg.Websocket.Enabled {
		hub = ws.NewHub()
	} else {
		logging.Info().Msg("WebSocket turn feed disabled (PREFERO_WEBSOCKET__ENABLED=false)")
	}

	// Session controller drives the turn pipeline over everything above
	deps := session.Deps{
		Store:      st,
		Reconciler: reconciler,
		Engine:     engine,
		Source:     db,
		Recorder:   recorder,
	}
	// Assign only when the hub exists so the controller sees a nil
	// interface rather than a typed nil *ws.Hub
	if hub != nil {
		deps.Notifier = hub
	}
	controller, err := session.NewController(session.Config{
		ClarificationBand:     cfg.Engine.Session.ClarificationBand,
		ClarificationMinTurns: cfg.Engine.Session.ClarificationMinTurns,
		CandidateBatchSize:    cfg.Engine.Session.CandidateBatchSize,
		TTL:                   cfg.Engine.Session.TTL,
		MaxSessions:           cfg.Engine.Session.MaxSessions,
		UpdateRetries:         cfg.Store.RetryAttempts,
	}, deps)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create session controller")
	}

	handler := api.NewHandler(controller, st, reconciler, recorder, db, cfg, hub)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create structured logger for supervisor using our slog adapter.
	// This bridges zerolog to slog for sutureslog compatibility.
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Data layer services
	if cfg.Decay.Enabled {
		tree.AddDataService(services.NewDecaySweeper(st, reconciler, services.DecaySweeperConfig{
			Interval:        cfg.Decay.Interval,
			WritesPerSecond: cfg.Decay.WritesPerSecond,
			UpdateRetries:   cfg.Store.RetryAttempts,
		}))
		logging.Info().Dur("interval", cfg.Decay.Interval).Msg("Decay sweeper added to supervisor tree")
	} else {
		logging.Info().Msg("Confidence decay disabled (PREFERO_DECAY__ENABLED=false)")
	}

	if recorder != nil {
		tree.AddDataService(services.NewJournalPruner(recorder, cfg.Journal.PruneInterval))
		logging.Info().Dur("interval", cfg.Journal.PruneInterval).Msg("Journal pruner added to supervisor tree")
	}

	if cfg.Snapshot.Enabled {
		snaps, err := store.NewSnapshotStore(cfg.Snapshot.Dir)
		if err != nil {
			logging.Fatal().Err(err).Str("dir", cfg.Snapshot.Dir).Msg("Failed to open snapshot directory")
		}
		tree.AddDataService(services.NewSnapshotService(st, snaps, db, services.SnapshotServiceConfig{
			Interval: cfg.Snapshot.Interval,
			Keep:     cfg.Snapshot.Keep,
		}))
		logging.Info().
			Str("dir", cfg.Snapshot.Dir).
			Dur("interval", cfg.Snapshot.Interval).
			Int("keep", cfg.Snapshot.Keep).
			Msg("Profile snapshots enabled")
	}

	// Session TTL sweeper always runs; interval 0 selects the default
	tree.AddDataService(services.NewSessionSweeper(controller, 0))

	// Messaging layer services
	if hub != nil {
		tree.AddMessagingService(services.NewWebSocketHubService(hub))
		logging.Info().Msg("WebSocket hub added to supervisor tree")
	}

	if cfg.NATS.Enabled {
		ingestSvc, err := ingest.NewService(ingest.ServiceConfig{
			URL:              cfg.NATS.URL,
			EmbeddedServer:   cfg.NATS.EmbeddedServer,
			StoreDir:         cfg.NATS.StoreDir,
			StreamName:       cfg.NATS.StreamName,
			Subject:          cfg.NATS.Subject,
			DurableName:      cfg.NATS.DurableName,
			QueueGroup:       cfg.NATS.QueueGroup,
			SubscribersCount: cfg.NATS.SubscribersCount,
			MaxDeliver:       cfg.NATS.MaxDeliver,
			AckWait:          cfg.NATS.AckWait,
		}, controller, recorder)
		switch {
		case errors.Is(err, ingest.ErrNATSNotEnabled):
			logging.Warn().Msg("NATS enabled in config but binary built without -tags nats - continuing REST-only")
		case err != nil:
			logging.Fatal().Err(err).Msg("Failed to initialize NATS signal ingest")
		default:
			tree.AddMessagingService(ingestSvc)
			logging.Info().
				Str("url", cfg.NATS.URL).
				Str("stream", cfg.NATS.StreamName).
				Bool("embedded", cfg.NATS.EmbeddedServer).
				Msg("NATS signal ingest added to supervisor tree")
		}
	}

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Expose build info and uptime through Prometheus
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.AppUptime.Set(time.Since(startTime).Seconds())
			}
		}
	}()

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
