// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the engine:
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - Signal reconciliation outcomes and promotions
// - Session lifecycle and turn latency
// - Ranking passes
// - Journal writer health
// - WebSocket connections
// - Ingest pipeline and circuit breaker

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_connection_pool_size",
			Help: "Current number of database connections in use",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Signal Reconciliation Metrics
	SignalsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_applied_total",
			Help: "Total number of reconciled signals by outcome",
		},
		[]string{"outcome"}, // "created", "reinforced", "superseded", "noted", "conflict"
	)

	SignalsMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signals_malformed_total",
			Help: "Total number of signals rejected as malformed",
		},
	)

	HardPromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preference_hard_promotions_total",
			Help: "Total number of preferences promoted to hard constraints",
		},
	)

	LongTermPromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preference_long_term_promotions_total",
			Help: "Total number of preferences promoted to long-term scope",
		},
	)

	PreferenceTransfers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preference_transfers_total",
			Help: "Total number of preferences copied across categories",
		},
	)

	ConstraintRelaxations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "constraint_relaxations_total",
			Help: "Total number of hard constraints loosened to rescue an empty candidate set",
		},
	)

	DecaySweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decay_sweep_duration_seconds",
			Help:    "Duration of profile decay sweeps in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	PreferencesDecayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preferences_decayed_total",
			Help: "Total number of preference strengths reduced by inactivity decay",
		},
	)

	// Session Metrics
	SessionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_opened_total",
			Help: "Total number of sessions opened",
		},
	)

	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_ended_total",
			Help: "Total number of sessions ended",
		},
		[]string{"reason"}, // "explicit", "purchase", "expired"
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Current number of tracked sessions",
		},
	)

	TurnsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_turns_total",
			Help: "Total number of processed conversation turns",
		},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_turn_duration_seconds",
			Help:    "Duration of full turns (reconcile + rank) in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	ClarificationsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clarifications_issued_total",
			Help: "Total number of clarification prompts issued",
		},
		[]string{"reason"}, // "conflicting_constraint", "indistinguishable"
	)

	// Ranking Metrics
	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rank_duration_seconds",
			Help:    "Duration of ranking passes in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	RankCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rank_candidates",
			Help:    "Number of candidates considered per ranking pass",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Journal Metrics
	JournalEventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_events_recorded_total",
			Help: "Total number of journal events persisted",
		},
		[]string{"event_type"},
	)

	JournalEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_events_dropped_total",
			Help: "Total number of journal events dropped by a full buffer",
		},
	)

	JournalEventsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_events_pruned_total",
			Help: "Total number of journal events removed by retention pruning",
		},
	)

	// Profile Store Metrics
	StoreVersionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "profile_version_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts on profile writes",
		},
	)

	SnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "profile_snapshot_duration_seconds",
			Help:    "Duration of profile snapshot writes in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	SnapshotLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profile_snapshot_last_success_timestamp",
			Help: "Unix timestamp of the last successful profile snapshot",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Ingest Pipeline Metrics
	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of messages published to NATS",
		},
	)

	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Total number of messages consumed from NATS",
		},
	)

	NATSMessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_processed_total",
			Help: "Total number of messages successfully processed",
		},
	)

	NATSMessagesParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_parse_failed_total",
			Help: "Total number of messages that failed to parse",
		},
	)

	NATSMessagesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_deduplicated_total",
			Help: "Total number of messages skipped as redelivered duplicates",
		},
	)

	NATSProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_processing_duration_seconds",
			Help:    "Duration of NATS message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSignal records a reconciled signal by outcome
func RecordSignal(outcome string) {
	SignalsApplied.WithLabelValues(outcome).Inc()
}

// RecordMalformedSignal records a rejected signal
func RecordMalformedSignal() {
	SignalsMalformed.Inc()
}

// RecordPromotions records promotions reported by a reconciliation
func RecordPromotions(hard, longTerm bool) {
	if hard {
		HardPromotions.Inc()
	}
	if longTerm {
		LongTermPromotions.Inc()
	}
}

// RecordTransfer records a cross-category preference copy
func RecordTransfer() {
	PreferenceTransfers.Inc()
}

// RecordRelaxation records a loosened hard constraint
func RecordRelaxation() {
	ConstraintRelaxations.Inc()
}

// RecordDecaySweep records one decay sweep over the profile store
func RecordDecaySweep(duration time.Duration, decayed int) {
	DecaySweepDuration.Observe(duration.Seconds())
	PreferencesDecayed.Add(float64(decayed))
}

// RecordSessionOpened records a session being opened
func RecordSessionOpened() {
	SessionsOpened.Inc()
}

// RecordSessionEnded records a session ending with its reason
func RecordSessionEnded(reason string) {
	SessionsEnded.WithLabelValues(reason).Inc()
}

// SetActiveSessions sets the tracked session gauge
func SetActiveSessions(n int) {
	SessionsActive.Set(float64(n))
}

// RecordTurn records one processed turn
func RecordTurn(duration time.Duration) {
	TurnsProcessed.Inc()
	TurnDuration.Observe(duration.Seconds())
}

// RecordClarification records an issued clarification prompt
func RecordClarification(reason string) {
	ClarificationsIssued.WithLabelValues(reason).Inc()
}

// RecordRank records one ranking pass
func RecordRank(duration time.Duration, candidates int) {
	RankDuration.Observe(duration.Seconds())
	RankCandidates.Observe(float64(candidates))
}

// RecordJournalEvent records a persisted journal event
func RecordJournalEvent(eventType string) {
	JournalEventsRecorded.WithLabelValues(eventType).Inc()
}

// RecordJournalDrop records a journal event dropped by backpressure
func RecordJournalDrop() {
	JournalEventsDropped.Inc()
}

// RecordJournalPrune records retention pruning
func RecordJournalPrune(removed int64) {
	JournalEventsPruned.Add(float64(removed))
}

// RecordVersionConflict records an optimistic concurrency retry
func RecordVersionConflict() {
	StoreVersionConflicts.Inc()
}

// RecordSnapshot records a profile snapshot write
func RecordSnapshot(duration time.Duration, err error) {
	SnapshotDuration.Observe(duration.Seconds())
	if err == nil {
		SnapshotLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordNATSPublish records a message being published to NATS
func RecordNATSPublish() {
	NATSMessagesPublished.Inc()
}

// RecordNATSConsume records a message being consumed from NATS
func RecordNATSConsume() {
	NATSMessagesConsumed.Inc()
}

// RecordNATSProcessed records a message being successfully processed
func RecordNATSProcessed() {
	NATSMessagesProcessed.Inc()
}

// RecordNATSParseFailed records a message that failed to parse
func RecordNATSParseFailed() {
	NATSMessagesParseFailed.Inc()
}

// RecordNATSDeduplicated records a redelivered duplicate being skipped
func RecordNATSDeduplicated() {
	NATSMessagesDeduplicated.Inc()
}

// RecordNATSProcessingDuration records the duration of message processing
func RecordNATSProcessingDuration(duration time.Duration) {
	NATSProcessingDuration.Observe(duration.Seconds())
}
