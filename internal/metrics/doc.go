// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the engine with the Prometheus client library, exposing
metrics for monitoring performance, errors, and system health.

# Overview

The package provides metrics for:
  - API endpoint latency and throughput
  - Database query performance (DuckDB)
  - Signal reconciliation outcomes, promotions, and relaxations
  - Session lifecycle, turn latency, and clarifications
  - Ranking pass latency and candidate volume
  - Journal writer throughput and drops
  - Profile store conflicts, snapshots, and decay sweeps
  - WebSocket connection counts
  - Ingest pipeline throughput and circuit breaker state

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8480/metrics

# Available Metrics

API Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: Active requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)
    Labels: endpoint

Database Metrics:
  - duckdb_query_duration_seconds: Query execution time (histogram)
    Labels: operation, table
  - duckdb_query_errors_total: Failed queries (counter)
    Labels: operation, table, error_type
  - duckdb_connection_pool_size: Connections in use (gauge)

Reconciliation Metrics:
  - signals_applied_total: Reconciled signals (counter)
    Labels: outcome (created, reinforced, superseded, noted, conflict)
  - signals_malformed_total: Rejected signals (counter)
  - preference_hard_promotions_total: Soft-to-hard promotions (counter)
  - preference_long_term_promotions_total: Session-to-long-term promotions (counter)
  - preference_transfers_total: Cross-category copies (counter)
  - constraint_relaxations_total: Hard constraints loosened (counter)
  - decay_sweep_duration_seconds: Decay sweep duration (histogram)
  - preferences_decayed_total: Strengths reduced by decay (counter)

Session Metrics:
  - sessions_opened_total / sessions_ended_total (counter; ended labeled by reason)
  - sessions_active: Tracked sessions (gauge)
  - session_turns_total: Processed turns (counter)
  - session_turn_duration_seconds: Full turn latency (histogram)
  - clarifications_issued_total: Clarification prompts (counter)
    Labels: reason (conflicting_constraint, indistinguishable)

Ranking Metrics:
  - rank_duration_seconds: Ranking pass latency (histogram)
  - rank_candidates: Candidates per pass (histogram)

Journal Metrics:
  - journal_events_recorded_total: Persisted events (counter)
    Labels: event_type
  - journal_events_dropped_total: Events dropped by a full buffer (counter)
  - journal_events_pruned_total: Events removed by retention (counter)

Store Metrics:
  - profile_version_conflicts_total: Optimistic concurrency retries (counter)
  - profile_snapshot_duration_seconds: Snapshot write latency (histogram)
  - profile_snapshot_last_success_timestamp: Last good snapshot (gauge)

# Usage

Record helpers wrap the common cases:

	defer func(start time.Time) {
		metrics.RecordDBQuery("SELECT", "products", time.Since(start), err)
	}(time.Now())

Gauges are set directly where a current value is known:

	metrics.SetActiveSessions(controller.Len())

# Cardinality

Label values are drawn from closed sets (outcomes, reasons, table names,
normalized route patterns). Never label with user IDs, session IDs, or other
unbounded values.
*/
package metrics
