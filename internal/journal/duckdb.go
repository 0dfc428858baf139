// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/jcalloway/prefero/internal/logging"
)

// DuckDBStore implements Store using DuckDB for persistent storage.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBStore creates a new DuckDB-backed journal store. Call CreateTable
// during initialization before saving events.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the preference_events table if it doesn't exist.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS preference_events (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			type TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT,
			category TEXT,
			attribute TEXT,
			value TEXT,
			polarity TEXT,
			utterance TEXT,
			description TEXT NOT NULL,
			delta JSON,
			metadata JSON,
			request_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_pref_events_timestamp ON preference_events(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_pref_events_type ON preference_events(type);
		CREATE INDEX IF NOT EXISTS idx_pref_events_user_id ON preference_events(user_id);
		CREATE INDEX IF NOT EXISTS idx_pref_events_session_id ON preference_events(session_id);
		CREATE INDEX IF NOT EXISTS idx_pref_events_category ON preference_events(category);
	`

	statements := strings.Split(query, ";")
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Preference events table created/verified")
	return nil
}

// Save persists one event.
func (s *DuckDBStore) Save(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	query := `
		INSERT INTO preference_events (
			id, timestamp, type, user_id, session_id,
			category, attribute, value, polarity, utterance,
			description, delta, metadata, request_id, created_at
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.Type),
		event.UserID,
		event.SessionID,
		event.Category,
		event.Attribute,
		event.Value,
		event.Polarity,
		event.Utterance,
		event.Description,
		marshalDelta(event.Delta),
		marshalMetadata(event.Metadata),
		event.RequestID,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save journal event: %w", err)
	}
	return nil
}

// marshalDelta converts a delta to a JSON string for the DuckDB JSON column.
func marshalDelta(delta *Delta) *string {
	if delta == nil {
		return nil
	}
	if data, err := json.Marshal(delta); err == nil {
		str := string(data)
		return &str
	}
	return nil
}

// marshalMetadata converts raw metadata to a string for DuckDB.
func marshalMetadata(metadata json.RawMessage) *string {
	if len(metadata) == 0 {
		return nil
	}
	str := string(metadata)
	return &str
}

// Get retrieves an event by ID.
func (s *DuckDBStore) Get(ctx context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := s.getBaseQuery(false) + " WHERE id = ?"

	row := s.db.QueryRowContext(ctx, query, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get journal event: %w", err)
	}
	return event, nil
}

// Query retrieves events matching the filter.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := s.buildQuery(filter, false)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEventFromRows(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan journal event row")
			continue
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal events: %w", err)
	}
	return events, nil
}

// Count returns the number of events matching the filter.
func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := s.buildQuery(filter, true)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count journal events: %w", err)
	}
	return count, nil
}

// Delete removes events older than the given time.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM preference_events WHERE timestamp < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old journal events: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}

	if count > 0 {
		logging.Info().Int64("deleted", count).Time("older_than", olderThan).Msg("Deleted old journal events")
	}
	return count, nil
}

// GetStats summarizes the journal.
func (s *DuckDBStore) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		EventsByType:     make(map[string]int64),
		EventsByCategory: make(map[string]int64),
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM preference_events").Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}
	stats.TotalEvents = total

	typeCounts, err := s.countByColumn(ctx, "type")
	if err != nil {
		return nil, err
	}
	stats.EventsByType = typeCounts

	categoryCounts, err := s.countByColumn(ctx, "category")
	if err != nil {
		return nil, err
	}
	delete(categoryCounts, "")
	stats.EventsByCategory = categoryCounts

	var oldest, newest sql.NullTime
	err = s.db.QueryRowContext(ctx, "SELECT MIN(timestamp), MAX(timestamp) FROM preference_events").Scan(&oldest, &newest)
	if err == nil {
		if oldest.Valid {
			stats.OldestEvent = &oldest.Time
		}
		if newest.Valid {
			stats.NewestEvent = &newest.Time
		}
	}

	return stats, nil
}

// countByColumn executes a GROUP BY query and returns counts per value.
func (s *DuckDBStore) countByColumn(ctx context.Context, column string) (map[string]int64, error) {
	result := make(map[string]int64)
	query := fmt.Sprintf("SELECT COALESCE(%s, ''), COUNT(*) FROM preference_events GROUP BY %s", column, column)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s counts: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err == nil {
			result[key] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s counts: %w", column, err)
	}
	return result, nil
}

// buildQuery constructs the SQL query based on the filter.
func (s *DuckDBStore) buildQuery(filter QueryFilter, countOnly bool) (string, []interface{}) {
	conditions, args := buildFilterConditions(filter)

	query := s.getBaseQuery(countOnly)

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if !countOnly {
		query = appendOrderAndLimit(query, filter)
	}

	return query, args
}

// buildFilterConditions builds WHERE clause conditions from a QueryFilter.
func buildFilterConditions(filter QueryFilter) ([]string, []interface{}) {
	var args []interface{}
	var conditions []string

	if cond := buildSliceCondition("type", filter.Types, &args); cond != "" {
		conditions = append(conditions, cond)
	}

	conditions, args = appendStringCondition(conditions, args, "user_id", filter.UserID)
	conditions, args = appendStringCondition(conditions, args, "session_id", filter.SessionID)
	conditions, args = appendStringCondition(conditions, args, "category", filter.Category)
	conditions, args = appendStringCondition(conditions, args, "attribute", filter.Attribute)

	if filter.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *filter.EndTime)
	}

	if filter.SearchText != "" {
		conditions = append(conditions, "(LOWER(description) LIKE ? OR LOWER(utterance) LIKE ?)")
		searchPattern := "%" + strings.ToLower(filter.SearchText) + "%"
		args = append(args, searchPattern, searchPattern)
	}

	return conditions, args
}

// buildSliceCondition creates a SQL IN condition for a slice of string values.
func buildSliceCondition[T ~string](column string, values []T, args *[]interface{}) string {
	if len(values) == 0 {
		return ""
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		*args = append(*args, string(v))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

// appendStringCondition adds a string equality condition if value is non-empty.
func appendStringCondition(conditions []string, args []interface{}, column, value string) ([]string, []interface{}) {
	if value != "" {
		conditions = append(conditions, column+" = ?")
		args = append(args, value)
	}
	return conditions, args
}

// getBaseQuery returns the SELECT statement for journal events.
func (s *DuckDBStore) getBaseQuery(countOnly bool) string {
	if countOnly {
		return "SELECT COUNT(*) FROM preference_events"
	}
	// Cast JSON columns to VARCHAR for proper scanning
	return `
		SELECT
			id, timestamp, type, user_id, session_id,
			category, attribute, value, polarity, utterance,
			description,
			CAST(delta AS VARCHAR) as delta,
			CAST(metadata AS VARCHAR) as metadata,
			request_id
		FROM preference_events
	`
}

// appendOrderAndLimit adds ORDER BY, LIMIT, and OFFSET clauses.
func appendOrderAndLimit(query string, filter QueryFilter) string {
	orderBy := "timestamp"
	validFields := map[string]bool{
		"timestamp": true, "type": true, "user_id": true,
		"category": true, "created_at": true,
	}
	if filter.OrderBy != "" && validFields[filter.OrderBy] {
		orderBy = filter.OrderBy
	}

	if filter.OrderDesc {
		query += fmt.Sprintf(" ORDER BY %s DESC", orderBy)
	} else {
		query += fmt.Sprintf(" ORDER BY %s ASC", orderBy)
	}

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	return query
}

// scannedEventData holds raw scanned values from the database.
type scannedEventData struct {
	event     Event
	eventType string
	sessionID sql.NullString
	category  sql.NullString
	attribute sql.NullString
	value     sql.NullString
	polarity  sql.NullString
	utterance sql.NullString
	delta     sql.NullString
	metadata  sql.NullString
	requestID sql.NullString
}

// scanDestinations returns pointers to all fields for scanning.
func (d *scannedEventData) scanDestinations() []interface{} {
	return []interface{}{
		&d.event.ID,
		&d.event.Timestamp,
		&d.eventType,
		&d.event.UserID,
		&d.sessionID,
		&d.category,
		&d.attribute,
		&d.value,
		&d.polarity,
		&d.utterance,
		&d.event.Description,
		&d.delta,
		&d.metadata,
		&d.requestID,
	}
}

// toEvent converts scanned data to a fully populated Event.
func (d *scannedEventData) toEvent() *Event {
	d.event.Type = EventType(d.eventType)
	d.event.SessionID = d.sessionID.String
	d.event.Category = d.category.String
	d.event.Attribute = d.attribute.String
	d.event.Value = d.value.String
	d.event.Polarity = d.polarity.String
	d.event.Utterance = d.utterance.String
	d.event.RequestID = d.requestID.String

	if d.delta.Valid && d.delta.String != "" {
		var delta Delta
		if err := json.Unmarshal([]byte(d.delta.String), &delta); err == nil {
			d.event.Delta = &delta
		}
	}
	if d.metadata.Valid && d.metadata.String != "" {
		d.event.Metadata = json.RawMessage(d.metadata.String)
	}

	return &d.event
}

// scanEvent scans a single row into an Event.
func scanEvent(row *sql.Row) (*Event, error) {
	var data scannedEventData
	if err := row.Scan(data.scanDestinations()...); err != nil {
		return nil, err
	}
	return data.toEvent(), nil
}

// scanEventFromRows scans the current row of a result set into an Event.
func scanEventFromRows(rows *sql.Rows) (*Event, error) {
	var data scannedEventData
	if err := rows.Scan(data.scanDestinations()...); err != nil {
		return nil, err
	}
	return data.toEvent(), nil
}
