// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package database wraps the embedded DuckDB instance backing the product
// catalog and the interaction history. It also hands its connection to the
// preference journal's DuckDB store, so one file holds everything the
// transparency drawer reads.
//
// The catalog side implements catalog.Source: the session controller fetches
// ranking candidates from here in production and from a StaticSource in
// tests.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/jcalloway/prefero/internal/config"
	"github.com/jcalloway/prefero/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("database path required")
	}

	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// 0750 per gosec G301.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Auto-install/auto-load stays off: the schema needs no extensions and
	// disabling them prevents hangs in restricted network environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}
	db.configureConnectionPool()

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := db.createIndexes(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	// Flush the WAL once the schema exists so a crash before the first
	// checkpoint doesn't leave schema statements to replay.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
	}

	return db, nil
}

// Conn returns the underlying SQL connection. The preference journal's
// DuckDB store shares it.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Checkpoint forces a WAL checkpoint. The snapshot service calls this before
// copying the database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// RecordCounts returns the row counts of the main tables, for readiness
// detail and backup verification.
func (db *DB) RecordCounts(ctx context.Context) (products, interactions int64, err error) {
	err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&products)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count products: %w", err)
	}
	err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM interactions").Scan(&interactions)
	if err != nil {
		return products, 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return products, interactions, nil
}

// Close checkpoints and closes the database. The checkpoint is best effort;
// it keeps the next startup from replaying a WAL full of schema statements.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}

	return db.conn.Close()
}

// configureConnectionPool sets connection pool parameters.
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// closeQuietly closes a resource and explicitly ignores any error. Used in
// error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
