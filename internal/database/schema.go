// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core tables.
//
// products carries the crawled catalog. The attribute map is stored twice on
// purpose: as JSON on the row for lossless rehydration into catalog.Product,
// and exploded into product_attributes rows so attribute filters and
// sentiment aggregates stay plain SQL instead of JSON path queries.
// product_attributes is derived data, rebuilt on every product upsert.
//
// The preference_events table is owned by the journal store, which shares
// this connection.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS products (
			product_id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			title TEXT NOT NULL,
			brand TEXT,
			price DOUBLE NOT NULL DEFAULT 0,
			attributes TEXT NOT NULL DEFAULT '{}',
			image_url TEXT,
			source_url TEXT,
			description TEXT,
			listed_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS product_attributes (
			product_id TEXT NOT NULL,
			attribute TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (product_id, attribute, value)
		)`,

		`CREATE TABLE IF NOT EXISTS interactions (
			user_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			sentiment TEXT NOT NULL,
			note TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, product_id)
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// createIndexes creates indexes for the common query patterns: candidate
// fetch by category, search filters, and interaction listings.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category)`,
		`CREATE INDEX IF NOT EXISTS idx_products_brand ON products(brand)`,
		`CREATE INDEX IF NOT EXISTS idx_products_listed_at ON products(listed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_product_attributes_lookup ON product_attributes(attribute, value)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_product ON interactions(product_id)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}
