// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jcalloway/prefero/internal/catalog"
	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/prefs"
)

const (
	defaultInteractionLimit = 50
	maxInteractionLimit     = 100
)

// UpsertInteraction records the terminal judgment for a (user, product)
// pair. A repeat judgment overwrites sentiment and note; created_at keeps
// the first judgment time. The interaction's timestamps are updated to the
// stored values.
func (db *DB) UpsertInteraction(ctx context.Context, interaction *prefs.Interaction) error {
	if err := interaction.Validate(); err != nil {
		return fmt.Errorf("invalid interaction: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	interaction.CreatedAt = now
	interaction.UpdatedAt = now

	query := `INSERT INTO interactions (user_id, product_id, sentiment, note, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, product_id) DO UPDATE SET
		sentiment = EXCLUDED.sentiment,
		note = EXCLUDED.note,
		updated_at = EXCLUDED.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		interaction.UserID, interaction.ProductID, string(interaction.Sentiment),
		interaction.Note, interaction.CreatedAt, interaction.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert interaction %s/%s: %w",
			interaction.UserID, interaction.ProductID, err)
	}

	// On overwrite the stored created_at predates ours; read it back so the
	// caller holds the row as persisted.
	err = db.conn.QueryRowContext(ctx,
		`SELECT created_at FROM interactions WHERE user_id = ? AND product_id = ?`,
		interaction.UserID, interaction.ProductID,
	).Scan(&interaction.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to read back interaction %s/%s: %w",
			interaction.UserID, interaction.ProductID, err)
	}
	interaction.CreatedAt = interaction.CreatedAt.UTC()

	return nil
}

// InteractionFilter narrows an interaction listing. Zero values mean "not
// filtered".
type InteractionFilter struct {
	// UserID filters by judging user.
	UserID string `json:"user_id,omitempty"`

	// ProductID filters by judged product.
	ProductID string `json:"product_id,omitempty"`

	// Sentiment filters by good or bad.
	Sentiment prefs.Sentiment `json:"sentiment,omitempty"`

	// Limit caps results. Default 50, max 100.
	Limit int `json:"limit,omitempty"`

	// Offset skips results for pagination.
	Offset int `json:"offset,omitempty"`
}

// InteractionDetail is an interaction joined with its product.
type InteractionDetail struct {
	prefs.Interaction
	Product catalog.Product `json:"product"`
}

// ListInteractions returns interactions with full product details, newest
// first.
func (db *DB) ListInteractions(ctx context.Context, filter InteractionFilter) ([]InteractionDetail, error) {
	query := `SELECT
		i.user_id, i.sentiment, i.note, i.created_at, i.updated_at,
		p.product_id, p.category, p.title, p.brand, p.price, p.attributes,
		p.image_url, p.source_url, p.description, p.listed_at
	FROM interactions i
	JOIN products p ON i.product_id = p.product_id
	WHERE 1=1`
	args := []any{}

	if filter.UserID != "" {
		query += ` AND i.user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.ProductID != "" {
		query += ` AND i.product_id = ?`
		args = append(args, filter.ProductID)
	}
	if filter.Sentiment != "" {
		if !filter.Sentiment.IsValid() {
			return nil, fmt.Errorf("invalid sentiment filter %q", filter.Sentiment)
		}
		query += ` AND i.sentiment = ?`
		args = append(args, string(filter.Sentiment))
	}

	query += ` ORDER BY i.created_at DESC, i.product_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultInteractionLimit
	}
	if limit > maxInteractionLimit {
		limit = maxInteractionLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	details := make([]InteractionDetail, 0)
	for rows.Next() {
		var d InteractionDetail
		var sentiment string
		var note, brand, attrs, imageURL, sourceURL, description sql.NullString

		err := rows.Scan(&d.UserID, &sentiment, &note, &d.CreatedAt, &d.UpdatedAt,
			&d.Product.ProductID, &d.Product.Category, &d.Product.Title, &brand,
			&d.Product.Price, &attrs, &imageURL, &sourceURL, &description,
			&d.Product.AddedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}

		d.ProductID = d.Product.ProductID
		d.Sentiment = prefs.Sentiment(sentiment)
		d.Note = note.String
		d.CreatedAt = d.CreatedAt.UTC()
		d.UpdatedAt = d.UpdatedAt.UTC()
		if err := finishProduct(&d.Product, brand, attrs, imageURL, sourceURL, description); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}

	return details, nil
}

// SentimentStat aggregates judgments over one attribute value.
type SentimentStat struct {
	// Attribute key ("material", "brand").
	Attribute string `json:"attribute"`

	// Value under the attribute ("leather", "cheapcraft").
	Value string `json:"value"`

	// Good counts good judgments of products carrying the value.
	Good int64 `json:"good"`

	// Bad counts bad judgments of products carrying the value.
	Bad int64 `json:"bad"`
}

// SentimentByAttribute aggregates a user's judgments by the attribute values
// of the judged products, optionally within one category. This is the data
// behind "you've liked 4 leather products and rejected 3 from cheapcraft".
func (db *DB) SentimentByAttribute(ctx context.Context, userID, category string) ([]SentimentStat, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id required")
	}

	query := `SELECT
		pa.attribute, pa.value,
		COUNT(*) FILTER (WHERE i.sentiment = 'good') AS good,
		COUNT(*) FILTER (WHERE i.sentiment = 'bad') AS bad
	FROM interactions i
	JOIN products p ON i.product_id = p.product_id
	JOIN product_attributes pa ON pa.product_id = i.product_id
	WHERE i.user_id = ?`
	args := []any{userID}

	if category != "" {
		query += ` AND p.category = ?`
		args = append(args, prefs.NormalizeValue(category))
	}
	query += ` GROUP BY pa.attribute, pa.value ORDER BY pa.attribute, pa.value`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("SELECT", "interactions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sentiment: %w", err)
	}
	defer rows.Close()

	stats := make([]SentimentStat, 0)
	for rows.Next() {
		var s SentimentStat
		if err := rows.Scan(&s.Attribute, &s.Value, &s.Good, &s.Bad); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sentiment stats: %w", err)
	}

	return stats, nil
}
