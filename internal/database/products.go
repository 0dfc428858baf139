// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/jcalloway/prefero/internal/catalog"
	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/prefs"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

const productColumns = `product_id, category, title, brand, price, attributes,
	image_url, source_url, description, listed_at`

// UpsertProduct inserts or refreshes a catalog product. The product is
// normalized first, so stored values match what preference reconciliation
// produces. Re-upserting keeps listed_at: a re-crawl refreshes data, not
// freshness. Brand is mirrored into the attribute rows so per-brand filters
// and sentiment aggregates need no special casing.
func (db *DB) UpsertProduct(ctx context.Context, product *catalog.Product) error {
	p := product.Normalize()
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode attributes for %s: %w", p.ProductID, err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	if p.AddedAt.IsZero() {
		p.AddedAt = now
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO products (
		product_id, category, title, brand, price, attributes,
		image_url, source_url, description, listed_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (product_id) DO UPDATE SET
		category = EXCLUDED.category,
		title = EXCLUDED.title,
		brand = EXCLUDED.brand,
		price = EXCLUDED.price,
		attributes = EXCLUDED.attributes,
		image_url = EXCLUDED.image_url,
		source_url = EXCLUDED.source_url,
		description = EXCLUDED.description,
		updated_at = EXCLUDED.updated_at`

	_, err = tx.ExecContext(ctx, query,
		p.ProductID, p.Category, p.Title, p.Brand, p.Price, string(attrs),
		p.ImageURL, p.SourceURL, p.Description, p.AddedAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ProductID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_attributes WHERE product_id = ?`, p.ProductID); err != nil {
		return fmt.Errorf("failed to clear attribute rows for %s: %w", p.ProductID, err)
	}
	// ON CONFLICT DO NOTHING: normalization can fold two raw values into the
	// same row, and an explicit brand attribute may repeat the mirrored one.
	attrInsert := `INSERT INTO product_attributes (product_id, attribute, value)
		VALUES (?, ?, ?) ON CONFLICT DO NOTHING`
	for attribute, values := range p.Attributes {
		for _, value := range values {
			if _, err := tx.ExecContext(ctx, attrInsert, p.ProductID, attribute, value); err != nil {
				return fmt.Errorf("failed to index attribute %s=%s for %s: %w", attribute, value, p.ProductID, err)
			}
		}
	}
	if p.Brand != "" {
		if _, err := tx.ExecContext(ctx, attrInsert, p.ProductID, "brand", p.Brand); err != nil {
			return fmt.Errorf("failed to index brand for %s: %w", p.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product upsert: %w", err)
	}
	return nil
}

// Products returns every product in the category, ordered by product ID.
// Implements catalog.Source.
func (db *DB) Products(ctx context.Context, category string) ([]catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE category = ? ORDER BY product_id`

	rows, err := db.conn.QueryContext(ctx, query, prefs.NormalizeValue(category))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// Product returns the product by ID. Implements catalog.Source.
func (db *DB) Product(ctx context.Context, productID string) (catalog.Product, bool, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE product_id = ?`

	p, err := scanProduct(db.conn.QueryRowContext(ctx, query, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, false, nil
	}
	if err != nil {
		return catalog.Product{}, false, fmt.Errorf("failed to get product %s: %w", productID, err)
	}
	return p, true, nil
}

// SearchParams are the catalog search filters. Zero values mean "not
// filtered". List filters match any of the given values.
type SearchParams struct {
	// Brands filters to any of the given brands.
	Brands []string `json:"brand,omitempty"`

	// Category filters by exact category.
	Category string `json:"category,omitempty"`

	// SubCategory matches the product type attribute ("sneaker", "boot").
	SubCategory string `json:"sub_category,omitempty"`

	// StyleTags, Colors, Materials, UseCases match the corresponding
	// attribute values.
	StyleTags []string `json:"style_tags,omitempty"`
	Colors    []string `json:"colors,omitempty"`
	Materials []string `json:"materials,omitempty"`
	UseCases  []string `json:"use_cases,omitempty"`

	// PriceMin and PriceMax bound the price, inclusive.
	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`

	// Size matches the size attribute.
	Size string `json:"size,omitempty"`

	// Text is a free-text search over title and description.
	Text string `json:"text,omitempty"`

	// Limit caps results. Default 20, max 100.
	Limit int `json:"limit,omitempty"`

	// Offset skips results for pagination.
	Offset int `json:"offset,omitempty"`
}

// SearchProducts filters the catalog, newest listings first.
func (db *DB) SearchProducts(ctx context.Context, params SearchParams) ([]catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []any{}

	if len(params.Brands) > 0 {
		query += ` AND brand IN (` + placeholders(len(params.Brands)) + `)`
		for _, b := range params.Brands {
			args = append(args, prefs.NormalizeValue(b))
		}
	}
	if params.Category != "" {
		query += ` AND category = ?`
		args = append(args, prefs.NormalizeValue(params.Category))
	}
	if params.PriceMin != nil {
		query += ` AND price >= ?`
		args = append(args, *params.PriceMin)
	}
	if params.PriceMax != nil {
		query += ` AND price <= ?`
		args = append(args, *params.PriceMax)
	}

	appendAttributeFilter(&query, &args, string(prefs.KindType), oneValue(params.SubCategory))
	appendAttributeFilter(&query, &args, string(prefs.KindSize), oneValue(params.Size))
	appendAttributeFilter(&query, &args, string(prefs.KindStyleTag), params.StyleTags)
	appendAttributeFilter(&query, &args, string(prefs.KindColor), params.Colors)
	appendAttributeFilter(&query, &args, string(prefs.KindMaterial), params.Materials)
	appendAttributeFilter(&query, &args, string(prefs.KindUseCase), params.UseCases)

	if text := strings.TrimSpace(params.Text); text != "" {
		query += ` AND (title ILIKE ? OR description ILIKE ?)`
		pattern := "%" + text + "%"
		args = append(args, pattern, pattern)
	}

	query += ` ORDER BY listed_at DESC, product_id`

	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("SELECT", "products", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// appendAttributeFilter adds an EXISTS condition over the attribute rows.
func appendAttributeFilter(query *string, args *[]any, attribute string, values []string) {
	if len(values) == 0 {
		return
	}
	*query += ` AND EXISTS (
		SELECT 1 FROM product_attributes pa
		WHERE pa.product_id = products.product_id
		AND pa.attribute = ? AND pa.value IN (` + placeholders(len(values)) + `))`
	*args = append(*args, attribute)
	for _, v := range values {
		*args = append(*args, prefs.NormalizeValue(v))
	}
}

func oneValue(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return []string{v}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (catalog.Product, error) {
	var p catalog.Product
	var brand, attrs, imageURL, sourceURL, description sql.NullString

	err := row.Scan(&p.ProductID, &p.Category, &p.Title, &brand, &p.Price,
		&attrs, &imageURL, &sourceURL, &description, &p.AddedAt)
	if err != nil {
		return catalog.Product{}, err
	}
	if err := finishProduct(&p, brand, attrs, imageURL, sourceURL, description); err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

// finishProduct assigns the nullable columns and decodes the attribute JSON.
func finishProduct(p *catalog.Product, brand, attrs, imageURL, sourceURL, description sql.NullString) error {
	p.Brand = brand.String
	p.ImageURL = imageURL.String
	p.SourceURL = sourceURL.String
	p.Description = description.String
	p.AddedAt = p.AddedAt.UTC()

	if attrs.Valid && attrs.String != "" && attrs.String != "{}" {
		if err := json.Unmarshal([]byte(attrs.String), &p.Attributes); err != nil {
			return fmt.Errorf("failed to decode attributes for %s: %w", p.ProductID, err)
		}
	}
	return nil
}

func collectProducts(rows *sql.Rows) ([]catalog.Product, error) {
	products := make([]catalog.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}
