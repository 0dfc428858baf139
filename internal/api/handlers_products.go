// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package api product endpoints.
//
// handlers_products.go - Catalog ingestion and search
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jcalloway/prefero/internal/cache"
	"github.com/jcalloway/prefero/internal/database"
	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/metrics"
)

const catalogTimeout = 30 * time.Second

// UpsertProducts handles PUT /api/v1/products. Products are normalized
// before storage so preference matching stays a plain string comparison,
// and the whole batch is rejected on the first invalid product so a feed
// failure is visible instead of a silently thinner catalog.
func (h *Handler) UpsertProducts(w http.ResponseWriter, r *http.Request) {
	var req UpsertProductsRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !validateRequest(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), catalogTimeout)
	defer cancel()

	for i := range req.Products {
		product := req.Products[i].Normalize()
		if err := product.Validate(); err != nil {
			NewResponseWriter(w, r).BadRequestWithDetails("Invalid product in batch",
				map[string]interface{}{
					"index":      i,
					"product_id": product.ProductID,
					"error":      err.Error(),
				})
			return
		}
		if err := h.db.UpsertProduct(ctx, product); err != nil {
			logging.Error().Err(err).
				Str("product_id", sanitizeLogValue(product.ProductID)).
				Msg("Product upsert failed")
			NewResponseWriter(w, r).DatabaseError(err)
			return
		}
	}

	// New listings change what every cached search should return.
	h.ClearCache()

	logging.Info().Int("count", len(req.Products)).Msg("Products upserted")

	NewResponseWriter(w, r).Success(map[string]interface{}{
		"upserted": len(req.Products),
	})
}

// SearchProducts handles GET /api/v1/products/search. Results are cached
// by the full parameter set; any catalog write clears the cache.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := SearchProductsRequest{
		Brands:      parseCommaSeparated(q.Get("brands")),
		Category:    q.Get("category"),
		SubCategory: q.Get("sub_category"),
		StyleTags:   parseCommaSeparated(q.Get("style_tags")),
		Colors:      parseCommaSeparated(q.Get("colors")),
		Materials:   parseCommaSeparated(q.Get("materials")),
		UseCases:    parseCommaSeparated(q.Get("use_cases")),
		PriceMin:    getFloatParam(r, "price_min"),
		PriceMax:    getFloatParam(r, "price_max"),
		Size:        q.Get("size"),
		Text:        q.Get("text"),
		Limit:       getIntParam(r, "limit", 20),
		Offset:      getIntParam(r, "offset", 0),
	}
	if !validateRequest(w, r, &req) {
		return
	}

	params := database.SearchParams{
		Brands:      req.Brands,
		Category:    req.Category,
		SubCategory: req.SubCategory,
		StyleTags:   req.StyleTags,
		Colors:      req.Colors,
		Materials:   req.Materials,
		UseCases:    req.UseCases,
		PriceMin:    req.PriceMin,
		PriceMax:    req.PriceMax,
		Size:        req.Size,
		Text:        req.Text,
		Limit:       req.Limit,
		Offset:      req.Offset,
	}

	cacheKey := cache.GenerateKey("products:search", params)
	if cached, ok := h.cache.Get(cacheKey); ok {
		metrics.RecordCacheHit("search")
		NewResponseWriter(w, r).Success(cached)
		return
	}
	metrics.RecordCacheMiss("search")

	ctx, cancel := context.WithTimeout(r.Context(), catalogTimeout)
	defer cancel()

	products, err := h.db.SearchProducts(ctx, params)
	if err != nil {
		NewResponseWriter(w, r).DatabaseError(err)
		return
	}

	h.cache.Set(cacheKey, products)

	NewResponseWriter(w, r).Success(products)
}
