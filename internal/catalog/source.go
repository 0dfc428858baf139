// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Source supplies ranking candidates. The database layer implements it for
// production; StaticSource covers tests and seeded demos.
type Source interface {
	// Products returns every product in the category, order unspecified.
	Products(ctx context.Context, category string) ([]Product, error)

	// Product returns one product by ID, or false when absent.
	Product(ctx context.Context, productID string) (Product, bool, error)
}

// StaticSource is an in-memory Source. Safe for concurrent use.
type StaticSource struct {
	mu       sync.RWMutex
	products map[string]Product
}

// NewStaticSource creates a source holding the given products. Products are
// normalized and validated on the way in; invalid ones are rejected.
func NewStaticSource(products ...Product) (*StaticSource, error) {
	s := &StaticSource{products: make(map[string]Product, len(products))}
	for i := range products {
		if err := s.Upsert(products[i]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Upsert adds or replaces a product.
func (s *StaticSource) Upsert(p Product) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ProductID] = p
	return nil
}

// Remove deletes a product. Absent IDs are ignored.
func (s *StaticSource) Remove(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, productID)
}

// Products returns the category's products sorted by product ID.
func (s *StaticSource) Products(ctx context.Context, category string) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Product
	for _, p := range s.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// Product returns one product by ID.
func (s *StaticSource) Product(ctx context.Context, productID string) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	return p, ok, nil
}

// Len reports how many products the source holds.
func (s *StaticSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}
