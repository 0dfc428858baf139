// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package catalog models the products the assistant can present and the
// sources that supply ranking candidates. The engine treats the catalog as
// external truth: it never writes product data, it only reads candidates.
package catalog

import (
	"fmt"
	"time"

	"github.com/jcalloway/prefero/internal/prefs"
)

// Product is one presentable item. Attribute values are stored normalized so
// preference matching is a plain string comparison.
type Product struct {
	// ProductID uniquely identifies the product.
	ProductID string `json:"product_id" validate:"required"`

	// Category the product belongs to ("running shoes", "tshirt").
	Category string `json:"category" validate:"required"`

	// Title is the display name.
	Title string `json:"title"`

	// Brand of the product.
	Brand string `json:"brand,omitempty"`

	// Price in the shop currency.
	Price float64 `json:"price" validate:"gte=0"`

	// Attributes maps attribute key to values. A product can carry several
	// values per key (two materials, three style tags).
	Attributes map[string][]string `json:"attributes,omitempty"`

	// ImageURL for the product card.
	ImageURL string `json:"image_url,omitempty"`

	// SourceURL points at the listing the product was crawled from.
	SourceURL string `json:"source_url,omitempty"`

	// Description is the free-text product summary; text search covers it.
	Description string `json:"description,omitempty"`

	// AddedAt is when the product entered the catalog. Newer wins freshness
	// tie-breaks.
	AddedAt time.Time `json:"added_at"`
}

// Normalize canonicalizes the category, brand, and attribute values in place
// and returns the product for chaining.
func (p *Product) Normalize() *Product {
	p.Category = prefs.NormalizeValue(p.Category)
	p.Brand = prefs.NormalizeValue(p.Brand)

	if len(p.Attributes) > 0 {
		attrs := make(map[string][]string, len(p.Attributes))
		for key, values := range p.Attributes {
			attr := prefs.ParseAttribute(key)
			normalized := make([]string, 0, len(values))
			for _, v := range values {
				if nv := prefs.NormalizeValue(v); nv != "" {
					normalized = append(normalized, nv)
				}
			}
			attrs[attr.Key] = append(attrs[attr.Key], normalized...)
		}
		p.Attributes = attrs
	}
	return p
}

// Validate checks the product contract.
func (p *Product) Validate() error {
	if p.ProductID == "" {
		return fmt.Errorf("product missing product_id")
	}
	if p.Category == "" {
		return fmt.Errorf("product %s missing category", p.ProductID)
	}
	if p.Price < 0 {
		return fmt.Errorf("product %s: negative price %f", p.ProductID, p.Price)
	}
	return nil
}

// Values returns the product's normalized values for an attribute key. Brand
// is answered from the Brand field as well as any explicit attribute entry.
func (p *Product) Values(key string) []string {
	attr := prefs.ParseAttribute(key)
	values := p.Attributes[attr.Key]

	if attr.Kind == prefs.KindBrand && p.Brand != "" {
		for _, v := range values {
			if v == p.Brand {
				return values
			}
		}
		values = append(append([]string(nil), values...), p.Brand)
	}
	return values
}

// HasAttribute reports whether the product states any value for the key.
// Price is always stated.
func (p *Product) HasAttribute(key string) bool {
	if prefs.ParseAttribute(key).Kind == prefs.KindPriceRange {
		return true
	}
	return len(p.Values(key)) > 0
}

// HasValue reports whether the product carries the normalized value under the
// key. For price_range keys the value is parsed as a range and checked
// against the product price.
func (p *Product) HasValue(key, value string) bool {
	attr := prefs.ParseAttribute(key)
	if attr.Kind == prefs.KindPriceRange {
		r, ok := prefs.ParsePriceRange(value)
		return ok && r.Contains(p.Price)
	}

	for _, v := range p.Values(key) {
		if v == value {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the product.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	if p.Attributes != nil {
		c.Attributes = make(map[string][]string, len(p.Attributes))
		for k, v := range p.Attributes {
			c.Attributes[k] = append([]string(nil), v...)
		}
	}
	return &c
}
