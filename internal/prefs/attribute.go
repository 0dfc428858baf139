// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package prefs

import (
	"strconv"
	"strings"
)

// AttributeKind identifies a known product attribute dimension.
// Unknown keys from the signal interpreter are preserved under KindExtension
// rather than rejected, so the model stays forward compatible with new
// attribute vocabulary.
type AttributeKind string

const (
	// KindBrand is the product brand. Category specific, never transferred.
	KindBrand AttributeKind = "brand"

	// KindColor is a color value ("black", "burgundy").
	KindColor AttributeKind = "color"

	// KindMaterial is a material value ("leather", "synthetic").
	KindMaterial AttributeKind = "material"

	// KindType is the product subtype within a category ("sneaker", "boot").
	// Category specific, never transferred.
	KindType AttributeKind = "type"

	// KindStyleTag is a style descriptor ("flashy", "minimal", "retro").
	KindStyleTag AttributeKind = "style_tag"

	// KindPriceRange is a bounded price constraint ("<=150", "50-100").
	KindPriceRange AttributeKind = "price_range"

	// KindUseCase is an intended use ("running", "office", "hiking").
	KindUseCase AttributeKind = "use_case"

	// KindSize is a scalar size value ("42", "M").
	KindSize AttributeKind = "size"

	// KindExtension marks an attribute key outside the known vocabulary.
	// The raw key is kept on Attribute.Key.
	KindExtension AttributeKind = "extension"
)

// knownKinds maps canonical attribute keys to their kind.
var knownKinds = map[string]AttributeKind{
	"brand":       KindBrand,
	"color":       KindColor,
	"colour":      KindColor,
	"material":    KindMaterial,
	"type":        KindType,
	"style_tag":   KindStyleTag,
	"style":       KindStyleTag,
	"price_range": KindPriceRange,
	"price":       KindPriceRange,
	"use_case":    KindUseCase,
	"size":        KindSize,
}

// String returns the kind name.
func (k AttributeKind) String() string {
	return string(k)
}

// IsValid reports whether the kind is one of the declared constants.
func (k AttributeKind) IsValid() bool {
	switch k {
	case KindBrand, KindColor, KindMaterial, KindType, KindStyleTag,
		KindPriceRange, KindUseCase, KindSize, KindExtension:
		return true
	}
	return false
}

// Transferable reports whether preferences of this kind may be propagated to
// other categories by cross-category transfer. Brand and type are category
// specific and never travel; extension keys are unknown territory and stay
// put as well.
func (k AttributeKind) Transferable() bool {
	switch k {
	case KindMaterial, KindStyleTag, KindPriceRange:
		return true
	}
	return false
}

// Bounded reports whether the kind expresses a numeric or bounded constraint.
// Bounded kinds classify as hard constraints on arrival instead of waiting
// for reinforcement.
func (k AttributeKind) Bounded() bool {
	return k == KindPriceRange || k == KindSize
}

// Attribute is the tagged union of known attribute kinds plus an opaque
// extension bucket. Key always carries the name used as the map key in a
// CategoryProfile: the canonical name for known kinds, the raw signal key for
// extensions.
type Attribute struct {
	// Kind is the recognized attribute dimension, or KindExtension.
	Kind AttributeKind `json:"kind"`

	// Key is the attribute name as stored and rendered.
	Key string `json:"key"`
}

// ParseAttribute resolves a raw attribute key from the signal interpreter
// into an Attribute. Keys are matched case-insensitively against the known
// vocabulary; anything else becomes an extension attribute preserving the
// normalized raw key.
func ParseAttribute(raw string) Attribute {
	key := strings.ToLower(strings.TrimSpace(raw))
	if kind, ok := knownKinds[key]; ok {
		return Attribute{Kind: kind, Key: string(kind)}
	}
	return Attribute{Kind: KindExtension, Key: key}
}

// String returns the attribute key.
func (a Attribute) String() string {
	return a.Key
}

// NormalizeValue canonicalizes an attribute value for storage and matching.
// "PU Leather" and "pu leather" refer to the same value.
func NormalizeValue(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// PriceRange is the parsed form of a price_range attribute value. A zero Min
// with a positive Max is a ceiling, a positive Min with zero Max is a floor.
type PriceRange struct {
	// Min is the inclusive lower bound, 0 when unbounded below.
	Min float64 `json:"min"`

	// Max is the inclusive upper bound, 0 when unbounded above.
	Max float64 `json:"max"`
}

// Contains reports whether price falls inside the range.
func (r PriceRange) Contains(price float64) bool {
	if r.Min > 0 && price < r.Min {
		return false
	}
	if r.Max > 0 && price > r.Max {
		return false
	}
	return true
}

// ParsePriceRange parses the price constraint notations produced by the
// signal interpreter: "<=150", "under 150", "150" (ceiling), "50-100"
// (band), ">=50", "over 50", "50+" (floor). Returns false when the value
// carries no parseable bound.
func ParsePriceRange(value string) (PriceRange, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.TrimPrefix(v, "$")
	v = strings.ReplaceAll(v, "$", "")

	switch {
	case strings.HasPrefix(v, "<="), strings.HasPrefix(v, "under "), strings.HasPrefix(v, "below "):
		n, ok := parsePrice(trimAnyPrefix(v, "<=", "under ", "below "))
		return PriceRange{Max: n}, ok
	case strings.HasPrefix(v, ">="), strings.HasPrefix(v, "over "), strings.HasPrefix(v, "above "):
		n, ok := parsePrice(trimAnyPrefix(v, ">=", "over ", "above "))
		return PriceRange{Min: n}, ok
	case strings.HasPrefix(v, "<"):
		n, ok := parsePrice(strings.TrimPrefix(v, "<"))
		return PriceRange{Max: n}, ok
	case strings.HasPrefix(v, ">"):
		n, ok := parsePrice(strings.TrimPrefix(v, ">"))
		return PriceRange{Min: n}, ok
	case strings.HasSuffix(v, "+"):
		n, ok := parsePrice(strings.TrimSuffix(v, "+"))
		return PriceRange{Min: n}, ok
	case strings.Contains(v, "-"):
		parts := strings.SplitN(v, "-", 2)
		lo, okLo := parsePrice(parts[0])
		hi, okHi := parsePrice(parts[1])
		if okLo && okHi && hi >= lo {
			return PriceRange{Min: lo, Max: hi}, true
		}
		return PriceRange{}, false
	default:
		// A bare number is a ceiling: "keep it around 150" normalizes to "150".
		n, ok := parsePrice(v)
		return PriceRange{Max: n}, ok
	}
}

// trimAnyPrefix removes the first matching prefix from s.
func trimAnyPrefix(s string, prefixes ...string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return strings.TrimPrefix(s, p)
		}
	}
	return s
}

// parsePrice parses a single positive price figure.
func parsePrice(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
