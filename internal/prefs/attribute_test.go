// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package prefs

import "testing"

// --- Test: ParseAttribute ---

func TestParseAttribute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantKind AttributeKind
		wantKey  string
	}{
		{name: "canonical brand", raw: "brand", wantKind: KindBrand, wantKey: "brand"},
		{name: "style alias", raw: "style", wantKind: KindStyleTag, wantKey: "style_tag"},
		{name: "colour alias", raw: "colour", wantKind: KindColor, wantKey: "color"},
		{name: "price alias", raw: "price", wantKind: KindPriceRange, wantKey: "price_range"},
		{name: "uppercase with spaces", raw: "  Material ", wantKind: KindMaterial, wantKey: "material"},
		{name: "unknown key becomes extension", raw: "heel_height", wantKind: KindExtension, wantKey: "heel_height"},
		{name: "unknown key is normalized", raw: " Strap Width ", wantKind: KindExtension, wantKey: "strap width"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseAttribute(tt.raw)
			if got.Kind != tt.wantKind {
				t.Errorf("ParseAttribute(%q).Kind = %v, want %v", tt.raw, got.Kind, tt.wantKind)
			}
			if got.Key != tt.wantKey {
				t.Errorf("ParseAttribute(%q).Key = %q, want %q", tt.raw, got.Key, tt.wantKey)
			}
		})
	}
}

// --- Test: kind classification ---

func TestAttributeKindTransferable(t *testing.T) {
	t.Parallel()

	transferable := []AttributeKind{KindMaterial, KindStyleTag, KindPriceRange}
	for _, k := range transferable {
		if !k.Transferable() {
			t.Errorf("%s.Transferable() = false, want true", k)
		}
	}

	pinned := []AttributeKind{KindBrand, KindType, KindColor, KindUseCase, KindSize, KindExtension}
	for _, k := range pinned {
		if k.Transferable() {
			t.Errorf("%s.Transferable() = true, want false", k)
		}
	}
}

func TestAttributeKindBounded(t *testing.T) {
	t.Parallel()

	if !KindPriceRange.Bounded() {
		t.Error("price_range should classify as bounded")
	}
	if !KindSize.Bounded() {
		t.Error("size should classify as bounded")
	}
	if KindStyleTag.Bounded() {
		t.Error("style_tag should not classify as bounded")
	}
}

// --- Test: ParsePriceRange ---

func TestParsePriceRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		value  string
		want   PriceRange
		wantOK bool
	}{
		{name: "ceiling with operator", value: "<=150", want: PriceRange{Max: 150}, wantOK: true},
		{name: "ceiling with word", value: "under 150", want: PriceRange{Max: 150}, wantOK: true},
		{name: "bare number is ceiling", value: "150", want: PriceRange{Max: 150}, wantOK: true},
		{name: "dollar sign stripped", value: "$80", want: PriceRange{Max: 80}, wantOK: true},
		{name: "floor with operator", value: ">=50", want: PriceRange{Min: 50}, wantOK: true},
		{name: "floor with plus", value: "50+", want: PriceRange{Min: 50}, wantOK: true},
		{name: "floor with word", value: "over 200", want: PriceRange{Min: 200}, wantOK: true},
		{name: "band", value: "50-100", want: PriceRange{Min: 50, Max: 100}, wantOK: true},
		{name: "inverted band rejected", value: "100-50", wantOK: false},
		{name: "strict less than", value: "<120", want: PriceRange{Max: 120}, wantOK: true},
		{name: "not a number", value: "cheap", wantOK: false},
		{name: "empty", value: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParsePriceRange(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("ParsePriceRange(%q) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParsePriceRange(%q) = %+v, want %+v", tt.value, got, tt.want)
			}
		})
	}
}

func TestPriceRangeContains(t *testing.T) {
	t.Parallel()

	ceiling := PriceRange{Max: 150}
	if !ceiling.Contains(150) {
		t.Error("ceiling should be inclusive")
	}
	if ceiling.Contains(150.01) {
		t.Error("price above ceiling should be outside")
	}

	band := PriceRange{Min: 50, Max: 100}
	if band.Contains(49.99) || band.Contains(100.01) {
		t.Error("band bounds should exclude out-of-range prices")
	}
	if !band.Contains(75) {
		t.Error("band should contain interior price")
	}
}
