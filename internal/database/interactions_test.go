// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package database

import (
	"context"
	"testing"
	"time"

	"github.com/jcalloway/prefero/internal/catalog"
	"github.com/jcalloway/prefero/internal/prefs"
)

func recordSentiment(t *testing.T, db *DB, userID, productID string, s prefs.Sentiment, note string) prefs.Interaction {
	t.Helper()
	in := prefs.Interaction{UserID: userID, ProductID: productID, Sentiment: s, Note: note}
	if err := db.UpsertInteraction(context.Background(), &in); err != nil {
		t.Fatalf("UpsertInteraction %s/%s: %v", userID, productID, err)
	}
	// Interaction order is created_at; keep consecutive fixtures distinct.
	time.Sleep(2 * time.Millisecond)
	return in
}

func TestUpsertInteractionIdempotent(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()

	first := recordSentiment(t, db, "user-1", "sh-001", prefs.SentimentGood, "love the grip")
	if first.CreatedAt.IsZero() || first.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set on insert")
	}

	second := recordSentiment(t, db, "user-1", "sh-001", prefs.SentimentBad, "returned them")
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt = %v, want original %v", second.CreatedAt, first.CreatedAt)
	}
	if !second.UpdatedAt.After(second.CreatedAt) {
		t.Errorf("UpdatedAt = %v not after CreatedAt %v", second.UpdatedAt, second.CreatedAt)
	}

	_, interactions, err := db.RecordCounts(ctx)
	if err != nil {
		t.Fatalf("RecordCounts: %v", err)
	}
	if interactions != 1 {
		t.Errorf("interactions = %d, want 1 row after overwrite", interactions)
	}

	rows, err := db.ListInteractions(ctx, InteractionFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("ListInteractions = %d rows, want 1", len(rows))
	}
	if rows[0].Sentiment != prefs.SentimentBad {
		t.Errorf("Sentiment = %q, want overwritten %q", rows[0].Sentiment, prefs.SentimentBad)
	}
	if rows[0].Note != "returned them" {
		t.Errorf("Note = %q", rows[0].Note)
	}
}

func TestUpsertInteractionRejectsInvalid(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   prefs.Interaction
	}{
		{"missing user", prefs.Interaction{ProductID: "p-1", Sentiment: prefs.SentimentGood}},
		{"missing product", prefs.Interaction{UserID: "u-1", Sentiment: prefs.SentimentGood}},
		{"bad sentiment", prefs.Interaction{UserID: "u-1", ProductID: "p-1", Sentiment: "meh"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			if err := db.UpsertInteraction(ctx, &in); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestListInteractions(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()

	recordSentiment(t, db, "user-1", "sh-001", prefs.SentimentGood, "")
	recordSentiment(t, db, "user-1", "sh-002", prefs.SentimentBad, "too narrow")
	recordSentiment(t, db, "user-2", "sh-001", prefs.SentimentGood, "")

	byUser, err := db.ListInteractions(ctx, InteractionFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(byUser) != 2 {
		t.Fatalf("user-1 rows = %d, want 2", len(byUser))
	}
	if byUser[0].ProductID != "sh-002" || byUser[1].ProductID != "sh-001" {
		t.Errorf("order = [%s %s], want newest first", byUser[0].ProductID, byUser[1].ProductID)
	}
	if byUser[0].Product.Title != "Road Glide" {
		t.Errorf("joined Title = %q", byUser[0].Product.Title)
	}
	if byUser[0].Product.Brand != "nimbus" {
		t.Errorf("joined Brand = %q", byUser[0].Product.Brand)
	}
	if byUser[0].Product.Price != 89.99 {
		t.Errorf("joined Price = %v", byUser[0].Product.Price)
	}

	bad, err := db.ListInteractions(ctx, InteractionFilter{UserID: "user-1", Sentiment: prefs.SentimentBad})
	if err != nil {
		t.Fatalf("ListInteractions sentiment filter: %v", err)
	}
	if len(bad) != 1 || bad[0].ProductID != "sh-002" {
		t.Errorf("bad rows = %+v, want single sh-002", bad)
	}

	byProduct, err := db.ListInteractions(ctx, InteractionFilter{ProductID: "sh-001"})
	if err != nil {
		t.Fatalf("ListInteractions product filter: %v", err)
	}
	if len(byProduct) != 2 {
		t.Errorf("sh-001 rows = %d, want 2", len(byProduct))
	}
	if byProduct[0].UserID != "user-2" {
		t.Errorf("newest interaction user = %q, want user-2", byProduct[0].UserID)
	}

	pair, err := db.ListInteractions(ctx, InteractionFilter{UserID: "user-1", ProductID: "sh-001"})
	if err != nil {
		t.Fatalf("ListInteractions pair filter: %v", err)
	}
	if len(pair) != 1 {
		t.Errorf("pair rows = %d, want 1", len(pair))
	}

	limited, err := db.ListInteractions(ctx, InteractionFilter{UserID: "user-1", Limit: 1})
	if err != nil {
		t.Fatalf("ListInteractions limit: %v", err)
	}
	if len(limited) != 1 || limited[0].ProductID != "sh-002" {
		t.Errorf("limited rows = %+v, want newest only", limited)
	}

	if _, err := db.ListInteractions(ctx, InteractionFilter{Sentiment: "meh"}); err == nil {
		t.Error("invalid sentiment filter accepted")
	}
}

func findStat(stats []SentimentStat, attribute, value string) (SentimentStat, bool) {
	for _, s := range stats {
		if s.Attribute == attribute && s.Value == value {
			return s, true
		}
	}
	return SentimentStat{}, false
}

func TestSentimentByAttribute(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	fixture := []catalog.Product{
		{ProductID: "sh-a", Category: "running shoes", Title: "A", Brand: "Solomon",
			Price: 120, Attributes: map[string][]string{"material": {"leather"}}, AddedAt: listedDay(0)},
		{ProductID: "sh-b", Category: "running shoes", Title: "B", Brand: "CheapCraft",
			Price: 40, Attributes: map[string][]string{"material": {"mesh"}}, AddedAt: listedDay(1)},
		{ProductID: "ts-a", Category: "tshirt", Title: "C", Brand: "Solomon",
			Price: 60, Attributes: map[string][]string{"material": {"leather"}}, AddedAt: listedDay(2)},
	}
	for i := range fixture {
		if err := db.UpsertProduct(ctx, &fixture[i]); err != nil {
			t.Fatalf("UpsertProduct: %v", err)
		}
	}

	recordSentiment(t, db, "user-1", "sh-a", prefs.SentimentGood, "")
	recordSentiment(t, db, "user-1", "sh-b", prefs.SentimentBad, "")
	recordSentiment(t, db, "user-1", "ts-a", prefs.SentimentGood, "")
	recordSentiment(t, db, "user-2", "sh-b", prefs.SentimentGood, "")

	all, err := db.SentimentByAttribute(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("SentimentByAttribute: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("stat rows = %d, want 4: %+v", len(all), all)
	}
	checks := []struct {
		attribute, value string
		good, bad        int64
	}{
		{"material", "leather", 2, 0},
		{"material", "mesh", 0, 1},
		{"brand", "solomon", 2, 0},
		{"brand", "cheapcraft", 0, 1},
	}
	for _, c := range checks {
		stat, ok := findStat(all, c.attribute, c.value)
		if !ok {
			t.Errorf("no stat for %s=%s", c.attribute, c.value)
			continue
		}
		if stat.Good != c.good || stat.Bad != c.bad {
			t.Errorf("%s=%s: good=%d bad=%d, want good=%d bad=%d",
				c.attribute, c.value, stat.Good, stat.Bad, c.good, c.bad)
		}
	}

	// Category filter drops the tshirt interaction.
	scoped, err := db.SentimentByAttribute(ctx, "user-1", "Running Shoes")
	if err != nil {
		t.Fatalf("SentimentByAttribute scoped: %v", err)
	}
	if len(scoped) != 4 {
		t.Fatalf("scoped stat rows = %d, want 4: %+v", len(scoped), scoped)
	}
	leather, ok := findStat(scoped, "material", "leather")
	if !ok || leather.Good != 1 {
		t.Errorf("scoped leather = %+v, want good=1", leather)
	}
	solomon, ok := findStat(scoped, "brand", "solomon")
	if !ok || solomon.Good != 1 {
		t.Errorf("scoped solomon = %+v, want good=1", solomon)
	}

	if _, err := db.SentimentByAttribute(ctx, "", ""); err == nil {
		t.Error("missing user accepted")
	}
}
