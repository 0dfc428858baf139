// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package api

import (
	"net/http"
	"testing"

	"github.com/jcalloway/prefero/internal/database"
	"github.com/jcalloway/prefero/internal/session"
)

func TestUpsertInteractionStandalone(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodPut, "/api/v1/interactions",
		map[string]interface{}{
			"user_id":    "user-1",
			"product_id": "sh-01",
			"sentiment":  "good",
			"note":       "love the colour",
		})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var ir interactionResponse
	decodeData(t, resp, &ir)

	if ir.Interaction == nil {
		t.Fatal("response carries no interaction")
	}
	if ir.Interaction.UserID != "user-1" || ir.Interaction.ProductID != "sh-01" {
		t.Errorf("echo = %s/%s", ir.Interaction.UserID, ir.Interaction.ProductID)
	}
	if ir.Interaction.CreatedAt.IsZero() {
		t.Error("CreatedAt not set by storage")
	}
	if ir.Session != nil {
		t.Error("session attached without a session_id")
	}
}

func TestUpsertInteractionPurchaseEndsSession(t *testing.T) {
	env := newTestEnv(t)
	snap := env.openSession(t, "user-1", "running shoes")

	w, resp := env.do(t, http.MethodPut, "/api/v1/interactions",
		map[string]interface{}{
			"user_id":    "user-1",
			"product_id": "sh-01",
			"sentiment":  "good",
			"session_id": snap.SessionID,
			"selected":   true,
		})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var ir interactionResponse
	decodeData(t, resp, &ir)
	if ir.Session == nil {
		t.Fatal("expected a session snapshot")
	}
	if ir.Session.State != session.StateEnded {
		t.Errorf("session state = %s, want %s", ir.Session.State, session.StateEnded)
	}

	// The session stays ended for later callers.
	w, _ = env.do(t, http.MethodPost, "/api/v1/sessions/"+snap.SessionID+"/signals",
		map[string]interface{}{
			"user_id": "user-1", "category": "running shoes",
			"polarity": "positive", "attribute": "color", "value": "blue", "confidence": 0.8,
		})
	if w.Code != http.StatusConflict {
		t.Errorf("signal after purchase: status = %d, want 409", w.Code)
	}
}

func TestUpsertInteractionSelectionWithoutGood(t *testing.T) {
	env := newTestEnv(t)
	env.seedProducts(t)
	snap := env.openSession(t, "user-1", "running shoes")

	w, resp := env.do(t, http.MethodPut, "/api/v1/interactions",
		map[string]interface{}{
			"user_id":    "user-1",
			"product_id": "sh-02",
			"sentiment":  "bad",
			"session_id": snap.SessionID,
			"selected":   true,
		})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", w.Code, w.Body.String())
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeBadRequest {
		t.Fatalf("error = %+v, want %s", resp.Error, ErrCodeBadRequest)
	}

	// The judgment itself is already durable; only the session routing failed.
	w, resp = env.do(t, http.MethodGet, "/api/v1/interactions?user_id=user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var details []database.InteractionDetail
	decodeData(t, resp, &details)
	if len(details) != 1 || details[0].Product.ProductID != "sh-02" {
		t.Errorf("stored interactions = %+v, want one for sh-02", details)
	}
}

func TestUpsertInteractionUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodPut, "/api/v1/interactions",
		map[string]interface{}{
			"user_id":    "user-1",
			"product_id": "sh-01",
			"sentiment":  "good",
			"session_id": "ghost",
		})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v, want %s", resp.Error, ErrCodeNotFound)
	}
}

func TestUpsertInteractionEndedSession(t *testing.T) {
	env := newTestEnv(t)
	snap := env.openSession(t, "user-1", "running shoes")

	if w, _ := env.do(t, http.MethodDelete, "/api/v1/sessions/"+snap.SessionID, nil); w.Code != http.StatusOK {
		t.Fatalf("end session: status %d", w.Code)
	}

	w, resp := env.do(t, http.MethodPut, "/api/v1/interactions",
		map[string]interface{}{
			"user_id":    "user-1",
			"product_id": "sh-01",
			"sentiment":  "good",
			"session_id": snap.SessionID,
		})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeSessionEnded {
		t.Errorf("error = %+v, want %s", resp.Error, ErrCodeSessionEnded)
	}
}

func TestUpsertInteractionValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"invalid sentiment", map[string]interface{}{
			"user_id": "user-1", "product_id": "sh-01", "sentiment": "meh",
		}},
		{"missing product", map[string]interface{}{
			"user_id": "user-1", "sentiment": "good",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, resp := env.do(t, http.MethodPut, "/api/v1/interactions", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if resp.Error == nil || resp.Error.Code != ErrCodeValidationFailed {
				t.Errorf("error = %+v, want %s", resp.Error, ErrCodeValidationFailed)
			}
		})
	}
}

func putInteraction(t *testing.T, env *testEnv, userID, productID, sentiment string) {
	t.Helper()

	w, _ := env.do(t, http.MethodPut, "/api/v1/interactions", map[string]interface{}{
		"user_id": userID, "product_id": productID, "sentiment": sentiment,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("put interaction %s/%s: status %d, body %s", userID, productID, w.Code, w.Body.String())
	}
}

func TestListInteractionsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedProducts(t)

	putInteraction(t, env, "user-1", "sh-01", "good")
	putInteraction(t, env, "user-1", "sh-02", "bad")
	putInteraction(t, env, "user-2", "sh-03", "good")

	w, resp := env.do(t, http.MethodGet, "/api/v1/interactions?user_id=user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var details []database.InteractionDetail
	decodeData(t, resp, &details)
	if len(details) != 2 {
		t.Fatalf("got %d interactions, want 2", len(details))
	}
	seen := map[string]string{}
	for _, d := range details {
		seen[d.Product.ProductID] = string(d.Sentiment)
		if d.Product.Title == "" {
			t.Errorf("product detail missing for %s", d.Product.ProductID)
		}
	}
	if seen["sh-01"] != "good" || seen["sh-02"] != "bad" {
		t.Errorf("interactions = %v", seen)
	}

	w, resp = env.do(t, http.MethodGet, "/api/v1/interactions?user_id=user-1&sentiment=bad", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("filtered status = %d", w.Code)
	}
	decodeData(t, resp, &details)
	if len(details) != 1 || details[0].Product.ProductID != "sh-02" {
		t.Errorf("bad-only = %+v, want just sh-02", details)
	}
}

func TestInteractionStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedProducts(t)

	putInteraction(t, env, "user-1", "sh-01", "good")
	putInteraction(t, env, "user-1", "sh-02", "bad")

	w, resp := env.do(t, http.MethodGet,
		"/api/v1/interactions/stats?user_id=user-1&category=running+shoes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var stats []database.SentimentStat
	decodeData(t, resp, &stats)

	find := func(attribute, value string) *database.SentimentStat {
		for i := range stats {
			if stats[i].Attribute == attribute && stats[i].Value == value {
				return &stats[i]
			}
		}
		return nil
	}

	if s := find("material", "leather"); s == nil || s.Good != 1 || s.Bad != 0 {
		t.Errorf("material/leather = %+v, want good 1", s)
	}
	if s := find("material", "mesh"); s == nil || s.Bad != 1 {
		t.Errorf("material/mesh = %+v, want bad 1", s)
	}

	// user_id is mandatory for the aggregation.
	w, resp = env.do(t, http.MethodGet, "/api/v1/interactions/stats?category=running+shoes", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error = %+v, want %s", resp.Error, ErrCodeValidationFailed)
	}
}
