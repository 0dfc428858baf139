// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/jcalloway/prefero/internal/catalog"
	"github.com/jcalloway/prefero/internal/config"
	"github.com/jcalloway/prefero/internal/database"
	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/rank"
	"github.com/jcalloway/prefero/internal/reconcile"
	"github.com/jcalloway/prefero/internal/session"
	"github.com/jcalloway/prefero/internal/store"
)

var apiTestTime = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

// testEnv bundles a fully wired handler with the collaborators the
// tests poke at directly.
type testEnv struct {
	handler  *Handler
	router   http.Handler
	store    *store.MemoryStore
	journal  *journal.MemoryStore
	recorder *journal.Recorder
	sessions *session.Controller
	db       *database.DB
}

func apiShoe(id, brand string, price float64, attrs map[string][]string) catalog.Product {
	return catalog.Product{
		ProductID:  id,
		Category:   "running shoes",
		Title:      "Shoe " + id,
		Brand:      brand,
		Price:      price,
		Attributes: attrs,
		AddedAt:    apiTestTime.Add(-24 * time.Hour),
	}
}

// apiCatalog is the standard fixture: one shoe per material so a single
// signal separates them.
func apiCatalog() []catalog.Product {
	return []catalog.Product{
		apiShoe("sh-01", "solomon", 149.99, map[string][]string{"material": {"leather"}, "color": {"blue"}}),
		apiShoe("sh-02", "nimbus", 89.99, map[string][]string{"material": {"mesh"}, "color": {"red"}}),
		apiShoe("sh-03", "cheapcraft", 39.99, map[string][]string{"material": {"synthetic"}, "color": {"blue"}}),
		apiShoe("sh-04", "nimbus", 119.99, map[string][]string{"material": {"knit"}, "color": {"green"}}),
	}
}

// newTestEnv wires the full API stack against in-memory collaborators
// and an in-memory DuckDB. Tests sharing an env must not run parallel.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()

	js := journal.NewMemoryStore(1000)
	rec := journal.NewRecorder(js, journal.DefaultConfig())
	t.Cleanup(func() { _ = rec.Close() })

	reconciler, err := reconcile.New(reconcile.DefaultConfig(), rec)
	if err != nil {
		t.Fatalf("reconcile.New: %v", err)
	}

	engine, err := rank.New(rank.Config{Seed: 42, DefaultLimit: 10, MaxLimit: 100})
	if err != nil {
		t.Fatalf("rank.New: %v", err)
	}

	source, err := catalog.NewStaticSource(apiCatalog()...)
	if err != nil {
		t.Fatalf("catalog.NewStaticSource: %v", err)
	}

	sessions, err := session.NewController(session.DefaultConfig(), session.Deps{
		Store:      st,
		Reconciler: reconciler,
		Engine:     engine,
		Source:     source,
		Recorder:   rec,
	})
	if err != nil {
		t.Fatalf("session.NewController: %v", err)
	}

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "500MB"})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	cfg.Store.RetryAttempts = 3

	handler := NewHandler(sessions, st, reconciler, rec, db, cfg, nil)
	router := NewRouter(handler, cfg).SetupChi()

	return &testEnv{
		handler:  handler,
		router:   router,
		store:    st,
		journal:  js,
		recorder: rec,
		sessions: sessions,
		db:       db,
	}
}

// do runs one request through the router and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, *APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(method, path, reader)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)

	if w.Code == http.StatusNoContent || w.Body.Len() == 0 {
		return w, nil
	}

	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal envelope (status %d, body %q): %v", w.Code, w.Body.String(), err)
	}
	return w, &resp
}

// decodeData re-marshals the envelope's Data into a typed destination.
func decodeData(t *testing.T, resp *APIResponse, dst interface{}) {
	t.Helper()

	if resp == nil || resp.Data == nil {
		t.Fatal("response carries no data")
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("remarshal data: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

// openSession opens a session through the API and returns its snapshot.
func (e *testEnv) openSession(t *testing.T, userID, category string) *session.Snapshot {
	t.Helper()

	w, resp := e.do(t, http.MethodPost, "/api/v1/sessions",
		map[string]string{"user_id": userID, "category": category})
	if w.Code != http.StatusCreated {
		t.Fatalf("open session: status %d, body %s", w.Code, w.Body.String())
	}

	var snap session.Snapshot
	decodeData(t, resp, &snap)
	if snap.SessionID == "" {
		t.Fatal("open session returned empty session ID")
	}
	return &snap
}

// seedProducts loads the standard catalog into DuckDB through the API.
func (e *testEnv) seedProducts(t *testing.T) {
	t.Helper()

	w, _ := e.do(t, http.MethodPut, "/api/v1/products",
		map[string]interface{}{"products": apiCatalog()})
	if w.Code != http.StatusOK {
		t.Fatalf("seed products: status %d, body %s", w.Code, w.Body.String())
	}
}
