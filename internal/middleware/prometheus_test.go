// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jcalloway/prefero/internal/metrics"
)

func TestPrometheusMetrics(t *testing.T) {
	t.Parallel()

	t.Run("records metrics for successful request", func(t *testing.T) {
		t.Parallel()
		handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		req := httptest.NewRequest("GET", "/api/v1/health", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rec.Code)
		}
	})

	t.Run("records metrics for error response", func(t *testing.T) {
		t.Parallel()
		handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		})

		req := httptest.NewRequest("POST", "/api/v1/sessions", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", rec.Code)
		}
	})

	t.Run("records metrics for various HTTP methods", func(t *testing.T) {
		t.Parallel()
		methods := []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

		for _, method := range methods {
			t.Run(method, func(t *testing.T) {
				handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})

				req := httptest.NewRequest(method, "/api/v1/interactions", nil)
				rec := httptest.NewRecorder()

				handler(rec, req)

				if rec.Code != http.StatusOK {
					t.Errorf("Expected status 200 for %s, got %d", method, rec.Code)
				}
			})
		}
	})

	t.Run("defaults to 200 when WriteHeader not called", func(t *testing.T) {
		t.Parallel()
		handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("Hello"))
		})

		req := httptest.NewRequest("GET", "/api/v1/health", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected default status 200, got %d", rec.Code)
		}
	})

	t.Run("counts requests under the route pattern", func(t *testing.T) {
		// Not parallel: reads a shared labeled counter.
		labeled := metrics.APIRequestsTotal.WithLabelValues("POST", "/api/v1/sessions/{id}/signals", "200")
		before := testutil.ToFloat64(labeled)

		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return PrometheusMetrics(next.ServeHTTP)
		})
		r.Post("/api/v1/sessions/{id}/signals", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		// Two different session IDs must land under one label
		for _, id := range []string{"aaaa-1111", "bbbb-2222"} {
			req := httptest.NewRequest("POST", "/api/v1/sessions/"+id+"/signals", nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", rec.Code)
			}
		}

		after := testutil.ToFloat64(labeled)
		if after-before != 2 {
			t.Errorf("Expected 2 requests under the pattern label, got %.0f", after-before)
		}
	})

	t.Run("tracks active requests", func(t *testing.T) {
		t.Parallel()
		started := make(chan struct{})
		done := make(chan struct{})
		finished := make(chan struct{})

		handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
			close(started)
			<-done
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest("GET", "/api/v1/health", nil)
		rec := httptest.NewRecorder()

		go func() {
			handler(rec, req)
			close(finished)
		}()

		<-started
		close(done)
		<-finished
	})
}

func TestEndpointLabel(t *testing.T) {
	t.Parallel()

	t.Run("falls back to raw path outside chi", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("GET", "/standalone/path", nil)
		if got := EndpointLabel(req); got != "/standalone/path" {
			t.Errorf("EndpointLabel = %q, want /standalone/path", got)
		}
	})

	t.Run("uses route pattern inside chi", func(t *testing.T) {
		t.Parallel()
		var got string
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req)
				got = EndpointLabel(req)
			})
		})
		r.Get("/api/v1/profiles/{user_id}", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest("GET", "/api/v1/profiles/user-1", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if got != "/api/v1/profiles/{user_id}" {
			t.Errorf("EndpointLabel = %q, want /api/v1/profiles/{user_id}", got)
		}
	})
}

func TestMetricsResponseWriter(t *testing.T) {
	t.Parallel()

	t.Run("captures status code", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		wrapper := &metricsResponseWriter{
			ResponseWriter: rec,
			statusCode:     http.StatusOK,
		}

		wrapper.WriteHeader(http.StatusNotFound)

		if wrapper.statusCode != http.StatusNotFound {
			t.Errorf("Expected status code 404, got %d", wrapper.statusCode)
		}
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected underlying recorder status 404, got %d", rec.Code)
		}
	})

	t.Run("preserves ResponseWriter functionality", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		wrapper := &metricsResponseWriter{
			ResponseWriter: rec,
		}

		wrapper.Header().Set("Content-Type", "application/json")
		if wrapper.Header().Get("Content-Type") != "application/json" {
			t.Error("Header should be preserved")
		}

		n, err := wrapper.Write([]byte("test body"))
		if err != nil {
			t.Errorf("Write error: %v", err)
		}
		if n != 9 {
			t.Errorf("Expected 9 bytes written, got %d", n)
		}

		if rec.Body.String() != "test body" {
			t.Errorf("Body not written: %s", rec.Body.String())
		}
	})

	t.Run("default status code is 200", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		wrapper := &metricsResponseWriter{
			ResponseWriter: rec,
			statusCode:     http.StatusOK,
		}

		wrapper.Write([]byte("test"))

		if wrapper.statusCode != http.StatusOK {
			t.Errorf("Expected default status 200, got %d", wrapper.statusCode)
		}
	})
}

func BenchmarkPrometheusMetrics(b *testing.B) {
	handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		handler(rec, req)
	}
}
