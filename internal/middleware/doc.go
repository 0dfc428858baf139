// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression, performance
monitoring, request ID tracking, and Prometheus metrics integration. The api
package composes these with the chi ecosystem middleware (CORS, rate limiting,
security headers) into the full request processing stack.

Key Components:

  - Compression: Gzip compression for responses
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking wired into the logging context
  - Prometheus Metrics: HTTP request/response instrumentation labeled by
    chi route pattern (bounded cardinality)

Middleware Stack:

The handlers here use the http.HandlerFunc signature; the router adapts them
to chi's func(http.Handler) http.Handler form. The typical stack, outermost
first:

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)       // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)    // Recover from panics
	r.Use(corsHandler)                // CORS (must be global for OPTIONS preflight)
	r.Use(adapt(middleware.RequestID))
	r.Route("/api/v1", func(r chi.Router) {
	    r.Use(rateLimiter)
	    r.Use(adapt(middleware.PrometheusMetrics))
	    r.Use(adapt(middleware.Compression))
	    // ... routes
	})

Usage Example - Performance Monitoring:

	perfMon := middleware.NewPerformanceMonitor(1000)
	r.Use(perfMon.Middleware)

	// Later, for the ops endpoint:
	stats := perfMon.GetStats() // per-endpoint p50/p95/p99

Usage Example - Request ID:

	handler := middleware.RequestID(func(w http.ResponseWriter, r *http.Request) {
	    id := middleware.GetRequestID(r.Context())
	    // id is also in the logging context and the X-Request-ID response header
	})

Metric Cardinality:

PrometheusMetrics labels requests by the chi route pattern, not the raw URL
path, so /api/v1/sessions/2f1c.../signals records under
/api/v1/sessions/{id}/signals. Requests served outside the router fall back
to the raw path.
*/
package middleware
