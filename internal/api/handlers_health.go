// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package api health endpoints.
//
// handlers_health.go - Liveness, readiness, component health, and
// in-process latency stats
package api

import (
	"context"
	"net/http"
	"time"
)

const serviceVersion = "1.0.0"

// componentHealth is one component's slice of the health report.
type componentHealth struct {
	Status string                 `json:"status"`
	Detail map[string]interface{} `json:"detail,omitempty"`
}

// healthResponse is the full health report.
type healthResponse struct {
	Status        string                     `json:"status"`
	Version       string                     `json:"version"`
	UptimeSeconds float64                    `json:"uptime_seconds"`
	Components    map[string]componentHealth `json:"components"`
}

// Health handles GET /api/v1/health: a component-by-component report.
// Always 200; readiness gating lives on /health/ready. A disabled
// journal is a configuration choice, not a degradation.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	components := make(map[string]componentHealth, 4)

	if err := h.db.Ping(ctx); err != nil {
		status = "degraded"
		components["database"] = componentHealth{
			Status: "unhealthy",
			Detail: map[string]interface{}{"error": err.Error()},
		}
	} else {
		detail := map[string]interface{}{}
		if products, interactions, err := h.db.RecordCounts(ctx); err == nil {
			detail["products"] = products
			detail["interactions"] = interactions
		}
		components["database"] = componentHealth{Status: "healthy", Detail: detail}
	}

	switch {
	case h.recorder == nil || !h.recorder.Enabled():
		components["journal"] = componentHealth{Status: "disabled"}
	default:
		if stats, err := h.recorder.GetStats(ctx); err != nil {
			status = "degraded"
			components["journal"] = componentHealth{
				Status: "unhealthy",
				Detail: map[string]interface{}{"error": err.Error()},
			}
		} else {
			components["journal"] = componentHealth{
				Status: "healthy",
				Detail: map[string]interface{}{"events": stats.TotalEvents},
			}
		}
	}

	components["sessions"] = componentHealth{
		Status: "healthy",
		Detail: map[string]interface{}{"active": h.sessions.Len()},
	}

	cacheStats := h.cache.GetStats()
	components["cache"] = componentHealth{
		Status: "healthy",
		Detail: map[string]interface{}{
			"keys":     cacheStats.TotalKeys,
			"hit_rate": h.cache.HitRate(),
		},
	}

	NewResponseWriter(w, r).Success(healthResponse{
		Status:        status,
		Version:       serviceVersion,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Components:    components,
	})
}

// HealthLive handles GET /api/v1/health/live: process-is-up only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":         "alive",
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready: 503 until the catalog
// database answers, so the process is not routed traffic it would fail.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		NewResponseWriter(w, r).ServiceUnavailable("Database not ready")
		return
	}

	NewResponseWriter(w, r).Success(map[string]interface{}{"status": "ready"})
}

// HealthPerformance handles GET /api/v1/health/performance: per-endpoint
// latency percentiles from the in-process monitor. ?recent=N appends the
// last N raw request metrics.
func (h *Handler) HealthPerformance(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"endpoints": h.perfMon.GetStats(),
	}
	if n := getIntParam(r, "recent", 0); n > 0 {
		if n > 100 {
			n = 100
		}
		payload["recent"] = h.perfMon.GetRecentMetrics(n)
	}

	NewResponseWriter(w, r).Success(payload)
}
