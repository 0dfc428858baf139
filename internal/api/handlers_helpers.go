// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package api helper functions shared by the endpoint handlers.
//
// handlers_helpers.go - Request decoding, validation bridging, and
// query-parameter parsing
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/jcalloway/prefero/internal/validation"
)

// maxRequestBody caps request bodies at 1 MiB. Catalog upserts batch up
// to 500 products and stay well under this.
const maxRequestBody = 1 << 20

// decodeRequest decodes the JSON body into dst. On failure it writes a
// 400 response and returns false; the handler just returns.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, r, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// validateRequest runs struct-tag validation on req. On failure it
// writes a 400 VALIDATION_FAILED response with per-field details and
// returns false.
func validateRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if verr := validation.ValidateStruct(req); verr != nil {
		apiErr := verr.ToAPIError()
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}

// getIntParam parses an integer query parameter, returning defaultValue
// when the parameter is absent or malformed.
func getIntParam(r *http.Request, name string, defaultValue int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getBoolParam parses a boolean query parameter ("1", "true", "yes"),
// returning defaultValue when absent.
func getBoolParam(r *http.Request, name string, defaultValue bool) bool {
	value := strings.ToLower(r.URL.Query().Get(name))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getFloatParam parses a float query parameter into a pointer, nil when
// absent or malformed. Used for optional price bounds.
func getFloatParam(r *http.Request, name string) *float64 {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// parseCommaSeparated splits a comma-separated query parameter into a
// trimmed slice, nil when the parameter is absent or empty.
func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// parseTimeParam parses an RFC3339 query parameter into a pointer, nil
// when absent. A malformed value is reported to the caller so clients
// learn about it instead of silently getting unfiltered results.
func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q, want RFC3339", value)
	}
	return &parsed, nil
}

// sanitizeLogValue replaces control characters in untrusted input
// before it reaches the log, preventing log injection via newlines or
// ANSI escapes.
func sanitizeLogValue(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			b.WriteString(fmt.Sprintf("\\x%02x", r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// paginationMeta builds the pagination block for a list response.
func paginationMeta(total int64, count, offset, limit int) *PaginationMeta {
	return &PaginationMeta{
		Total:   total,
		Count:   count,
		Offset:  offset,
		Limit:   limit,
		HasMore: int64(offset+count) < total,
	}
}
