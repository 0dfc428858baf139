// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package api session endpoints: the conversational turn loop.
//
// handlers_sessions.go - Open, signal, inspect, and end shopping
// sessions
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/prefs"
	"github.com/jcalloway/prefero/internal/session"
)

// sessionTimeout bounds one turn end to end: reconcile, rank, present.
const sessionTimeout = 10 * time.Second

// OpenSession handles POST /api/v1/sessions. It opens a conversation
// for a user in a category and returns the fresh session snapshot.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !validateRequest(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sessionTimeout)
	defer cancel()

	snapshot, err := h.sessions.Open(ctx, req.UserID, req.Category)
	if err != nil {
		if strings.Contains(err.Error(), "capacity") {
			NewResponseWriter(w, r).ServiceUnavailable("Session capacity reached, try again shortly")
			return
		}
		WriteBadRequest(w, r, err.Error())
		return
	}

	NewResponseWriter(w, r).Created(snapshot)
}

// ProcessSignal handles POST /api/v1/sessions/{id}/signals. One parsed
// preference signal goes in; the turn outcome comes back: the next
// product card with alternates, or a clarification prompt. Pass
// ?explain=1 for the "why this?" scoring fragments.
func (h *Handler) ProcessSignal(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req SignalRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !validateRequest(w, r, &req) {
		return
	}

	opts := session.TurnOptions{
		Explain: getBoolParam(r, "explain", false),
	}

	ctx, cancel := context.WithTimeout(r.Context(), sessionTimeout)
	defer cancel()
	ctx = logging.ContextWithSessionID(ctx, sessionID)

	turn, err := h.sessions.ProcessTurn(ctx, sessionID, req.Signal(), opts)
	if err != nil {
		h.respondTurnError(w, r, err)
		return
	}

	NewResponseWriter(w, r).Success(turn)
}

// respondTurnError maps turn processing failures to API error codes.
func (h *Handler) respondTurnError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		rw.NotFound("Session not found")
	case errors.Is(err, session.ErrSessionEnded):
		rw.SessionEnded("Session has ended")
	case errors.Is(err, prefs.ErrMalformedSignal):
		rw.BadRequest(err.Error())
	case errors.Is(err, prefs.ErrNoCandidates):
		rw.Error(http.StatusNotFound, ErrCodeNoCandidates,
			"No products match the active constraints")
	case errors.Is(err, prefs.ErrVersionConflict):
		// Retries inside the store already ran out; the client can
		// simply resend the signal.
		rw.Conflict("Profile was updated concurrently, retry the signal")
	default:
		logging.Error().Err(err).Msg("Turn processing failed")
		rw.InternalError("Turn processing failed")
	}
}

// GetSession handles GET /api/v1/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	snapshot, err := h.sessions.Get(sessionID)
	if err != nil {
		WriteNotFound(w, r, "Session not found")
		return
	}

	NewResponseWriter(w, r).Success(snapshot)
}

// EndSession handles DELETE /api/v1/sessions/{id}. Ending an already
// ended session is not an error; the final snapshot comes back either
// way. An optional ?reason= is recorded with the end event.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	reason := r.URL.Query().Get("reason")

	ctx, cancel := context.WithTimeout(r.Context(), sessionTimeout)
	defer cancel()

	snapshot, err := h.sessions.End(ctx, sessionID, reason)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			WriteNotFound(w, r, "Session not found")
			return
		}
		logging.Error().Err(err).Msg("Session end failed")
		WriteInternalError(w, r, "Session end failed")
		return
	}

	NewResponseWriter(w, r).Success(snapshot)
}
