// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package api interaction endpoints.
//
// handlers_interactions.go - Good/bad product judgments and their
// aggregates
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/jcalloway/prefero/internal/database"
	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/prefs"
	"github.com/jcalloway/prefero/internal/session"
)

// interactionResponse pairs the stored judgment with the session
// snapshot when the judgment fed a live conversation.
type interactionResponse struct {
	Interaction *prefs.Interaction `json:"interaction"`
	Session     *session.Snapshot  `json:"session,omitempty"`
}

// UpsertInteraction handles PUT /api/v1/interactions. The judgment is
// durable regardless of session state: it lands in the database first,
// then optionally feeds the live session named by session_id. Selected
// requires a good judgment on the same product and ends the session as
// a completed purchase.
func (h *Handler) UpsertInteraction(w http.ResponseWriter, r *http.Request) {
	var req InteractionRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !validateRequest(w, r, &req) {
		return
	}

	interaction := req.Interaction()

	ctx, cancel := context.WithTimeout(r.Context(), sessionTimeout)
	defer cancel()
	ctx = logging.ContextWithUserID(ctx, req.UserID)

	if err := h.db.UpsertInteraction(ctx, interaction); err != nil {
		logging.Error().Err(err).
			Str("product_id", sanitizeLogValue(req.ProductID)).
			Msg("Interaction upsert failed")
		NewResponseWriter(w, r).DatabaseError(err)
		return
	}

	resp := interactionResponse{Interaction: interaction}

	if req.SessionID != "" {
		snapshot, err := h.sessions.NoteInteraction(ctx, req.SessionID, interaction, req.Selected)
		if err != nil {
			// The judgment is already persisted; only the session
			// routing failed.
			h.respondInteractionError(w, r, err)
			return
		}
		resp.Session = snapshot
	}

	NewResponseWriter(w, r).Success(resp)
}

// respondInteractionError maps session-routing failures for a judgment.
func (h *Handler) respondInteractionError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		rw.NotFound("Session not found")
	case errors.Is(err, session.ErrSessionEnded):
		rw.SessionEnded("Session has ended")
	case errors.Is(err, prefs.ErrVersionConflict):
		rw.Conflict("Profile was updated concurrently, retry the interaction")
	default:
		rw.BadRequest(err.Error())
	}
}

// ListInteractions handles GET /api/v1/interactions with judged product
// detail joined in, newest first.
func (h *Handler) ListInteractions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := ListInteractionsRequest{
		UserID:    q.Get("user_id"),
		ProductID: q.Get("product_id"),
		Sentiment: q.Get("sentiment"),
		Limit:     getIntParam(r, "limit", 50),
		Offset:    getIntParam(r, "offset", 0),
	}
	if !validateRequest(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), catalogTimeout)
	defer cancel()

	details, err := h.db.ListInteractions(ctx, database.InteractionFilter{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Sentiment: prefs.Sentiment(req.Sentiment),
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
	if err != nil {
		NewResponseWriter(w, r).DatabaseError(err)
		return
	}

	NewResponseWriter(w, r).Success(details)
}

// InteractionStats handles GET /api/v1/interactions/stats: per-attribute
// sentiment tallies for one user and category, the raw material behind
// "you tend to reject suede".
func (h *Handler) InteractionStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := InteractionStatsRequest{
		UserID:   q.Get("user_id"),
		Category: q.Get("category"),
	}
	if !validateRequest(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), catalogTimeout)
	defer cancel()

	stats, err := h.db.SentimentByAttribute(ctx, req.UserID, req.Category)
	if err != nil {
		NewResponseWriter(w, r).DatabaseError(err)
		return
	}

	NewResponseWriter(w, r).Success(stats)
}
