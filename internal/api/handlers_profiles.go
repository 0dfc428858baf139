// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package api profile endpoints: the transparency drawer.
//
// handlers_profiles.go - Inspect learned preferences, edit them
// directly, and page through the journal explaining how they got there
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/prefs"
	"github.com/jcalloway/prefero/internal/reconcile"
	"github.com/jcalloway/prefero/internal/store"
)

// GetProfile handles GET /api/v1/profiles/{user_id}. A user without
// any recorded preferences gets a fresh empty profile, not a 404: the
// drawer renders "nothing learned yet" from it.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	profile, err := h.store.Get(ctx, userID)
	if err != nil {
		logging.Error().Err(err).Str("user_id", sanitizeLogValue(userID)).Msg("Profile load failed")
		WriteInternalError(w, r, "Profile load failed")
		return
	}

	NewResponseWriter(w, r).Success(profile)
}

// EditPreferences handles PATCH /api/v1/profiles/{user_id}/preferences.
// Drawer edits are direct statements of fact and always win: set and
// avoid override even hard constraints, relax demotes a hard constraint
// to soft, remove zeroes a value while keeping its history.
func (h *Handler) EditPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var req PreferenceEditRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !validateRequest(w, r, &req) {
		return
	}

	// Budget edits only accept the constraint notation the matcher
	// understands; catching it here gives the drawer a field error
	// instead of a preference that can never match.
	action := reconcile.EditAction(req.Action)
	if (action == reconcile.EditSet || action == reconcile.EditAvoid) &&
		prefs.ParseAttribute(req.Attribute).Kind == prefs.KindPriceRange {
		bounded := struct {
			Value string `validate:"required,price_range"`
		}{Value: req.Value}
		if !validateRequest(w, r, &bounded) {
			return
		}
	}

	edit := reconcile.Edit{
		Category:  req.Category,
		Attribute: req.Attribute,
		Action:    action,
		Value:     req.Value,
		Strength:  req.Strength,
	}

	ctx, cancel := context.WithTimeout(r.Context(), sessionTimeout)
	defer cancel()
	ctx = logging.ContextWithUserID(ctx, userID)

	var result *reconcile.Result
	_, err := store.Update(ctx, h.store, userID, h.config.Store.RetryAttempts,
		func(profile *prefs.UserProfile) error {
			res, editErr := h.reconciler.ApplyEdit(ctx, profile, edit)
			if editErr != nil {
				return editErr
			}
			result = res
			return nil
		})
	if err != nil {
		h.respondEditError(w, r, err)
		return
	}

	metrics.RecordSignal(string(result.Outcome))

	NewResponseWriter(w, r).Success(result)
}

// respondEditError maps drawer edit failures to API error codes.
func (h *Handler) respondEditError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	switch {
	case errors.Is(err, reconcile.ErrNoSuchEntry):
		rw.NotFound(err.Error())
	case errors.Is(err, prefs.ErrVersionConflict):
		rw.Conflict("Profile was updated concurrently, retry the edit")
	default:
		rw.BadRequest(err.Error())
	}
}

// GetJournal handles GET /api/v1/profiles/{user_id}/journal: the
// paginated provenance trail behind every drawer entry. Filters match
// the journal query surface; defaults return the newest 50 events.
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil || !h.recorder.Enabled() {
		NewResponseWriter(w, r).ServiceUnavailable("Preference journal is disabled")
		return
	}

	userID := chi.URLParam(r, "user_id")
	q := r.URL.Query()

	req := JournalQueryRequest{
		Types:      parseCommaSeparated(q.Get("types")),
		SessionID:  q.Get("session_id"),
		Category:   q.Get("category"),
		Attribute:  q.Get("attribute"),
		StartTime:  q.Get("start_time"),
		EndTime:    q.Get("end_time"),
		SearchText: q.Get("search_text"),
		OrderBy:    q.Get("order_by"),
		OrderDesc:  getBoolParam(r, "order_desc", true),
		Limit:      getIntParam(r, "limit", 50),
		Offset:     getIntParam(r, "offset", 0),
	}
	if !validateRequest(w, r, &req) {
		return
	}

	startTime, err := parseTimeParam(req.StartTime)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}
	endTime, err := parseTimeParam(req.EndTime)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	types := make([]journal.EventType, 0, len(req.Types))
	for _, t := range req.Types {
		types = append(types, journal.EventType(t))
	}

	filter := journal.QueryFilter{
		Types:      types,
		UserID:     userID,
		SessionID:  req.SessionID,
		Category:   req.Category,
		Attribute:  req.Attribute,
		StartTime:  startTime,
		EndTime:    endTime,
		SearchText: req.SearchText,
		OrderBy:    req.OrderBy,
		OrderDesc:  req.OrderDesc,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}

	ctx, cancel := context.WithTimeout(r.Context(), sessionTimeout)
	defer cancel()

	events, err := h.recorder.Query(ctx, filter)
	if err != nil {
		NewResponseWriter(w, r).DatabaseError(err)
		return
	}

	total, err := h.recorder.Count(ctx, filter)
	if err != nil {
		NewResponseWriter(w, r).DatabaseError(err)
		return
	}

	NewResponseWriter(w, r).SuccessWithPagination(events,
		paginationMeta(total, len(events), req.Offset, req.Limit))
}
