// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordDBQuery tests database query metric recording
func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		duration  time.Duration
		err       error
	}{
		{
			name:      "successful SELECT query",
			operation: "SELECT",
			table:     "products",
			duration:  10 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "successful INSERT query",
			operation: "INSERT",
			table:     "interactions",
			duration:  5 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "failed query with short error",
			operation: "UPDATE",
			table:     "products",
			duration:  100 * time.Millisecond,
			err:       errors.New("connection refused"),
		},
		{
			name:      "failed query with long error - should truncate to 50 chars",
			operation: "DELETE",
			table:     "preference_events",
			duration:  50 * time.Millisecond,
			err:       errors.New("this is a very long error message that exceeds fifty characters and should be truncated"),
		},
		{
			name:      "fast query under 1ms",
			operation: "SELECT",
			table:     "product_attributes",
			duration:  500 * time.Microsecond,
			err:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Recording must not panic regardless of inputs.
			RecordDBQuery(tt.operation, tt.table, tt.duration, tt.err)
		})
	}
}

// TestRecordDBQuery_ErrorTruncation verifies error messages are truncated at 50 chars
func TestRecordDBQuery_ErrorTruncation(t *testing.T) {
	RecordDBQuery("SELECT", "truncation", time.Millisecond, errors.New(strings.Repeat("a", 50)))
	RecordDBQuery("SELECT", "truncation", time.Millisecond, errors.New(strings.Repeat("b", 51)))
	RecordDBQuery("SELECT", "truncation", time.Millisecond, errors.New(strings.Repeat("c", 100)))
	RecordDBQuery("SELECT", "truncation", time.Millisecond, errors.New("err"))
}

// TestRecordAPIRequest tests API request metric recording
func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		endpoint   string
		statusCode string
		duration   time.Duration
	}{
		{
			name:       "successful session open",
			method:     "POST",
			endpoint:   "/api/v1/sessions",
			statusCode: "201",
			duration:   25 * time.Millisecond,
		},
		{
			name:       "successful signal turn",
			method:     "POST",
			endpoint:   "/api/v1/sessions/{id}/signals",
			statusCode: "200",
			duration:   15 * time.Millisecond,
		},
		{
			name:       "profile not found",
			method:     "GET",
			endpoint:   "/api/v1/profiles/{user_id}",
			statusCode: "404",
			duration:   2 * time.Millisecond,
		},
		{
			name:       "malformed signal",
			method:     "POST",
			endpoint:   "/api/v1/sessions/{id}/signals",
			statusCode: "400",
			duration:   1 * time.Millisecond,
		},
		{
			name:       "rate limited search",
			method:     "GET",
			endpoint:   "/api/v1/products/search",
			statusCode: "429",
			duration:   1 * time.Millisecond,
		},
		{
			name:       "internal error",
			method:     "PUT",
			endpoint:   "/api/v1/products",
			statusCode: "500",
			duration:   500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordAPIRequest(tt.method, tt.endpoint, tt.statusCode, tt.duration)
		})
	}
}

// TestSignalCounters verifies the reconciliation counters move as expected
func TestSignalCounters(t *testing.T) {
	before := testutil.ToFloat64(SignalsApplied.WithLabelValues("created"))
	RecordSignal("created")
	RecordSignal("created")
	after := testutil.ToFloat64(SignalsApplied.WithLabelValues("created"))
	if after-before != 2 {
		t.Errorf("signals_applied{created} moved by %f, want 2", after-before)
	}

	beforeMalformed := testutil.ToFloat64(SignalsMalformed)
	RecordMalformedSignal()
	if got := testutil.ToFloat64(SignalsMalformed) - beforeMalformed; got != 1 {
		t.Errorf("signals_malformed moved by %f, want 1", got)
	}

	beforeHard := testutil.ToFloat64(HardPromotions)
	beforeLong := testutil.ToFloat64(LongTermPromotions)
	RecordPromotions(true, false)
	RecordPromotions(false, true)
	RecordPromotions(false, false)
	if got := testutil.ToFloat64(HardPromotions) - beforeHard; got != 1 {
		t.Errorf("hard promotions moved by %f, want 1", got)
	}
	if got := testutil.ToFloat64(LongTermPromotions) - beforeLong; got != 1 {
		t.Errorf("long-term promotions moved by %f, want 1", got)
	}
}

// TestSessionMetrics exercises the session lifecycle helpers
func TestSessionMetrics(t *testing.T) {
	beforeOpened := testutil.ToFloat64(SessionsOpened)
	RecordSessionOpened()
	if got := testutil.ToFloat64(SessionsOpened) - beforeOpened; got != 1 {
		t.Errorf("sessions_opened moved by %f, want 1", got)
	}

	beforeEnded := testutil.ToFloat64(SessionsEnded.WithLabelValues("purchase"))
	RecordSessionEnded("purchase")
	if got := testutil.ToFloat64(SessionsEnded.WithLabelValues("purchase")) - beforeEnded; got != 1 {
		t.Errorf("sessions_ended{purchase} moved by %f, want 1", got)
	}

	SetActiveSessions(7)
	if got := testutil.ToFloat64(SessionsActive); got != 7 {
		t.Errorf("sessions_active = %f, want 7", got)
	}
	SetActiveSessions(0)

	RecordTurn(12 * time.Millisecond)
	RecordClarification("indistinguishable")
	RecordClarification("conflicting_constraint")
	RecordRelaxation()
	RecordRank(800*time.Microsecond, 50)
}

// TestJournalAndStoreMetrics exercises journal and store helpers
func TestJournalAndStoreMetrics(t *testing.T) {
	RecordJournalEvent("preference.created")
	RecordJournalEvent("session.state_changed")

	beforeDropped := testutil.ToFloat64(JournalEventsDropped)
	RecordJournalDrop()
	if got := testutil.ToFloat64(JournalEventsDropped) - beforeDropped; got != 1 {
		t.Errorf("journal drops moved by %f, want 1", got)
	}

	beforePruned := testutil.ToFloat64(JournalEventsPruned)
	RecordJournalPrune(42)
	if got := testutil.ToFloat64(JournalEventsPruned) - beforePruned; got != 42 {
		t.Errorf("journal pruned moved by %f, want 42", got)
	}

	beforeConflicts := testutil.ToFloat64(StoreVersionConflicts)
	RecordVersionConflict()
	if got := testutil.ToFloat64(StoreVersionConflicts) - beforeConflicts; got != 1 {
		t.Errorf("version conflicts moved by %f, want 1", got)
	}

	RecordSnapshot(120*time.Millisecond, nil)
	RecordSnapshot(80*time.Millisecond, errors.New("disk full"))
	RecordDecaySweep(2*time.Second, 15)
}

// TestTrackActiveRequest verifies the in-flight gauge pairs up
func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests) - before; got != 2 {
		t.Errorf("active requests moved by %f, want 2", got)
	}
	TrackActiveRequest(false)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests) - before; got != 0 {
		t.Errorf("active requests net %f, want 0", got)
	}
}

// TestConcurrentMetricRecording tests thread safety of metric recording
func TestConcurrentMetricRecording(t *testing.T) {
	var wg sync.WaitGroup
	numGoroutines := 50
	operationsPerGoroutine := 50

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				RecordDBQuery("SELECT", "products", time.Duration(j)*time.Millisecond, nil)
			}
		}()
	}

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				RecordAPIRequest("GET", "/api/v1/products/search", "200", time.Duration(j)*time.Millisecond)
			}
		}()
	}

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				TrackActiveRequest(true)
				TrackActiveRequest(false)
				RecordSignal("reinforced")
				RecordTurn(time.Millisecond)
			}
		}()
	}

	wg.Wait()
}

// TestMetricGathering tests that metrics can be gathered using testutil
func TestMetricGathering(t *testing.T) {
	RecordDBQuery("TEST", "test_table", time.Millisecond, nil)
	RecordAPIRequest("GET", "/test", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}
