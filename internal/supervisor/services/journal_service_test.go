// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockEventPruner is a test double for the EventPruner interface.
type mockEventPruner struct {
	mu      sync.Mutex
	calls   int
	removed int64
	err     error
}

func (m *mockEventPruner) Prune(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	return m.removed, nil
}

func (m *mockEventPruner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestJournalPruner_Interface(t *testing.T) {
	// Verify JournalPruner implements suture.Service
	var _ suture.Service = (*JournalPruner)(nil)
}

func TestNewJournalPruner(t *testing.T) {
	pruner := NewJournalPruner(&mockEventPruner{}, 0)

	if pruner.interval != 12*time.Hour {
		t.Errorf("expected default interval 12h, got %v", pruner.interval)
	}
	if pruner.String() != "journal-pruner" {
		t.Errorf("expected 'journal-pruner', got %q", pruner.String())
	}

	pruner = NewJournalPruner(&mockEventPruner{}, time.Hour)
	if pruner.interval != time.Hour {
		t.Errorf("expected interval 1h, got %v", pruner.interval)
	}
}

func TestJournalPruner_Serve(t *testing.T) {
	t.Run("prunes once at startup", func(t *testing.T) {
		mock := &mockEventPruner{removed: 7}
		pruner := NewJournalPruner(mock, time.Hour)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_ = pruner.Serve(ctx)

		if mock.Calls() != 1 {
			t.Errorf("expected exactly the startup prune, got %d calls", mock.Calls())
		}
	})

	t.Run("prunes on schedule", func(t *testing.T) {
		mock := &mockEventPruner{}
		pruner := NewJournalPruner(mock, 40*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()

		_ = pruner.Serve(ctx)

		// Startup pass plus at least one tick.
		if mock.Calls() < 2 {
			t.Errorf("expected at least 2 prune passes, got %d", mock.Calls())
		}
	})

	t.Run("prune errors do not stop the service", func(t *testing.T) {
		mock := &mockEventPruner{err: errors.New("table locked")}
		pruner := NewJournalPruner(mock, 40*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()

		err := pruner.Serve(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}

		// Failing passes keep the ticker running.
		if mock.Calls() < 2 {
			t.Errorf("expected retries after failure, got %d calls", mock.Calls())
		}
	})

	t.Run("graceful shutdown", func(t *testing.T) {
		mock := &mockEventPruner{}
		pruner := NewJournalPruner(mock, time.Hour)

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- pruner.Serve(ctx)
		}()

		time.Sleep(30 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Serve did not return after cancellation")
		}
	})
}
