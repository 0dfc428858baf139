// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/metrics"
)

// Config holds recorder settings.
type Config struct {
	// Enabled controls whether journaling is active.
	Enabled bool

	// BufferSize is the async write queue length. Events are dropped with
	// a warning when the queue is full.
	BufferSize int

	// Retention is how long events are kept before pruning.
	Retention time.Duration

	// PruneInterval is how often expired events are deleted.
	PruneInterval time.Duration
}

// DefaultConfig returns production recorder defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		BufferSize:    1024,
		Retention:     2160 * time.Hour,
		PruneInterval: 12 * time.Hour,
	}
}

// Recorder accepts journal events and writes them to the store
// asynchronously, so reconciliation never blocks on journal IO.
type Recorder struct {
	config    Config
	store     Store
	eventChan chan *Event
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewRecorder creates a recorder and starts its async writer.
func NewRecorder(store Store, config Config) *Recorder {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}

	r := &Recorder{
		config:    config,
		store:     store,
		eventChan: make(chan *Event, config.BufferSize),
		stopChan:  make(chan struct{}),
	}

	r.wg.Add(1)
	go r.asyncWriter()

	return r
}

// asyncWriter drains the event queue into the store.
func (r *Recorder) asyncWriter() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			// Drain remaining events before exiting.
			for {
				select {
				case event := <-r.eventChan:
					r.writeEvent(event)
				default:
					return
				}
			}
		case event := <-r.eventChan:
			r.writeEvent(event)
		}
	}
}

// writeEvent persists one event with a bounded timeout.
func (r *Recorder) writeEvent(event *Event) {
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to save journal event")
		return
	}
	metrics.RecordJournalEvent(string(event.Type))
}

// Record enqueues an event. Missing IDs and timestamps are filled in; the
// request ID is taken from ctx when unset.
func (r *Recorder) Record(ctx context.Context, event *Event) {
	if !r.config.Enabled || event == nil {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" && ctx != nil {
		event.RequestID = logging.RequestIDFromContext(ctx)
	}

	select {
	case r.eventChan <- event:
	default:
		metrics.RecordJournalDrop()
		logging.Warn().Str("event_id", event.ID).Msg("Journal buffer full, dropping event")
	}
}

// RecordMalformedSignal journals a rejected signal with its reason.
func (r *Recorder) RecordMalformedSignal(ctx context.Context, userID, sessionID, utterance, reason string) {
	r.Record(ctx, &Event{
		Type:        EventSignalMalformed,
		UserID:      userID,
		SessionID:   sessionID,
		Utterance:   utterance,
		Description: "Signal rejected: " + reason,
		Metadata:    MustJSON(map[string]string{"reason": reason}),
	})
}

// RecordSessionState journals a session state transition.
func (r *Recorder) RecordSessionState(ctx context.Context, userID, sessionID, from, to, reason string) {
	r.Record(ctx, &Event{
		Type:        EventSessionStateChanged,
		UserID:      userID,
		SessionID:   sessionID,
		Description: "Session " + from + " -> " + to + ": " + reason,
		Metadata: MustJSON(map[string]string{
			"from":   from,
			"to":     to,
			"reason": reason,
		}),
	})
}

// Query retrieves events matching the filter.
func (r *Recorder) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return r.store.Query(ctx, filter)
}

// Count returns the number of events matching the filter.
func (r *Recorder) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return r.store.Count(ctx, filter)
}

// GetStats summarizes the journal.
func (r *Recorder) GetStats(ctx context.Context) (*Stats, error) {
	return r.store.GetStats(ctx)
}

// Prune deletes events older than the configured retention.
func (r *Recorder) Prune(ctx context.Context) (int64, error) {
	if r.config.Retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-r.config.Retention)
	removed, err := r.store.Delete(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.RecordJournalPrune(removed)
	return removed, nil
}

// Enabled reports whether journaling is active.
func (r *Recorder) Enabled() bool {
	return r.config.Enabled
}

// Close drains pending events and stops the writer.
func (r *Recorder) Close() error {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
	return nil
}
