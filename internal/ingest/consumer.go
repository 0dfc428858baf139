// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

//go:build nats

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jcalloway/prefero/internal/cache"
	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/prefs"
	"github.com/jcalloway/prefero/internal/session"
)

// MessageSource is where the consumer gets its messages. Satisfied by
// Subscriber; tests substitute channels.
type MessageSource interface {
	// Subscribe subscribes to a topic and returns a channel of messages.
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	// Close closes the message source.
	Close() error
}

// ConsumerConfig holds consumer settings.
type ConsumerConfig struct {
	// Topic to subscribe to.
	Topic string

	// EnableDeduplication skips envelopes whose ID was already processed.
	// This is the redelivery guard; publish-side duplicates are already
	// dropped by the stream's duplicate window.
	EnableDeduplication bool

	// DeduplicationWindow is how long processed envelope IDs are
	// remembered.
	DeduplicationWindow time.Duration

	// MaxDeduplicationEntries bounds the dedup cache.
	MaxDeduplicationEntries int
}

// DefaultConsumerConfig returns consumer defaults.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Topic:                   "signals.turn",
		EnableDeduplication:     true,
		DeduplicationWindow:     2 * time.Minute,
		MaxDeduplicationEntries: 10000,
	}
}

// ConsumerStats holds runtime counters for monitoring.
type ConsumerStats struct {
	MessagesReceived  int64     // Envelopes delivered
	MessagesProcessed int64     // Turns applied
	ParseErrors       int64     // Undecodable or invalid envelopes
	ProcessingErrors  int64     // Turns nacked for redelivery
	DuplicatesSkipped int64     // Redeliveries dropped by the dedup cache
	LastMessageTime   time.Time // Time of last delivery
}

// ConsumerDeps are the collaborators a Consumer drives. Source and
// Processor are required; Recorder and Breaker may be nil.
type ConsumerDeps struct {
	Source    MessageSource
	Processor TurnProcessor
	Recorder  *journal.Recorder
	Breaker   *gobreaker.CircuitBreaker[interface{}]
}

// Consumer drains signal envelopes from the stream and drives the session
// controller with them. Envelopes that cannot ever succeed are acked and
// journaled; transient failures are nacked for bounded redelivery.
type Consumer struct {
	source    MessageSource
	processor TurnProcessor
	recorder  *journal.Recorder
	breaker   *gobreaker.CircuitBreaker[interface{}]
	config    ConsumerConfig

	// Remembers processed envelope IDs across redeliveries.
	dedupCache *cache.BloomLRU

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	messagesReceived  atomic.Int64
	messagesProcessed atomic.Int64
	parseErrors       atomic.Int64
	processingErrors  atomic.Int64
	duplicatesSkipped atomic.Int64
	lastMessageTime   atomic.Value // stores time.Time
}

// NewConsumer creates a consumer.
func NewConsumer(deps ConsumerDeps, cfg ConsumerConfig) (*Consumer, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("message source required")
	}
	if deps.Processor == nil {
		return nil, fmt.Errorf("turn processor required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic required")
	}

	c := &Consumer{
		source:    deps.Source,
		processor: deps.Processor,
		recorder:  deps.Recorder,
		breaker:   deps.Breaker,
		config:    cfg,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	if cfg.EnableDeduplication {
		c.dedupCache = cache.NewBloomLRU(
			cfg.MaxDeduplicationEntries,
			cfg.DeduplicationWindow,
			0.01, // 1% false positive rate
		)
	}
	c.lastMessageTime.Store(time.Time{})

	return c, nil
}

// Start begins consuming. Returns immediately; consumption runs in a
// goroutine until Stop or ctx cancellation.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return nil // Already running
	}

	messages, err := c.source.Subscribe(ctx, c.config.Topic)
	if err != nil {
		c.running.Store(false)
		return fmt.Errorf("subscribe to %s: %w", c.config.Topic, err)
	}

	go c.consumeLoop(ctx, messages)

	if c.config.EnableDeduplication {
		go c.dedupCleanupLoop(ctx)
	}

	logging.Info().
		Str("topic", c.config.Topic).
		Bool("dedup", c.config.EnableDeduplication).
		Msg("Signal consumer started")
	return nil
}

// Stop drains in-flight messages and stops the consumer.
func (c *Consumer) Stop() {
	if !c.running.Swap(false) {
		return // Already stopped
	}

	close(c.stopCh)
	<-c.doneCh

	logging.Info().Msg("Signal consumer stopped")
}

// IsRunning reports whether the consumer is active.
func (c *Consumer) IsRunning() bool {
	return c.running.Load()
}

// Stats returns current runtime counters.
func (c *Consumer) Stats() ConsumerStats {
	var lastTime time.Time
	if t, ok := c.lastMessageTime.Load().(time.Time); ok {
		lastTime = t
	}
	return ConsumerStats{
		MessagesReceived:  c.messagesReceived.Load(),
		MessagesProcessed: c.messagesProcessed.Load(),
		ParseErrors:       c.parseErrors.Load(),
		ProcessingErrors:  c.processingErrors.Load(),
		DuplicatesSkipped: c.duplicatesSkipped.Load(),
		LastMessageTime:   lastTime,
	}
}

// consumeLoop processes deliveries until shutdown, draining what is
// already buffered on the way out so received envelopes are not dropped
// unacked.
func (c *Consumer) consumeLoop(ctx context.Context, messages <-chan *message.Message) {
	defer func() {
		c.running.Store(false)
		close(c.doneCh)
	}()

	for {
		select {
		case <-ctx.Done():
			c.drainMessages(messages)
			return
		case <-c.stopCh:
			c.drainMessages(messages)
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			c.processMessage(ctx, msg)
		}
	}
}

// drainMessages processes buffered messages during shutdown, bounded so a
// still-filling channel cannot hold the stop.
func (c *Consumer) drainMessages(messages <-chan *message.Message) {
	drainTimeout := time.After(100 * time.Millisecond)
	drained := 0

	for {
		select {
		case <-drainTimeout:
			if drained > 0 {
				logging.Info().Int("count", drained).Msg("Signal consumer drained messages during shutdown")
			}
			return
		case msg, ok := <-messages:
			if !ok {
				if drained > 0 {
					logging.Info().Int("count", drained).Msg("Signal consumer drained messages during shutdown")
				}
				return
			}
			// The loop context is already canceled.
			c.processMessage(context.Background(), msg)
			drained++
		default:
			if drained > 0 {
				logging.Info().Int("count", drained).Msg("Signal consumer drained messages during shutdown")
			}
			return
		}
	}
}

// processMessage handles one delivery. The ack/nack split is on whether
// redelivery could ever help: malformed payloads and terminal sessions
// are acked away, everything transient is nacked back to the stream.
func (c *Consumer) processMessage(ctx context.Context, msg *message.Message) {
	start := time.Now()
	c.messagesReceived.Add(1)
	c.lastMessageTime.Store(start)
	metrics.RecordNATSConsume()

	env, err := DecodeEnvelope(msg.Payload)
	if err == nil {
		err = env.Validate()
	}
	if err != nil {
		c.parseErrors.Add(1)
		metrics.RecordNATSParseFailed()
		c.journalMalformed(ctx, env, err)
		logging.Warn().
			Str("message_uuid", msg.UUID).
			Err(err).
			Msg("Unusable signal envelope acked away")
		msg.Ack()
		return
	}

	// Contains, not record: a nacked envelope must not look like a
	// duplicate when it comes back.
	if c.dedupCache != nil && c.dedupCache.Contains(env.EnvelopeID) {
		c.duplicatesSkipped.Add(1)
		metrics.RecordNATSDeduplicated()
		msg.Ack()
		return
	}

	if err := c.processTurn(ctx, env); err != nil {
		switch {
		case errors.Is(err, prefs.ErrMalformedSignal):
			c.parseErrors.Add(1)
			c.journalMalformed(ctx, env, err)
			logging.Warn().
				Str("session_id", env.SessionID).
				Err(err).
				Msg("Malformed signal acked away")
			msg.Ack()
		case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionEnded):
			// The session is gone; redelivery cannot revive it.
			logging.Warn().
				Str("session_id", env.SessionID).
				Err(err).
				Msg("Signal for terminal session acked away")
			msg.Ack()
		case IsBreakerRejection(err):
			logging.Warn().
				Str("session_id", env.SessionID).
				Msg("Turn processing shed by open circuit breaker, envelope nacked")
			msg.Nack()
		default:
			c.processingErrors.Add(1)
			logging.Error().
				Str("session_id", env.SessionID).
				Err(err).
				Msg("Turn processing failed, envelope nacked")
			msg.Nack()
		}
		return
	}

	if c.dedupCache != nil {
		c.dedupCache.Record(env.EnvelopeID)
	}

	c.messagesProcessed.Add(1)
	metrics.RecordNATSProcessed()
	metrics.RecordNATSProcessingDuration(time.Since(start))
	msg.Ack()
}

// processTurn drives the controller, through the breaker when one is
// configured.
func (c *Consumer) processTurn(ctx context.Context, env *SignalEnvelope) error {
	run := func() (interface{}, error) {
		return c.processor.ProcessTurn(ctx, env.SessionID, &env.Signal, session.TurnOptions{
			Explain: env.Explain,
		})
	}
	if c.breaker == nil {
		_, err := run()
		return err
	}
	_, err := ExecuteWithBreaker(c.breaker, run)
	return err
}

// journalMalformed records a rejected envelope so the trail answers what
// happened to it. env may be nil when the payload never decoded.
func (c *Consumer) journalMalformed(ctx context.Context, env *SignalEnvelope, cause error) {
	if c.recorder == nil {
		return
	}
	var userID, sessionID, utterance string
	if env != nil {
		userID = env.Signal.UserID
		sessionID = env.SessionID
		utterance = env.Signal.SourceUtterance
	}
	c.recorder.RecordMalformedSignal(ctx, userID, sessionID, utterance, cause.Error())
}

// dedupCleanupLoop expires old dedup entries; LRU eviction handles
// capacity in between.
func (c *Consumer) dedupCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.DeduplicationWindow / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.dedupCache.CleanupExpired()
		}
	}
}
