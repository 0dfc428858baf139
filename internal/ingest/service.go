// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

//go:build nats

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/logging"
)

// shutdownTimeout bounds embedded server teardown after Serve unwinds.
const shutdownTimeout = 10 * time.Second

// Service runs the whole ingest pipeline as one supervised unit: the
// optional embedded server, stream initialization, and the consumer. It
// implements suture.Service; a crash anywhere tears the pipeline down and
// the supervisor restarts it from the durable cursor.
type Service struct {
	cfg       ServiceConfig
	processor TurnProcessor
	recorder  *journal.Recorder
}

// NewService creates the ingest service. recorder may be nil.
func NewService(cfg ServiceConfig, processor TurnProcessor, recorder *journal.Recorder) (*Service, error) {
	if processor == nil {
		return nil, fmt.Errorf("turn processor required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest config: %w", err)
	}
	return &Service{
		cfg:       cfg,
		processor: processor,
		recorder:  recorder,
	}, nil
}

// String names the service in supervisor logs.
func (s *Service) String() string {
	return "signal-ingest"
}

// Serve runs the pipeline until ctx is canceled.
func (s *Service) Serve(ctx context.Context) error {
	url := s.cfg.URL

	if s.cfg.EmbeddedServer {
		embedded, err := NewEmbeddedServer(s.cfg.serverConfig())
		if err != nil {
			return fmt.Errorf("embedded NATS server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("Embedded NATS server shutdown incomplete")
			}
		}()
		url = embedded.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	if err := s.ensureStream(ctx, url); err != nil {
		return err
	}

	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	sub, err := NewSubscriber(s.cfg.subscriberConfig(url), logger)
	if err != nil {
		return fmt.Errorf("NATS subscriber: %w", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			logging.Warn().Err(err).Msg("Subscriber close failed")
		}
	}()

	consumerCfg := DefaultConsumerConfig()
	consumerCfg.Topic = s.cfg.Subject

	consumer, err := NewConsumer(ConsumerDeps{
		Source:    sub,
		Processor: s.processor,
		Recorder:  s.recorder,
		Breaker:   NewCircuitBreaker(DefaultCircuitBreakerConfig("ingest-turns")),
	}, consumerCfg)
	if err != nil {
		return err
	}

	if err := consumer.Start(ctx); err != nil {
		return err
	}

	logging.Info().
		Str("url", url).
		Str("stream", s.cfg.StreamName).
		Str("subject", s.cfg.Subject).
		Str("queue_group", s.cfg.QueueGroup).
		Msg("Signal ingest running")

	<-ctx.Done()
	consumer.Stop()
	return ctx.Err()
}

// ensureStream creates or updates the SIGNALS stream over a short-lived
// connection; the subscriber holds its own afterwards.
func (s *Service) ensureStream(ctx context.Context, url string) error {
	nc, err := natsgo.Connect(url)
	if err != nil {
		return fmt.Errorf("connect for stream init: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	init, err := NewStreamInitializer(js, s.cfg.streamConfig())
	if err != nil {
		return err
	}
	if _, err := init.EnsureStream(ctx); err != nil {
		return err
	}
	return nil
}
