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

	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamContext is the slice of jetstream.JetStream the initializer
// uses, kept narrow so tests can fake it.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	DeleteStream(ctx context.Context, name string) error
}

// StreamInitializer owns the SIGNALS stream lifecycle. It runs before
// publishers and subscribers so both can assume the stream exists with
// the configured limits, and it is idempotent so every engine instance
// can call it on startup.
type StreamInitializer struct {
	js     JetStreamContext
	config StreamConfig
}

// NewStreamInitializer creates an initializer for the configured stream.
func NewStreamInitializer(js JetStreamContext, cfg StreamConfig) (*StreamInitializer, error) {
	if js == nil {
		return nil, fmt.Errorf("JetStream context required")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("stream name required")
	}

	return &StreamInitializer{
		js:     js,
		config: cfg,
	}, nil
}

// EnsureStream creates the stream, or updates it when it already exists
// so limit changes roll out on restart.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:      s.config.Name,
		Subjects:  s.config.Subjects,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    s.config.MaxAge,
		MaxBytes:  s.config.MaxBytes,
		MaxMsgs:   s.config.MaxMsgs,
		// The duplicate window is where publish-side envelope-ID
		// deduplication happens.
		Duplicates:  s.config.DuplicateWindow,
		Replicas:    s.config.Replicas,
		Storage:     jetstream.FileStorage,
		AllowDirect: true,
		Discard:     jetstream.DiscardOld,
	}

	_, err := s.js.Stream(ctx, s.config.Name)
	if err == nil {
		stream, err := s.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", s.config.Name, err)
		}
		return stream, nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := s.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", s.config.Name, err)
		}
		return stream, nil
	}

	return nil, fmt.Errorf("check stream %s: %w", s.config.Name, err)
}

// GetStreamInfo retrieves current stream state.
func (s *StreamInitializer) GetStreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := s.js.Stream(ctx, s.config.Name)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", s.config.Name, err)
	}
	return stream.Info(ctx)
}

// IsHealthy reports whether the stream exists and answers.
func (s *StreamInitializer) IsHealthy(ctx context.Context) bool {
	_, err := s.js.Stream(ctx, s.config.Name)
	return err == nil
}

// Config returns the stream configuration.
func (s *StreamInitializer) Config() StreamConfig {
	return s.config
}
