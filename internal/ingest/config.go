// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package ingest

import (
	"fmt"
	"time"
)

// ServiceConfig is the operator-facing surface of the ingest pipeline,
// mapped from the nats section of the application config. The detailed
// component configs below are derived from it.
type ServiceConfig struct {
	// URL of the NATS server. Ignored when EmbeddedServer is true; the
	// embedded server's client URL is used instead.
	URL string

	// EmbeddedServer runs an in-process JetStream server.
	EmbeddedServer bool

	// StoreDir is the embedded server's JetStream directory.
	StoreDir string

	// StreamName is the JetStream stream holding signal envelopes.
	StreamName string

	// Subject is the topic envelopes are published to and consumed from.
	Subject string

	// DurableName names the durable consumer, so a restarted engine
	// resumes where it stopped instead of replaying the stream.
	DurableName string

	// QueueGroup spreads delivery across engine instances.
	QueueGroup string

	// SubscribersCount is the parallel consumer count. Turns for one
	// session serialize on the session lock regardless, but with more
	// than one subscriber two queued turns for the same session may
	// apply in either order.
	SubscribersCount int

	// MaxDeliver bounds redelivery of nacked envelopes.
	MaxDeliver int

	// AckWait is how long JetStream waits for an ack before redelivering.
	AckWait time.Duration
}

// DefaultServiceConfig returns production ingest defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		URL:              "nats://127.0.0.1:4222",
		EmbeddedServer:   false,
		StoreDir:         "/data/nats",
		StreamName:       "SIGNALS",
		Subject:          "signals.turn",
		DurableName:      "prefero-engine",
		QueueGroup:       "engines",
		SubscribersCount: 2,
		MaxDeliver:       5,
		AckWait:          30 * time.Second,
	}
}

// Validate checks the fields every build needs, tagged or not.
func (c *ServiceConfig) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream name required")
	}
	if c.Subject == "" {
		return fmt.Errorf("subject required")
	}
	if c.SubscribersCount < 1 {
		return fmt.Errorf("subscribers count must be positive, got %d", c.SubscribersCount)
	}
	if c.MaxDeliver < 1 {
		return fmt.Errorf("max deliver must be positive, got %d", c.MaxDeliver)
	}
	return nil
}

// ServerConfig holds embedded NATS server settings.
type ServerConfig struct {
	// Host to bind to.
	Host string

	// Port to listen on.
	Port int

	// StoreDir is the JetStream storage directory.
	StoreDir string

	// JetStreamMaxMem limits JetStream memory usage (bytes).
	JetStreamMaxMem int64

	// JetStreamMaxStore limits JetStream disk usage (bytes).
	JetStreamMaxStore int64
}

// DefaultServerConfig returns embedded server defaults. Signal envelopes
// are small JSON documents, so the limits sit well below what a general
// message workload would need.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats",
		JetStreamMaxMem:   256 << 20, // 256MB
		JetStreamMaxStore: 2 << 30,   // 2GB
	}
}

// PublisherConfig holds Watermill publisher settings.
type PublisherConfig struct {
	// URL of the NATS server.
	URL string

	// Subject envelopes are published to.
	Subject string

	// MaxReconnects before giving up (-1 = unlimited).
	MaxReconnects int

	// ReconnectWait between reconnection attempts.
	ReconnectWait time.Duration

	// ReconnectBuffer sizes the outgoing buffer during reconnection (bytes).
	ReconnectBuffer int

	// EnableTrackMsgID stamps the envelope ID as the JetStream message ID,
	// so the stream's duplicate window drops republished envelopes.
	EnableTrackMsgID bool
}

// DefaultPublisherConfig returns publisher defaults for the given URL.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		Subject:          "signals.turn",
		MaxReconnects:    -1, // Reconnect forever
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig holds Watermill subscriber settings.
type SubscriberConfig struct {
	// URL of the NATS server.
	URL string

	// StreamName binds the consumer to an existing stream. Required when
	// subscribing to wildcard subjects, which cannot name a stream.
	StreamName string

	// DurableName for resumable consumption.
	DurableName string

	// QueueGroup for load balancing across instances.
	QueueGroup string

	// SubscribersCount is the parallel consumer count.
	SubscribersCount int

	// AckWaitTimeout before JetStream redelivers an unacked envelope.
	AckWaitTimeout time.Duration

	// MaxDeliver bounds redelivery attempts.
	MaxDeliver int

	// MaxAckPending bounds unacked envelopes in flight. Each envelope is
	// a full reconcile-and-rank turn, so this stays far below what a
	// row-append workload would carry.
	MaxAckPending int

	// CloseTimeout bounds graceful shutdown.
	CloseTimeout time.Duration

	// MaxReconnects before giving up (-1 = unlimited).
	MaxReconnects int

	// ReconnectWait between reconnection attempts.
	ReconnectWait time.Duration
}

// DefaultSubscriberConfig returns subscriber defaults for the given URL.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		StreamName:       "SIGNALS",
		DurableName:      "prefero-engine",
		QueueGroup:       "engines",
		SubscribersCount: 2,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    256,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// StreamConfig holds JetStream stream settings.
type StreamConfig struct {
	// Name of the stream.
	Name string

	// Subjects captured by the stream.
	Subjects []string

	// MaxAge before envelopes are dropped.
	MaxAge time.Duration

	// MaxBytes bounds stream size.
	MaxBytes int64

	// MaxMsgs bounds message count (-1 = unlimited).
	MaxMsgs int64

	// DuplicateWindow for publish-side message-ID deduplication.
	DuplicateWindow time.Duration

	// Replicas for clustered deployments.
	Replicas int
}

// DefaultStreamConfig returns stream defaults. A week of retention covers
// replaying a bad deploy; signals older than that have already decayed out
// of relevance on the profile side.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            "SIGNALS",
		Subjects:        []string{"signals.>"},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        1 << 30, // 1GB
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and metrics.
	Name string

	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval resets the failure counts while closed.
	Interval time.Duration

	// Timeout before an open breaker moves to half-open.
	Timeout time.Duration

	// FailureThreshold is the consecutive failures that trip the breaker.
	FailureThreshold uint32
}

// DefaultCircuitBreakerConfig returns breaker defaults for the given name.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// serverConfig derives the embedded server settings.
func (c *ServiceConfig) serverConfig() ServerConfig {
	cfg := DefaultServerConfig()
	if c.StoreDir != "" {
		cfg.StoreDir = c.StoreDir
	}
	return cfg
}

// subscriberConfig derives the subscriber settings for the resolved URL.
func (c *ServiceConfig) subscriberConfig(url string) SubscriberConfig {
	cfg := DefaultSubscriberConfig(url)
	cfg.StreamName = c.StreamName
	cfg.DurableName = c.DurableName
	cfg.QueueGroup = c.QueueGroup
	cfg.SubscribersCount = c.SubscribersCount
	cfg.MaxDeliver = c.MaxDeliver
	if c.AckWait > 0 {
		cfg.AckWaitTimeout = c.AckWait
	}
	return cfg
}

// streamConfig derives the stream settings.
func (c *ServiceConfig) streamConfig() StreamConfig {
	cfg := DefaultStreamConfig()
	cfg.Name = c.StreamName
	return cfg
}
