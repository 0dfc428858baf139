// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package ingest consumes signal envelopes from NATS JetStream and drives
// the session turn loop with them, so signal interpreters can feed the
// engine asynchronously instead of calling the REST API.
//
// The REST API stays the synchronous path: a caller POSTs a turn and gets
// the ranked product back. The broker path is for deployments where the
// utterance interpreter runs as its own service and fires signals as it
// produces them; the results reach the user over the websocket feed.
//
//	┌──────────────┐   ┌──────────────┐   ┌──────────────┐
//	│ Interpreter  │   │ Interpreter  │   │   Replays /  │
//	│  (voice)     │   │   (chat)     │   │   backfills  │
//	└──────┬───────┘   └──────┬───────┘   └──────┬───────┘
//	       │                  │                  │
//	       └─────────────────┬┴──────────────────┘
//	                         │ signals.turn
//	                         ▼
//	               ┌───────────────────┐
//	               │  NATS JetStream   │  durable SIGNALS stream
//	               └─────────┬─────────┘
//	                         │ durable consumer, queue group
//	                         ▼
//	               ┌───────────────────┐
//	               │     Consumer      │  decode, dedup, breaker
//	               └─────────┬─────────┘
//	                         │ ProcessTurn
//	                         ▼
//	               ┌───────────────────┐
//	               │ Session controller │ → profile store, ranking,
//	               └───────────────────┘    journal, websocket feed
//
// # Delivery Semantics
//
// JetStream gives at-least-once delivery. Three layers keep a signal from
// being applied twice: the publisher stamps each message with the envelope
// ID so the stream's duplicate window drops republished envelopes; the
// consumer keeps a Bloom-fronted LRU of recently processed envelope IDs to
// absorb redeliveries after a lost ack; and redelivery itself is bounded by
// MaxDeliver.
//
// Failure handling splits on whether redelivery can help. Payloads that do
// not decode, envelopes missing required fields, and signals the
// reconciler rejects as malformed are acked and journaled as
// signal.malformed; delivering them again would only fail again. Turns
// against unknown or ended sessions are acked and logged for the same
// reason. Everything else, store or catalog failures included, is nacked
// for redelivery, and a circuit breaker around turn processing sheds load
// while the downstream stays unhealthy.
//
// # Key Components
//
//   - EmbeddedServer: in-process JetStream server for single-binary
//     deployments, so the broker path needs no external infrastructure
//   - Publisher: Watermill publisher with reconnect handling, optional
//     circuit breaker, and message-ID deduplication
//   - Subscriber: durable queue-group JetStream consumer with bounded
//     redelivery
//   - StreamInitializer: idempotent creation of the SIGNALS stream
//   - Consumer: the decode/dedup/dispatch loop feeding the controller
//   - Service: ties the above into one supervised unit
//
// # Build Tags
//
// Everything touching NATS is behind the nats build tag; default builds
// get stubs whose constructors return ErrNATSNotEnabled, keeping the
// broker stack out of binaries that do not want it.
//
// # Usage
//
//	svc, err := ingest.NewService(ingest.DefaultServiceConfig(), controller, recorder)
//	if err != nil {
//	    // built without -tags=nats, or bad config
//	}
//	supervisor.Add(svc)
//
// Publishing side, for interpreter bridges and tools:
//
//	pub, err := ingest.NewPublisher(ingest.DefaultPublisherConfig(url), logger)
//	env := ingest.NewSignalEnvelope(sessionID, sig)
//	err = pub.PublishEnvelope(ctx, env)
package ingest
