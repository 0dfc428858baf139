// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

/*
Package websocket provides the live session feed for connected frontends.

This package pushes session activity (session opened, product presented,
clarification asked, session ended) to browsers as JSON frames over a
WebSocket connection. It uses the gorilla/websocket library with a hub-client
architecture for efficient fan-out.

Key Components:

  - Hub: Central broker that manages client connections and fans out events.
    Implements session.Notifier, so the session controller feeds it directly.
  - Client: One WebSocket connection with dedicated read/write goroutines
  - Message: The wire frame {type, data}

Architecture:

The package implements a hub-and-spoke pattern:

	┌──────────┐
	│   Hub    │ ← Fans session events out to all clients
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│          │         │         │
	│ Client1  │ Client2 │ Client3 │ Client4
	│          │         │         │
	└──────────┴─────────┴─────────┘

Each client has two goroutines:
  - readPump: drains inbound frames, answers application pings
  - writePump: writes feed frames, sends protocol pings

Frame Types:

Feed frames carry the session event type as the frame type:

  - session.opened: a shopping session started
  - session.turn: a product was presented (data carries the scored product)
  - session.clarification: the session is asking the shopper a question
  - session.ended: the session finished (data carries the reason)

Control frames:

  - ping: application-level keepalive from the client, answered with pong
  - pong: application-level keepalive response

The feed is one-way. Client frames other than ping are read and discarded;
signals and session commands go through the REST API, not the socket.

Connection Lifecycle:

 1. Client connects via HTTP upgrade at /api/v1/ws
 2. Hub registers the client
 3. Client starts read/write goroutines
 4. Hub fans session events out to all clients
 5. Client disconnects (network error, explicit close, or slow-consumer drop)
 6. Hub unregisters the client and cleans up

Backpressure:

Each client has a buffered send channel. A client that stops draining its
feed has its channel filled and is dropped on the next broadcast rather than
stalling the hub; the drop is counted in the websocket_errors_total metric.
The hub's own broadcast channel is bounded too: when it is full, new events
are dropped and counted, never blocking the session controller's turn path.

Configuration:

WebSocket settings:
  - writeWait: 10 seconds (time allowed to write a frame)
  - pongWait: 60 seconds (time allowed to read a pong)
  - pingPeriod: 54 seconds (protocol ping interval, must be < pongWait)
  - maxMessageSize: 4 KB (inbound frames are keepalives only)

See Also:

  - github.com/gorilla/websocket: Underlying WebSocket library
  - internal/api: WebSocket upgrade endpoint
  - internal/session: Event producer (the controller's Notifier hook)
*/
package websocket
