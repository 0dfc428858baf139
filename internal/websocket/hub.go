// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/session"
)

// ShutdownReason identifies why the hub is shutting down.
// This enables clear observability in logs and metrics.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	// This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Control frame types exchanged with clients. Feed frames carry the session
// event type string ("session.opened", "session.turn", ...) instead.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is one JSON frame on the wire.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of connected feed clients and fans session events out
// to them. It implements session.Notifier, so the session controller pushes
// turn activity straight into connected browsers.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run starts the hub without shutdown support. It blocks forever; supervised
// deployments use RunWithContext instead.
func (h *Hub) Run() {
	_ = h.RunWithContext(context.Background())
}

// RunWithContext starts the hub event loop with context support for graceful
// shutdown. This method is designed for use under suture supervision: when the
// context is canceled all connected clients are closed and ctx.Err() is
// returned, so a supervisor restart never leaves orphaned connections.
//
// DETERMINISM: Go's select picks randomly among ready channels, so the loop
// uses priority-based selection instead:
//   - Priority 1: context cancellation (shutdown)
//   - Priority 2: client lifecycle events (Register/Unregister)
//   - Priority 3: broadcast messages
//
// Client state always settles before a broadcast is fanned out, which keeps
// delivery order predictable under connection churn.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown check (non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		// Priority 3: broadcasts, or block until anything arrives
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	metrics.WSConnections.Dec()
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client disconnected")
}

// logGracefulShutdown closes all connected clients and logs structured
// shutdown information.
//
// Note: ctx.Err() is NOT logged as an error because context cancellation is
// expected behavior during graceful shutdown. Logging it as .Err() would
// confuse operators monitoring error logs.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()

	h.closeAllClients()

	reason := getShutdownReason(ctx)

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		// Fallback for any future context error types
		return ShutdownReasonContextCanceled
	}
}

// broadcastToClients sends a message to all connected clients in a
// deterministic order.
// DETERMINISM: clients are sorted by their monotonically assigned IDs so
// delivery order and slow-consumer eviction behave the same from run to run.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	// Track clients to remove (can't modify map during iteration)
	var toRemove []*Client

	for _, client := range clients {
		select {
		case client.send <- message:
			// Message sent successfully
		default:
			// Send buffer full: the client is not draining its feed
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
		metrics.WSErrors.WithLabelValues("slow_consumer").Inc()
		logging.Warn().Uint64("client_id", client.id).Msg("dropping slow websocket client")
	}
}

// closeAllClients gracefully closes all connected clients. Called during
// shutdown to ensure clean termination.
// DETERMINISM: closes clients in ID order for consistent shutdown behavior.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
	}
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// Notify implements session.Notifier. The session controller calls it inline
// on the turn path with session state held, so it must never block: when the
// broadcast channel is full the event is dropped and counted instead.
func (h *Hub) Notify(ev session.Event) {
	message := Message{
		Type: string(ev.Type),
		Data: ev,
	}

	select {
	case h.broadcast <- message:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().
			Str("event_type", string(ev.Type)).
			Str("session_id", ev.SessionID).
			Msg("broadcast channel full, dropping session event")
	}
}

// BroadcastJSON sends an arbitrary JSON message to all connected clients.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	message := Message{
		Type: messageType,
		Data: data,
	}

	select {
	case h.broadcast <- message:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping JSON message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
