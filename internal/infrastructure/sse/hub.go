// Package sse fans session status changes out to server-sent-event subscribers.
package sse

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dmstore/dmstore/internal/domain/session"
)

const clientBuffer = 64

// Message is one event written to subscribers.
type Message struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client is one subscriber. An empty Purposes list receives every session.
type Client struct {
	ClientID    string
	Purposes    []session.Purpose
	ConnectedAt time.Time
	Messages    chan *Message
}

func NewClient(clientID string, purposes []session.Purpose) *Client {
	return &Client{
		ClientID:    clientID,
		Purposes:    purposes,
		ConnectedAt: time.Now().UTC(),
		Messages:    make(chan *Message, clientBuffer),
	}
}

func (c *Client) wants(p session.Purpose) bool {
	if len(c.Purposes) == 0 {
		return true
	}
	for _, want := range c.Purposes {
		if want == p {
			return true
		}
	}
	return false
}

// Hub manages SSE clients.
type Hub struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger.With().Str("component", "sse").Logger(),
		clients: make(map[string]*Client),
	}
}

// Register adds a client, replacing any previous client with the same id.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[client.ClientID]; ok {
		close(old.Messages)
	}
	h.clients[client.ClientID] = client
}

// Unregister removes a client and closes its channel. Only the registered instance is removed.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[client.ClientID]; ok && c == client {
		close(c.Messages)
		delete(h.clients, client.ClientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionChanged implements session.Observer.
func (h *Hub) SessionChanged(s session.Session) {
	data, err := json.Marshal(s)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode session event")
		return
	}
	msg := &Message{
		ID:        uuid.New().String(),
		Event:     "session." + string(s.Status),
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.wants(s.Key.Purpose) && !trySend(c, msg) {
			h.logger.Warn().Str("client_id", c.ClientID).Msg("sse client lagging, event dropped")
		}
	}
}

// Stop closes every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.Messages)
		delete(h.clients, id)
	}
}

func trySend(c *Client, msg *Message) bool {
	select {
	case c.Messages <- msg:
		return true
	default:
		return false
	}
}

var _ session.Observer = (*Hub)(nil)
