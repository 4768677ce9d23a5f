// Package live pushes session views to open browser tabs over WebSocket.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/cognify/internal/domain"
	"github.com/ashureev/cognify/internal/flow"
	"github.com/ashureev/cognify/internal/metrics"
)

const (
	sendBuffer   = 8
	writeTimeout = 5 * time.Second
)

// Conn is the part of *websocket.Conn the hub needs.
type Conn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Client is one attached connection with its outgoing queue.
type Client struct {
	conn Conn
	send chan []byte
}

// NewClient wraps conn.
func NewClient(conn Conn) *Client {
	return &Client{conn: conn, send: make(chan []byte, sendBuffer)}
}

// enqueue queues msg without blocking and reports whether it fit.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// WriteLoop drains the queue until ctx is done or a write fails.
func (c *Client) WriteLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

type viewMessage struct {
	Type string    `json:"type"`
	View flow.View `json:"view"`
}

// Hub tracks the clients attached to each session.
type Hub struct {
	mu      sync.RWMutex
	active  map[domain.SessionKey]map[*Client]struct{}
	metrics *metrics.Metrics
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		active:  make(map[domain.SessionKey]map[*Client]struct{}),
		metrics: m,
	}
}

// Register attaches c to key.
func (h *Hub) Register(key domain.SessionKey, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.active[key]; !ok {
		h.active[key] = make(map[*Client]struct{})
	}
	h.active[key][c] = struct{}{}
	h.metrics.LiveConnected(1)
	slog.Info("Live session registered", "user_id", key.UserID, "session_id", key.SessionID)
}

// Unregister detaches c from key. Unknown clients are ignored.
func (h *Hub) Unregister(key domain.SessionKey, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.active[key]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.active, key)
	}
	h.metrics.LiveConnected(-1)
	slog.Info("Live session unregistered", "user_id", key.UserID, "session_id", key.SessionID)
}

// Count returns the number of clients attached to key.
func (h *Hub) Count(key domain.SessionKey) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[key])
}

// Publish sends view to every client of key. Clients whose queue is full
// miss the update; the next view supersedes it anyway.
func (h *Hub) Publish(key domain.SessionKey, view flow.View) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.active[key]
	if len(clients) == 0 {
		return
	}
	msg, err := json.Marshal(viewMessage{Type: "view", View: view})
	if err != nil {
		slog.Error("Failed to encode live view", "error", err)
		return
	}
	for c := range clients {
		if !c.enqueue(msg) {
			slog.Warn("Live client queue full, dropping view", "user_id", key.UserID, "session_id", key.SessionID)
		}
	}
}

// CloseSession detaches every connection of key and closes them. Closing
// waits for the peer, so it happens outside the hub lock.
func (h *Hub) CloseSession(key domain.SessionKey) {
	h.mu.Lock()
	clients, ok := h.active[key]
	if ok {
		delete(h.active, key)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	for c := range clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "session expired")
		h.metrics.LiveConnected(-1)
	}
	slog.Info("Live session closed", "user_id", key.UserID, "session_id", key.SessionID, "clients", len(clients))
}
