package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/ashureev/cognify/internal/domain"
	"github.com/ashureev/cognify/internal/flow"
	"github.com/ashureev/cognify/internal/identity"
)

// Viewer renders the stored view of a session without changing it.
type Viewer interface {
	Peek(ctx context.Context, key domain.SessionKey) (flow.View, error)
}

// Handler upgrades requests to a live view stream for the caller's session.
type Handler struct {
	hub           *Hub
	viewer        Viewer
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a live view handler.
func NewHandler(hub *Hub, viewer Viewer, allowedOrigin string, isDev bool) *Handler {
	return &Handler{hub: hub, viewer: viewer, allowedOrigin: allowedOrigin, isDev: isDev}
}

type inbound struct {
	Type string `json:"type"`
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := identity.KeyFromContext(r.Context())
	slog.Info("Live connection request", "user_id", key.UserID, "session_id", key.SessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", key.UserID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", key.UserID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := NewClient(ws)
	h.hub.Register(key, client)
	defer h.hub.Unregister(key, client)

	go func() {
		defer cancel()
		if err := client.WriteLoop(ctx); err != nil && ctx.Err() == nil {
			slog.Debug("Live write loop ended", "error", err, "user_id", key.UserID)
		}
	}()

	// Connecting is not a user action: send the stored view as is.
	h.sendView(ctx, client, key)

	h.readLoop(ctx, ws, client, key)
	slog.Info("Live session ended", "user_id", key.UserID, "session_id", key.SessionID)
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, client *Client, key domain.SessionKey) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed", "user_id", key.UserID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", key.UserID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Debug("Ignoring malformed live message", "user_id", key.UserID)
			continue
		}

		switch msg.Type {
		case "ping":
			h.send(client, map[string]string{"type": "pong"})
		case "resync":
			h.sendView(ctx, client, key)
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// sendView queues the stored view of key for this client only.
func (h *Handler) sendView(ctx context.Context, client *Client, key domain.SessionKey) {
	view, err := h.viewer.Peek(ctx, key)
	if err != nil {
		slog.Error("Failed to load session for live view", "error", err, "user_id", key.UserID)
		h.sendError(client, "session_unavailable")
		return
	}
	h.send(client, viewMessage{Type: "view", View: view})
}

func (h *Handler) sendError(client *Client, code string) {
	h.send(client, map[string]string{"type": "error", "error": code})
}

func (h *Handler) send(client *Client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Debug("Failed to encode live message", "error", err)
		return
	}
	if !client.enqueue(data) {
		slog.Debug("Live client queue full")
	}
}
