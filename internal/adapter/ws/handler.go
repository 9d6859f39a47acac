// Package ws implements the WebSocket adapter for real-time board and
// discussion events.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/parleyhq/parley/internal/domain/billing"
)

// Close codes for authentication failures. Distinct codes let clients tell
// a bad token apart from a valid token on the wrong project.
const (
	CloseInvalidAuth      websocket.StatusCode = 4001
	CloseForbiddenProject websocket.StatusCode = 4003
)

const authDeadline = 10 * time.Second

// sendBuffer bounds per-connection queued frames. A subscriber that falls
// this far behind is disconnected rather than backpressuring publishers.
const sendBuffer = 64

// TokenVerifier resolves API tokens and checks project access for the
// WebSocket handshake.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*billing.User, error)
	AuthorizeProject(ctx context.Context, userID, projectID string) error
}

// Message is the envelope for all WebSocket frames.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// conn wraps a single subscribed WebSocket connection.
type conn struct {
	ws        *websocket.Conn
	send      chan []byte
	cancel    context.CancelFunc
	projectID string
}

// Hub manages WebSocket connections grouped by project.
type Hub struct {
	verifier TokenVerifier // nil disables the auth handshake

	mu    sync.RWMutex
	conns map[string]map[*conn]struct{} // projectID -> connections
}

// NewHub creates a WebSocket hub. A nil verifier skips the auth handshake.
func NewHub(verifier TokenVerifier) *Hub {
	return &Hub{
		verifier: verifier,
		conns:    make(map[string]map[*conn]struct{}),
	}
}

// HandleProject upgrades the request and subscribes it to one project's
// event stream. The first client frame must be an auth frame when a
// verifier is configured.
func (h *Hub) HandleProject(w http.ResponseWriter, r *http.Request, projectID string) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	if h.verifier != nil {
		if !h.authenticate(ctx, ws, projectID) {
			cancel()
			return
		}
	}

	c := &conn{
		ws:        ws,
		send:      make(chan []byte, sendBuffer),
		cancel:    cancel,
		projectID: projectID,
	}

	h.mu.Lock()
	set, ok := h.conns[projectID]
	if !ok {
		set = make(map[*conn]struct{})
		h.conns[projectID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("websocket subscribed", "project_id", projectID, "remote", r.RemoteAddr)

	go c.writeLoop(ctx)

	// Read loop detects disconnects and consumes pings.
	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// authenticate enforces the first-frame auth handshake. It closes the
// connection itself on failure.
func (h *Hub) authenticate(ctx context.Context, ws *websocket.Conn, projectID string) bool {
	authCtx, cancel := context.WithTimeout(ctx, authDeadline)
	defer cancel()

	_, data, err := ws.Read(authCtx)
	if err != nil {
		_ = ws.Close(CloseInvalidAuth, "auth frame required")
		return false
	}

	var frame authFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type != "auth" {
		_ = ws.Close(CloseInvalidAuth, "auth frame required")
		return false
	}

	user, err := h.verifier.VerifyToken(authCtx, frame.Token)
	if err != nil {
		_ = ws.Close(CloseInvalidAuth, "invalid token")
		return false
	}

	if err := h.verifier.AuthorizeProject(authCtx, user.ID, projectID); err != nil {
		_ = ws.Close(CloseForbiddenProject, "project access denied")
		return false
	}

	ok, _ := json.Marshal(Message{Type: "auth_ok"})
	if err := ws.Write(authCtx, websocket.MessageText, ok); err != nil {
		return false
	}
	return true
}

func (c *conn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, open := <-c.send:
			if !open {
				return
			}
			if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}

// Broadcast sends a message to every connection subscribed to projectID.
// Connections with a full send queue are dropped.
func (h *Hub) Broadcast(_ context.Context, projectID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	var slow []*conn

	h.mu.RLock()
	for c := range h.conns[projectID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Debug("websocket subscriber too slow, dropping", "project_id", projectID)
		h.remove(c)
	}
}

// ConnectionCount returns the number of active connections across all projects.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[c.projectID]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		c.cancel()
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, c.projectID)
		}
		slog.Info("websocket disconnected", "project_id", c.projectID)
	}
}
