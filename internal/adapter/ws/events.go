package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Event type constants for WebSocket frames.
const (
	EventBoardMessage    = "board.message"
	EventDiscussionPhase = "discussion.phase"
	EventRoundClosed     = "discussion.round_closed"
	EventAgentStatus     = "agent.status"
)

// BoardMessageEvent is broadcast for every message posted to a project board.
type BoardMessageEvent struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"project_id"`
	FromRole  string    `json:"from_role"`
	ToRole    string    `json:"to_role"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// DiscussionPhaseEvent is broadcast when a discussion changes phase.
type DiscussionPhaseEvent struct {
	DiscussionID string `json:"discussion_id"`
	ProjectID    string `json:"project_id"`
	Phase        string `json:"phase"`
	CurrentRound int    `json:"current_round"`
}

// RoundClosedEvent is broadcast when a round is closed and aggregated.
type RoundClosedEvent struct {
	DiscussionID string `json:"discussion_id"`
	RoundNumber  int    `json:"round_number"`
	MessageID    int64  `json:"message_id"`
}

// AgentStatusEvent is broadcast when an agent starts or stops.
type AgentStatusEvent struct {
	ProjectID string `json:"project_id"`
	Role      string `json:"role"`
	Status    string `json:"status"`
}

// BroadcastProject marshals a typed event and broadcasts it to one project's
// subscribers. Implements the broadcast port.
func (h *Hub) BroadcastProject(ctx context.Context, projectID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, projectID, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
