// Package board defines the append-only per-project message log model.
package board

import "time"

// Message type constants. The type drives routing and engine side effects:
// a "status" post may auto-trigger a Continuous review round.
const (
	TypeMessage    = "message"
	TypeStatus     = "status"
	TypeQuestion   = "question"
	TypeSubmission = "submission"
	TypeSystem     = "system"
)

// RoleAll is the broadcast recipient.
const RoleAll = "all"

// RoleSystem is the sender for engine announcements.
const RoleSystem = "system"

// Message is one entry in a project's board log. Immutable once created.
// ID is gap-free and strictly increasing per project; it is the single
// ordering source of truth for polling, replay, and aggregation.
type Message struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"project_id"`
	FromRole  string    `json:"from_role"`
	ToRole    string    `json:"to_role"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// PostRequest is the input for appending a message to a project board.
type PostRequest struct {
	ProjectID string `json:"project_id"`
	FromRole  string `json:"from_role"`
	ToRole    string `json:"to_role"`
	Type      string `json:"type"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// Normalize fills defaults for an incoming post: empty recipient means
// broadcast, empty type means plain message.
func (r *PostRequest) Normalize() {
	if r.ToRole == "" {
		r.ToRole = RoleAll
	}
	if r.Type == "" {
		r.Type = TypeMessage
	}
}

// AddressedTo reports whether the message targets the given role: direct,
// role-wide, or broadcast.
func (m *Message) AddressedTo(role string) bool {
	return m.ToRole == RoleAll || m.ToRole == role
}
