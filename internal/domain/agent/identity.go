// Package agent defines the runtime model for LLM-backed board participants:
// identity, chat-context construction, reply parsing, and the briefing
// sandbox used to build system prompts.
package agent

import (
	"fmt"
	"time"
)

// Identity addresses one running agent: a role slug plus an instance ordinal
// within a project. Two instances of the same role are distinct participants.
type Identity struct {
	ProjectID string `json:"project_id"`
	RoleSlug  string `json:"role_slug"`
	Instance  int    `json:"instance"`
}

// Key returns the registry key for this identity.
func (id Identity) Key() string {
	return fmt.Sprintf("%s/%s/%d", id.ProjectID, id.RoleSlug, id.Instance)
}

// Role returns the board role name the agent posts and receives under.
// Instance 0 is the bare slug; higher instances are suffixed.
func (id Identity) Role() string {
	if id.Instance == 0 {
		return id.RoleSlug
	}
	return fmt.Sprintf("%s:%d", id.RoleSlug, id.Instance)
}

// State is the runtime-only view of one agent loop. Never persisted: the
// registry is rebuilt from message history after a restart.
type State struct {
	Identity          Identity  `json:"identity"`
	Model             string    `json:"model"`
	IsRunning         bool      `json:"is_running"`
	LastSeenMessageID int64     `json:"last_seen_message_id"`
	ContextTokens     int       `json:"context_tokens"`
	StartedAt         time.Time `json:"started_at"`
}
