// Package project defines the minimal project and role entities the
// discussion core needs. Full project CRUD lives outside this service.
package project

import "time"

// Project is a collaboration space owning one board and at most one active
// discussion.
type Project struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Role is a configured agent role within a project. Briefing is the
// user-supplied text embedded (sanitized) in the agent's system prompt.
type Role struct {
	ProjectID string    `json:"project_id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Briefing  string    `json:"briefing"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}
