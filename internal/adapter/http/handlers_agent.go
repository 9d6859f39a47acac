package http

import (
	"net/http"

	"github.com/parleyhq/parley/internal/domain/agent"
)

type startAgentRequest struct {
	Instance int    `json:"instance"`
	Model    string `json:"model"`
}

// StartAgent launches an agent loop for a configured role.
func (h *Handlers) StartAgent(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	userID, ok := h.requireProjectAccess(w, r, projectID)
	if !ok {
		return
	}

	req, ok := readJSON[startAgentRequest](w, r)
	if !ok {
		return
	}

	id := agent.Identity{
		ProjectID: projectID,
		RoleSlug:  urlParam(r, "slug"),
		Instance:  req.Instance,
	}
	state, err := h.agents.Start(r.Context(), userID, id, req.Model)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// StopAgent terminates a running agent loop.
func (h *Handlers) StopAgent(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	req, ok := readJSON[startAgentRequest](w, r)
	if !ok {
		return
	}

	id := agent.Identity{
		ProjectID: projectID,
		RoleSlug:  urlParam(r, "slug"),
		Instance:  req.Instance,
	}
	if err := h.agents.Stop(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// ListAgents returns the runtime state of the project's agents.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	states := h.agents.List(projectID)
	if states == nil {
		states = []agent.State{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": states})
}
