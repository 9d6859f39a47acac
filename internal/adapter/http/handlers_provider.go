package http

import (
	"encoding/json"
	"net/http"

	"github.com/parleyhq/parley/internal/domain/agent"
	"github.com/parleyhq/parley/internal/middleware"
	"github.com/parleyhq/parley/internal/port/completion"
)

type completionRequest struct {
	ProjectID string `json:"project_id"`
	RoleSlug  string `json:"role_slug"`
	Model     string `json:"model"`
	System    string `json:"system"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
	Tools     json.RawMessage `json:"tools"`
}

// Completion serves one metered completion.
func (h *Handlers) Completion(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[completionRequest](w, r)
	if !ok {
		return
	}
	if req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	userID, ok := h.requireProjectAccess(w, r, req.ProjectID)
	if !ok {
		return
	}

	turns := make([]agent.Turn, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := agent.ChatRoleUser
		if m.Role == "assistant" {
			role = agent.ChatRoleAssistant
		}
		turns = append(turns, agent.Turn{Role: role, Content: m.Content})
	}

	res, err := h.gateway.Complete(r.Context(), userID, req.ProjectID, completion.Request{
		Model:     req.Model,
		System:    req.System,
		Messages:  turns,
		MaxTokens: req.MaxTokens,
		Tools:     req.Tools,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UserUsage returns the caller's usage totals and per-project breakdown.
func (h *Handlers) UserUsage(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	report, err := h.usage.ForUser(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ProjectUsage returns one project's usage with a per-model breakdown.
func (h *Handlers) ProjectUsage(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	report, err := h.usage.ForProject(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// StoreCredential saves the caller's self-key provider credential.
func (h *Handlers) StoreCredential(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	req, ok := readJSON[struct {
		Provider string `json:"provider"`
		APIKey   string `json:"api_key"`
	}](w, r)
	if !ok {
		return
	}
	if req.Provider == "" {
		writeError(w, http.StatusBadRequest, "provider is required")
		return
	}

	if err := h.gateway.StoreCredential(r.Context(), u.ID, req.Provider, req.APIKey); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "stored"})
}
