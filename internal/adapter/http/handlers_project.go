package http

import (
	"net/http"

	"github.com/parleyhq/parley/internal/domain/project"
	"github.com/parleyhq/parley/internal/middleware"
)

// CreateProject registers a project owned by the caller.
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	req, ok := readJSON[struct {
		Name string `json:"name"`
	}](w, r)
	if !ok {
		return
	}

	p, err := h.projects.Create(r.Context(), u.ID, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProject returns one project.
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	p, err := h.projects.Get(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpsertRole creates or updates an agent role definition.
func (h *Handlers) UpsertRole(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	req, ok := readJSON[project.Role](w, r)
	if !ok {
		return
	}
	req.ProjectID = projectID
	req.Slug = urlParam(r, "slug")

	role, err := h.projects.UpsertRole(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// GetRole returns one configured role.
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	role, err := h.projects.GetRole(r.Context(), projectID, urlParam(r, "slug"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// PreviewRolePrompt renders the system prompt for a role, sanitization
// applied, so briefing authors can inspect the outcome.
func (h *Handlers) PreviewRolePrompt(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	prompt, err := h.projects.PreviewPrompt(r.Context(), projectID, urlParam(r, "slug"), 0)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}
