package http

import (
	"context"
	"net/http"
	"time"

	"github.com/parleyhq/parley/internal/adapter/ws"
	"github.com/parleyhq/parley/internal/middleware"
	"github.com/parleyhq/parley/internal/service"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Handlers bundles the services behind the REST surface.
type Handlers struct {
	board       *service.BoardService
	discussions *service.DiscussionService
	agents      *service.AgentRegistry
	gateway     *service.MeteringGateway
	usage       *service.UsageService
	projects    *service.ProjectService
	auth        *service.AuthService
	hub         *ws.Hub

	authEnabled bool
	checks      map[string]HealthCheck
}

// NewHandlers creates the handler set.
func NewHandlers(board *service.BoardService, discussions *service.DiscussionService, agents *service.AgentRegistry, gateway *service.MeteringGateway, usage *service.UsageService, projects *service.ProjectService, auth *service.AuthService, hub *ws.Hub, authEnabled bool, checks map[string]HealthCheck) *Handlers {
	return &Handlers{
		board:       board,
		discussions: discussions,
		agents:      agents,
		gateway:     gateway,
		usage:       usage,
		projects:    projects,
		auth:        auth,
		hub:         hub,
		authEnabled: authEnabled,
		checks:      checks,
	}
}

// requireProjectAccess resolves the caller and checks project ownership.
// With auth disabled every project is accessible.
func (h *Handlers) requireProjectAccess(w http.ResponseWriter, r *http.Request, projectID string) (userID string, ok bool) {
	u, found := middleware.UserFrom(r.Context())
	if !found {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return "", false
	}
	if !h.authEnabled {
		return u.ID, true
	}
	if err := h.auth.AuthorizeProject(r.Context(), u.ID, projectID); err != nil {
		writeDomainError(w, err)
		return "", false
	}
	return u.ID, true
}

// Health reports the status of each backing dependency.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = "down: " + err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	writeJSON(w, status, map[string]any{
		"status":       statusWord(status),
		"dependencies": deps,
	})
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
