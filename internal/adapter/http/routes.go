package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	// WebSocket event stream; the hub runs its own first-frame auth.
	r.Get("/ws/projects/{projectID}", h.BoardSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Projects and roles
		r.Post("/projects", h.CreateProject)
		r.Get("/projects/{projectID}", h.GetProject)
		r.Put("/projects/{projectID}/roles/{slug}", h.UpsertRole)
		r.Get("/projects/{projectID}/roles/{slug}", h.GetRole)
		r.Get("/projects/{projectID}/roles/{slug}/prompt", h.PreviewRolePrompt)

		// Board
		r.Get("/messages/{projectID}", h.ListMessages)
		r.Post("/messages/{projectID}", h.PostMessage)

		// Discussions
		r.Post("/projects/{projectID}/discussions", h.StartDiscussion)
		r.Get("/projects/{projectID}/discussions", h.ListDiscussions)
		r.Get("/projects/{projectID}/discussions/active", h.ActiveDiscussion)
		r.Get("/projects/{projectID}/discussions/{discussionID}", h.GetDiscussion)
		r.Get("/projects/{projectID}/discussions/{discussionID}/rounds", h.ListRounds)
		r.Post("/projects/{projectID}/discussions/{discussionID}/open-round", h.OpenRound)
		r.Post("/projects/{projectID}/discussions/{discussionID}/submit", h.Submit)
		r.Post("/projects/{projectID}/discussions/{discussionID}/track-submission", h.TrackSubmission)
		r.Post("/projects/{projectID}/discussions/{discussionID}/close-round", h.CloseRound)
		r.Post("/projects/{projectID}/discussions/{discussionID}/end", h.EndDiscussion)
		r.Post("/projects/{projectID}/discussions/{discussionID}/teams", h.SetTeams)
		r.Post("/projects/{projectID}/discussions/{discussionID}/set-timeout", h.SetTimeout)
		r.Post("/projects/{projectID}/discussions/{discussionID}/pause", h.PauseDiscussion)
		r.Post("/projects/{projectID}/discussions/{discussionID}/resume", h.ResumeDiscussion)

		// Agent control
		r.Post("/projects/{projectID}/roles/{slug}/start", h.StartAgent)
		r.Post("/projects/{projectID}/roles/{slug}/stop", h.StopAgent)
		r.Get("/projects/{projectID}/agents", h.ListAgents)

		// Completion proxy and usage
		r.Post("/providers/completion", h.Completion)
		r.Get("/providers/usage", h.UserUsage)
		r.Get("/providers/usage/{projectID}", h.ProjectUsage)
		r.Post("/providers/credentials", h.StoreCredential)
	})
}
