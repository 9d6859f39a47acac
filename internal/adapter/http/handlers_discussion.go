package http

import (
	"net/http"
	"time"

	"github.com/parleyhq/parley/internal/domain/discussion"
)

type startDiscussionRequest struct {
	Mode         string   `json:"mode"`
	Topic        string   `json:"topic"`
	Moderator    string   `json:"moderator"`
	Participants []string `json:"participants"`
	MaxRounds    int      `json:"max_rounds"`
	TimeoutSec   int      `json:"timeout_seconds"`
}

// StartDiscussion creates a discussion for the project.
func (h *Handlers) StartDiscussion(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	req, ok := readJSON[startDiscussionRequest](w, r)
	if !ok {
		return
	}

	d, err := h.discussions.Start(r.Context(), discussion.StartRequest{
		ProjectID:    projectID,
		Mode:         discussion.Mode(req.Mode),
		Topic:        req.Topic,
		Moderator:    req.Moderator,
		Participants: req.Participants,
		MaxRounds:    req.MaxRounds,
		Timeout:      time.Duration(req.TimeoutSec) * time.Second,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ActiveDiscussion returns the project's active discussion.
func (h *Handlers) ActiveDiscussion(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	d, err := h.discussions.Active(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListDiscussions returns the project's discussion history.
func (h *Handlers) ListDiscussions(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	ds, err := h.discussions.List(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if ds == nil {
		ds = []discussion.Discussion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"discussions": ds})
}

// getProjectDiscussion loads the discussion and confirms it belongs to the
// project in the URL.
func (h *Handlers) getProjectDiscussion(w http.ResponseWriter, r *http.Request) (*discussion.Discussion, bool) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return nil, false
	}

	d, err := h.discussions.Get(r.Context(), urlParam(r, "discussionID"))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	if d.ProjectID != projectID {
		writeError(w, http.StatusNotFound, "discussion not found in project")
		return nil, false
	}
	return d, true
}

// GetDiscussion returns one discussion.
func (h *Handlers) GetDiscussion(w http.ResponseWriter, r *http.Request) {
	d, ok := h.getProjectDiscussion(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListRounds returns a discussion's rounds.
func (h *Handlers) ListRounds(w http.ResponseWriter, r *http.Request) {
	d, ok := h.getProjectDiscussion(w, r)
	if !ok {
		return
	}

	rounds, err := h.discussions.Rounds(r.Context(), d.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rounds == nil {
		rounds = []discussion.Round{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": rounds})
}

// OpenRound opens the next round.
func (h *Handlers) OpenRound(w http.ResponseWriter, r *http.Request) {
	d, ok := h.getProjectDiscussion(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[struct {
		Topic string `json:"topic"`
	}](w, r)
	if !ok {
		return
	}

	round, err := h.discussions.OpenRound(r.Context(), d.ID, req.Topic)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

// Submit records a participant's submission for the open round.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	d, ok := h.getProjectDiscussion(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[struct {
		FromRole string `json:"from_role"`
		Body     string `json:"body"`
	}](w, r)
	if !ok {
		return
	}

	sub, err := h.discussions.Submit(r.Context(), d.ID, req.FromRole, req.Body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// TrackSubmission links an existing board message as a submission.
func (h *Handlers) TrackSubmission(w http.ResponseWriter, r *http.Request) {
	d, ok := h.getProjectDiscussion(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[struct {
		FromRole  string `json:"from_role"`
		MessageID int64  `json:"message_id"`
	}](w, r)
	if !ok {
		return
	}

	sub, err := h.discussions.TrackSubmission(r.Context(), d.ID, req.FromRole, req.MessageID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// CloseRound closes the open round and posts the aggregate.
func (h *Handlers) CloseRound(w http.ResponseWriter, r *http.Request) {
	d, ok := h.getProjectDiscussion(w, r)
	if !ok {
		return
	}

	round, err := h.discussions.CloseRound(r.Context(), d.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// EndDiscussion completes the discussion.
func (h *Handlers) EndDiscussion(w http.ResponseWriter, r *http.Request) {
	d, ok := h.getProjectDiscussion(w, r)
	if !ok {
		return
	}

	ended, err := h.discussions.End(r.Context(), d.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ended)
}

// SetTeams assigns Oxford debate sides.
func (h *Handlers) SetTeams(w http.ResponseWriter, r *http.Request) {
	d, ok := h.getProjectDiscussion(w, r)
	if !ok {
		return
	}

	teams, ok := readJSON[discussion.Teams](w, r)
	if !ok {
		return
	}

	updated, err := h.discussions.SetTeams(r.Context(), d.ID, teams)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// SetTimeout adjusts the Continuous auto-close timeout.
func (h *Handlers) SetTimeout(w http.ResponseWriter, r *http.Request) {
	d, ok := h.getProjectDiscussion(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[struct {
		TimeoutSec int `json:"timeout_seconds"`
	}](w, r)
	if !ok {
		return
	}

	updated, err := h.discussions.SetTimeout(r.Context(), d.ID, time.Duration(req.TimeoutSec)*time.Second)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// PauseDiscussion suspends the discussion.
func (h *Handlers) PauseDiscussion(w http.ResponseWriter, r *http.Request) {
	d, ok := h.getProjectDiscussion(w, r)
	if !ok {
		return
	}

	updated, err := h.discussions.Pause(r.Context(), d.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ResumeDiscussion resumes a paused discussion.
func (h *Handlers) ResumeDiscussion(w http.ResponseWriter, r *http.Request) {
	d, ok := h.getProjectDiscussion(w, r)
	if !ok {
		return
	}

	updated, err := h.discussions.Resume(r.Context(), d.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
