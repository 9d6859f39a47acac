package http

import (
	"net/http"
	"strconv"

	"github.com/parleyhq/parley/internal/domain/board"
)

// PostMessage appends one message to a project board.
func (h *Handlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	req, ok := readJSON[board.PostRequest](w, r)
	if !ok {
		return
	}
	req.ProjectID = projectID

	msg, err := h.board.Post(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// ListMessages returns board messages: ?since=<id> polls forward, otherwise
// the newest ?limit= messages are returned.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "projectID")
	if _, ok := h.requireProjectAccess(w, r, projectID); !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var msgs []board.Message
	var err error
	if sinceParam := r.URL.Query().Get("since"); sinceParam != "" {
		since, convErr := strconv.ParseInt(sinceParam, 10, 64)
		if convErr != nil {
			writeError(w, http.StatusBadRequest, "since must be an integer")
			return
		}
		msgs, err = h.board.Poll(r.Context(), projectID, since, limit)
	} else {
		msgs, err = h.board.Recent(r.Context(), projectID, limit)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if msgs == nil {
		msgs = []board.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// BoardSocket upgrades to the WebSocket event stream for one project. The
// hub enforces the first-frame auth handshake.
func (h *Handlers) BoardSocket(w http.ResponseWriter, r *http.Request) {
	h.hub.HandleProject(w, r, urlParam(r, "projectID"))
}
