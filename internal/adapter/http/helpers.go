package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/domain"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// readJSON decodes a JSON request body with a size limit. An empty body
// yields the zero value, since several endpoints take only optional fields.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

type errorResponse struct {
	Error string `json:"error"`
	Tag   string `json:"tag,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeTagged(w http.ResponseWriter, status int, tag string, err error) {
	writeJSON(w, status, errorResponse{Error: errMessage(err), Tag: tag})
}

// errMessage strips the sentinel prefix so clients see the detail, not the
// taxonomy name twice.
func errMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{
		domain.ErrNotFound, domain.ErrConflict, domain.ErrValidation,
		domain.ErrUsageLimitExceeded, domain.ErrPaymentRequired,
		domain.ErrTimeout, domain.ErrUnauthorized, domain.ErrForbidden,
	} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}

// writeDomainError maps the error taxonomy onto stable status codes and tags.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeTagged(w, http.StatusBadRequest, "validation", err)
	case errors.Is(err, domain.ErrUnauthorized):
		writeTagged(w, http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, domain.ErrPaymentRequired):
		writeTagged(w, http.StatusPaymentRequired, "payment_required", err)
	case errors.Is(err, domain.ErrForbidden):
		writeTagged(w, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, domain.ErrNotFound):
		writeTagged(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, domain.ErrConflict):
		writeTagged(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, domain.ErrUsageLimitExceeded):
		writeTagged(w, http.StatusTooManyRequests, "usage_limit_exceeded", err)
	case errors.Is(err, domain.ErrTimeout):
		writeTagged(w, http.StatusGatewayTimeout, "timeout", err)
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
