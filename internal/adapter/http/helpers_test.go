package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parleyhq/parley/internal/domain"
)

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantTag    string
		wantMsg    string
	}{
		{"validation", fmt.Errorf("%w: body is required", domain.ErrValidation), http.StatusBadRequest, "validation", "body is required"},
		{"unauthorized", fmt.Errorf("%w: bad token", domain.ErrUnauthorized), http.StatusUnauthorized, "unauthorized", "bad token"},
		{"payment required", fmt.Errorf("%w: no credential", domain.ErrPaymentRequired), http.StatusPaymentRequired, "payment_required", "no credential"},
		{"forbidden", fmt.Errorf("%w: not your project", domain.ErrForbidden), http.StatusForbidden, "forbidden", "not your project"},
		{"not found", fmt.Errorf("%w: discussion x", domain.ErrNotFound), http.StatusNotFound, "not_found", "discussion x"},
		{"conflict", fmt.Errorf("%w: already submitted", domain.ErrConflict), http.StatusConflict, "conflict", "already submitted"},
		{"usage limit", fmt.Errorf("%w: cap reached", domain.ErrUsageLimitExceeded), http.StatusTooManyRequests, "usage_limit_exceeded", "cap reached"},
		{"timeout", fmt.Errorf("%w: completion exceeded 2m", domain.ErrTimeout), http.StatusGatewayTimeout, "timeout", "completion exceeded 2m"},
		{"unknown", fmt.Errorf("disk on fire"), http.StatusInternalServerError, "", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if body.Tag != tt.wantTag {
				t.Errorf("tag = %q, want %q", body.Tag, tt.wantTag)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("message = %q, want %q", body.Error, tt.wantMsg)
			}
		})
	}
}

func TestErrMessageStripsSentinel(t *testing.T) {
	err := fmt.Errorf("%w: round 3", domain.ErrNotFound)
	if got := errMessage(err); got != "round 3" {
		t.Errorf("errMessage = %q, want %q", got, "round 3")
	}
	// Plain errors pass through untouched.
	if got := errMessage(fmt.Errorf("boom")); got != "boom" {
		t.Errorf("errMessage = %q, want boom", got)
	}
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}`))
	w := httptest.NewRecorder()
	v, ok := readJSON[payload](w, r)
	if !ok || v.Name != "ok" {
		t.Fatalf("readJSON = %+v ok=%v", v, ok)
	}

	// Endpoints like open-round take only optional fields; an absent body
	// must decode to the zero value rather than 400.
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	w = httptest.NewRecorder()
	v, ok = readJSON[payload](w, r)
	if !ok || v.Name != "" {
		t.Fatalf("empty body: readJSON = %+v ok=%v", v, ok)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{broken`))
	w = httptest.NewRecorder()
	if _, ok := readJSON[payload](w, r); ok {
		t.Fatal("malformed body should fail")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	big := append([]byte(`{"name":"`), bytes.Repeat([]byte("a"), maxRequestBodySize)...)
	big = append(big, `"}`...)
	r = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(big))
	w = httptest.NewRecorder()
	if _, ok := readJSON[payload](w, r); ok {
		t.Fatal("oversized body should fail")
	}
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}
