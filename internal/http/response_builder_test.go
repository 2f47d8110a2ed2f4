package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spese-api/internal/core"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"validation", &core.ValidationError{Field: "amount", Message: "too large"}, http.StatusUnprocessableEntity, "amount: too large"},
		{"conflict", &core.ConflictError{Resource: "user", Err: core.ErrUsernameRegistered}, http.StatusBadRequest, "username already exists"},
		{"bad credentials", &core.AuthError{Cause: core.ErrBadCredentials}, http.StatusUnauthorized, "Invalid credentials"},
		{"expired token", &core.AuthError{Cause: core.ErrInvalidToken}, http.StatusUnauthorized, "Could not validate credentials"},
		{"wrapped not found", fmt.Errorf("lookup: %w", &core.NotFoundError{Resource: "expense", ID: 3}), http.StatusNotFound, "Expense not found"},
		{"category not found", &core.NotFoundError{Resource: "category"}, http.StatusNotFound, "Category not found"},
		{"rate limited", &core.RateLimitError{RetryAfter: time.Second}, http.StatusTooManyRequests, msgRateLimited},
		{"internal", errors.New("disk I/O error"), http.StatusInternalServerError, msgInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, detail := errorStatus(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", detail, tt.wantDetail)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("unauthorized carries challenge", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/expenses", nil)
		writeError(w, r, &core.AuthError{Cause: core.ErrMissingToken})

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", w.Code)
		}
		if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
			t.Errorf("WWW-Authenticate = %q", got)
		}
	})

	t.Run("rate limit sets retry-after", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		writeError(w, r, &core.RateLimitError{RetryAfter: 2500 * time.Millisecond})

		if got := w.Header().Get("Retry-After"); got != "3" {
			t.Errorf("Retry-After = %q, want 3", got)
		}
	})

	t.Run("internal errors hide the cause", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		writeError(w, r, errors.New("database is locked"))

		var body errorBody
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if w.Code != http.StatusInternalServerError || body.Detail != msgInternal {
			t.Errorf("got %d %q", w.Code, body.Detail)
		}
		if ct := w.Header().Get("Content-Type"); ct != contentTypeJSON {
			t.Errorf("Content-Type = %q", ct)
		}
	})
}
