package http

import (
	"context"
	"net/http"

	"spese-api/internal/auth"
	"spese-api/internal/core"
	"spese-api/internal/log"
)

type contextKey string

const userContextKey contextKey = "user"

func withUser(ctx context.Context, user core.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// currentUser returns the user requireUser resolved. Handlers behind
// requireUser can rely on it being present.
func currentUser(r *http.Request) core.User {
	user, _ := r.Context().Value(userContextKey).(core.User)
	return user
}

// requireUser resolves the bearer token to a live user or answers 401.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, r, &core.AuthError{Cause: core.ErrMissingToken})
			return
		}

		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			if core.IsAuth(err) {
				s.logger.DebugContext(r.Context(), "Token rejected", log.FieldError, err, log.FieldPath, r.URL.Path)
			}
			writeError(w, r, err)
			return
		}

		ctx := withUser(r.Context(), user)
		ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUserID, user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var creds core.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.auth.Register(r.Context(), creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds core.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.auth.Login(r.Context(), creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, token)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, currentUser(r))
}
