package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"spese-api/internal/core"
	"spese-api/internal/log"
	"spese-api/internal/middleware/ratelimit"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	msgInternal    = "Internal server error"
	msgRateLimited = "Rate limit exceeded. Too many requests."
)

// requestError is a transport-level rejection that never reaches the
// domain: malformed JSON, an unparsable query list.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(message string) error {
	return &requestError{status: http.StatusBadRequest, message: message}
}

// errorBody is the payload of every non-2xx JSON response.
type errorBody struct {
	Detail string `json:"detail"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Status is already on the wire.
		log.FromContext(r.Context()).WarnContext(r.Context(), "Encode response failed", log.FieldError, err)
	}
}

// writeError maps err onto a status and writes {"detail": ...}. Internal
// failures are logged with the request id and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorStatus(err)

	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	case http.StatusTooManyRequests:
		var rl *core.RateLimitError
		if errors.As(err, &rl) && w.Header().Get("Retry-After") == "" {
			w.Header().Set("Retry-After", strconv.Itoa(ratelimit.RetryAfterSeconds(rl.RetryAfter)))
		}
	case http.StatusInternalServerError:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, r.Method+" "+r.URL.Path, nil)
	}

	writeJSON(w, r, status, errorBody{Detail: detail})
}

// errorStatus is the single place domain errors become status codes.
func errorStatus(err error) (int, string) {
	var (
		reqErr   *requestError
		valErr   *core.ValidationError
		conflict *core.ConflictError
		authErr  *core.AuthError
		notFound *core.NotFoundError
		limited  *core.RateLimitError
	)

	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, reqErr.message
	case errors.As(err, &valErr):
		return http.StatusUnprocessableEntity, valErr.Error()
	case errors.As(err, &conflict):
		return http.StatusBadRequest, conflict.Error()
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, authMessage(authErr)
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFoundMessage(notFound)
	case errors.As(err, &limited):
		return http.StatusTooManyRequests, msgRateLimited
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// Bad credentials keep their message; every token problem reads the same.
func authMessage(err *core.AuthError) string {
	if errors.Is(err.Cause, core.ErrBadCredentials) {
		return "Invalid credentials"
	}
	return "Could not validate credentials"
}

func notFoundMessage(err *core.NotFoundError) string {
	switch err.Resource {
	case "expense":
		return "Expense not found"
	case "category":
		return "Category not found"
	case "user":
		return "User not found"
	default:
		return err.Error()
	}
}
