package core

import (
	"errors"
	"fmt"
	"time"
)

// Causes carried by AuthError. Callers see the same 401 for all of them;
// logs keep them apart.
var (
	ErrMissingToken       = errors.New("missing bearer token")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnknownUser        = errors.New("token subject no longer exists")
	ErrBadCredentials     = errors.New("invalid credentials")
	ErrUsernameRegistered = errors.New("username already exists")
)

// ValidationError reports input that failed shape or range checks.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ConflictError reports a duplicate unique key.
type ConflictError struct {
	Resource string
	Err      error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Resource + " already exists"
}

func (e *ConflictError) Unwrap() error { return e.Err }

type AuthError struct {
	Cause error
}

func (e *AuthError) Error() string {
	if e.Cause == nil {
		return "not authenticated"
	}
	return e.Cause.Error()
}

func (e *AuthError) Unwrap() error { return e.Cause }

// NotFoundError covers both a missing record and one owned by someone else.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded"
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
