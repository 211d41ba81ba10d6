package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a failed remote call.
type Kind int

const (
	// KindNetwork means no response was obtained: a transport failure,
	// a timeout, or an open circuit breaker.
	KindNetwork Kind = iota + 1
	// KindUnauthorized means the server answered 401. On authorized calls
	// this is session expiry; the session layer clears the session and
	// emits a redirect signal instead of showing the message.
	KindUnauthorized
	// KindBadRequest means the server rejected the input (400 or 422)
	// with a human-readable message.
	KindBadRequest
	// KindServerError covers every other non-2xx answer.
	KindServerError
)

// String returns the string representation of an error kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad request"
	case KindServerError:
		return "server error"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every Client method.
// Use errors.As() to extract it and branch on Kind:
//
//	var apiErr *api.Error
//	if errors.As(err, &apiErr) && apiErr.Kind == api.KindUnauthorized {
//		// session expired
//	}
type Error struct {
	// Kind classifies the failure.
	Kind Kind
	// StatusCode is the HTTP status, 0 when no response was obtained.
	StatusCode int
	// Message is the server's detail field when present, else a fixed
	// per-operation fallback. Always safe to show to the user.
	Message string
	// RetryAfter is the parsed Retry-After hint, when the server sent one.
	RetryAfter time.Duration
	// Err is the underlying transport error, if any.
	Err error
}

// Error returns a string representation of the API error.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *Error) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same call could help.
func (e *Error) Temporary() bool {
	if e.Kind == KindNetwork {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsUnauthorized reports whether err carries a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindUnauthorized
}

// Message returns the user-facing message carried by err, or err.Error()
// when err is not an API error.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
