// Package session persists the authenticated session and guards access to
// it. A Store is a durable two-key map holding the bearer token and the
// serialized user; the Manager layers an in-memory mirror on top and keeps
// the two coherent.
package session

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common session conditions.
var (
	// ErrNoSession indicates no session is stored. Callers treat this as
	// the logged-out state, never as a failure.
	ErrNoSession = errors.New("session: no stored session")
	// ErrInvalidSession indicates a session that must not be persisted,
	// such as one with an empty token.
	ErrInvalidSession = errors.New("session: invalid session")
)

// State is the raw persisted form of a session. Token and UserJSON always
// travel together: Save replaces both in one atomic step, so a crash can
// never leave a token paired with the wrong user.
type State struct {
	// Token is the bearer token.
	Token string
	// UserJSON is the serialized authenticated user.
	UserJSON []byte
}

// StoreError wraps store failures with operation context.
// Use errors.As() to extract it:
//
//	var storeErr *session.StoreError
//	if errors.As(err, &storeErr) {
//		fmt.Printf("session %s failed: %v\n", storeErr.Op, storeErr.Err)
//	}
type StoreError struct {
	// Op is the operation that failed ("load", "save", "clear").
	Op string
	// Key is the affected key when the failure is key-specific.
	Key string
	// Err is the underlying error.
	Err error
}

// Error returns a string representation of the store error.
func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("session: %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StoreError) Unwrap() error { return e.Err }

// Store is the durable backing for a session.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the persisted session state. It returns ErrNoSession
	// when nothing is stored, and maps unreadable state to ErrNoSession
	// as well: a corrupt store means logged out, not broken.
	Load(ctx context.Context) (State, error)
	// Save persists both keys in one atomic step.
	Save(ctx context.Context, state State) error
	// Clear removes any persisted session state. Clearing an empty store
	// is not an error.
	Clear(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}
