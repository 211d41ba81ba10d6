package session

import (
	"context"
	"sync"
)

// MemoryStore implements Store without persistence. Sessions vanish when
// the process exits. Useful for tests and for callers that opt out of disk
// state entirely.
type MemoryStore struct {
	mu    sync.RWMutex
	state State
	set   bool
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the held state, or ErrNoSession when none is set.
func (m *MemoryStore) Load(ctx context.Context) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.set || m.state.Token == "" {
		return State{}, ErrNoSession
	}

	// Copy the user bytes so callers cannot mutate held state.
	userJSON := make([]byte, len(m.state.UserJSON))
	copy(userJSON, m.state.UserJSON)
	return State{Token: m.state.Token, UserJSON: userJSON}, nil
}

// Save replaces the held state.
func (m *MemoryStore) Save(ctx context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userJSON := make([]byte, len(state.UserJSON))
	copy(userJSON, state.UserJSON)
	m.state = State{Token: state.Token, UserJSON: userJSON}
	m.set = true
	return nil
}

// Clear drops the held state.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = State{}
	m.set = false
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
