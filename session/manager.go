package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vidvault"
)

// Session is the in-memory form of an authenticated session.
type Session struct {
	// Token is the bearer token for authorized calls.
	Token string
	// User is the authenticated account.
	User vidvault.User
	// ExpiresAt is the advisory token expiry. Zero means unknown; the
	// client never enforces it locally, the server's 401 is the truth.
	ExpiresAt time.Time
}

// Manager owns the current session. It mirrors the durable Store in memory
// so reads never touch disk, and keeps the two coherent: memory changes
// only after the store accepted the same change.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu            sync.RWMutex
	token         string
	user          vidvault.User
	expiresAt     time.Time
	authenticated bool
}

// NewManager constructs a Manager backed by the given store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if store == nil {
		panic("session: store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Restore loads any persisted session into memory. A missing session is
// the ordinary logged-out state and returns nil. Unreadable persisted
// state is discarded so startup always lands in a clean state.
func (m *Manager) Restore(ctx context.Context) error {
	state, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return fmt.Errorf("restore session: %w", err)
	}

	var user vidvault.User
	if err := json.Unmarshal(state.UserJSON, &user); err != nil {
		m.logger.Warn("discarding unreadable stored session", "error", err)
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			m.logger.Warn("clear unreadable session", "error", clearErr)
		}
		return nil
	}

	expiresAt, _ := TokenExpiry(state.Token)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = state.Token
	m.user = user
	m.expiresAt = expiresAt
	m.authenticated = true
	return nil
}

// SetSession persists the session and then mirrors it in memory. The token
// and user are written together; a session with an empty token is rejected
// with ErrInvalidSession.
func (m *Manager) SetSession(ctx context.Context, s Session) error {
	if s.Token == "" {
		return ErrInvalidSession
	}

	userJSON, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}

	if err := m.store.Save(ctx, State{Token: s.Token, UserJSON: userJSON}); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	expiresAt := s.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt, _ = TokenExpiry(s.Token)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = s.Token
	m.user = s.User
	m.expiresAt = expiresAt
	m.authenticated = true
	return nil
}

// Clear logs out. Memory is zeroed unconditionally; the durable state is
// cleared best-effort and its failure reported, so a broken disk can never
// keep a user logged in. Clearing an empty session is a no-op.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.user = vidvault.User{}
	m.expiresAt = time.Time{}
	m.authenticated = false
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Token returns the bearer token, and whether a session is active.
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.authenticated
}

// User returns the authenticated user, and whether a session is active.
func (m *Manager) User() (vidvault.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, m.authenticated
}

// ExpiresAt returns the advisory token expiry, and whether one is known.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiresAt, m.authenticated && !m.expiresAt.IsZero()
}

// IsAuthenticated reports whether a session is active.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authenticated
}
