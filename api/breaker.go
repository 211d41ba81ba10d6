package api

import (
	"errors"
	"sync"
	"time"
)

// BreakerState represents the state of the circuit breaker.
type BreakerState int

const (
	// BreakerClosed is the normal state where requests are allowed.
	BreakerClosed BreakerState = iota
	// BreakerOpen is the state where requests fail fast.
	BreakerOpen
	// BreakerHalfOpen is the testing state where limited requests are allowed.
	BreakerHalfOpen
)

// String returns the string representation of a breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("api: circuit breaker is open")

// BreakerConfig configures the client-side circuit breaker.
// The breaker trips only on transient failures (transport errors and
// 5xx/429 responses); client mistakes never open it.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive transient failures
	// that opens the circuit. 0 disables the breaker entirely.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before a test
	// request is allowed.
	RecoveryTimeout time.Duration
	// HalfOpenMaxRequests is the number of test requests allowed in the
	// half-open state.
	HalfOpenMaxRequests int
}

// DefaultBreakerConfig returns the configuration used when the breaker is
// switched on without explicit settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:    5,
		RecoveryTimeout:     30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// Breaker implements the circuit breaker pattern for a single upstream.
// The client talks to one server, so one circuit is enough.
type Breaker struct {
	mu                sync.Mutex
	config            BreakerConfig
	state             BreakerState
	consecutiveErrors int
	lastStateChange   time.Time
	halfOpenRequests  int
}

// NewBreaker creates a breaker with the given configuration. A zero
// FailureThreshold yields a breaker that allows everything.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold > 0 {
		if cfg.RecoveryTimeout <= 0 {
			cfg.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
		}
		if cfg.HalfOpenMaxRequests <= 0 {
			cfg.HalfOpenMaxRequests = DefaultBreakerConfig().HalfOpenMaxRequests
		}
	}
	return &Breaker{config: cfg, lastStateChange: time.Now()}
}

func (b *Breaker) disabled() bool {
	return b == nil || b.config.FailureThreshold <= 0
}

// Allow checks whether a request should be issued.
// Returns nil if allowed, or ErrCircuitOpen if the circuit is open.
func (b *Breaker) Allow() error {
	if b.disabled() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil

	case BreakerOpen:
		if time.Since(b.lastStateChange) >= b.config.RecoveryTimeout {
			// Transition to half-open; this request is the first test.
			b.state = BreakerHalfOpen
			b.lastStateChange = time.Now()
			b.halfOpenRequests = 1
			return nil
		}
		return ErrCircuitOpen

	case BreakerHalfOpen:
		if b.halfOpenRequests < b.config.HalfOpenMaxRequests {
			b.halfOpenRequests++
			return nil
		}
		return ErrCircuitOpen

	default:
		return nil
	}
}

// RecordSuccess records a successful request. In half-open state this
// closes the circuit.
func (b *Breaker) RecordSuccess() {
	if b.disabled() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerClosed
		b.lastStateChange = time.Now()
		b.consecutiveErrors = 0
		b.halfOpenRequests = 0
	case BreakerClosed:
		b.consecutiveErrors = 0
	}
}

// RecordFailure records a transient failure. When the threshold is reached,
// the circuit opens.
func (b *Breaker) RecordFailure() {
	if b.disabled() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.consecutiveErrors++
		if b.consecutiveErrors >= b.config.FailureThreshold {
			b.state = BreakerOpen
			b.lastStateChange = time.Now()
		}
	case BreakerHalfOpen:
		// A failed test request reopens the circuit.
		b.state = BreakerOpen
		b.lastStateChange = time.Now()
		b.consecutiveErrors++
	}
}

// State returns the current breaker state, accounting for recovery timeouts.
func (b *Breaker) State() BreakerState {
	if b.disabled() {
		return BreakerClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && time.Since(b.lastStateChange) >= b.config.RecoveryTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset returns the breaker to the closed state.
func (b *Breaker) Reset() {
	if b.disabled() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.consecutiveErrors = 0
	b.halfOpenRequests = 0
	b.lastStateChange = time.Now()
}
