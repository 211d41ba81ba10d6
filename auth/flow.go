package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"vidvault"
	"vidvault/api"
	"vidvault/session"
)

// State is where an authentication flow currently stands.
type State string

const (
	// StateIdle means no flow is running.
	StateIdle State = "idle"
	// StateRegistering means the account creation request is in flight.
	StateRegistering State = "registering"
	// StateAutoLoggingIn means registration succeeded and the follow-up
	// login request is in flight.
	StateAutoLoggingIn State = "auto_logging_in"
	// StateLoggingIn means the login request is in flight.
	StateLoggingIn State = "logging_in"
	// StateSuccess means the last flow finished successfully.
	StateSuccess State = "success"
	// StateFailed means the last flow stopped on an error.
	StateFailed State = "failed"
)

// String returns the state name.
func (s State) String() string { return string(s) }

// User-facing messages not supplied by the server.
const (
	msgNetwork        = "Unable to reach the server. Please try again."
	msgSessionPersist = "Could not save your session. Please try again."
	msgAccountCreated = "Account created. Please sign in."
)

// Client is the slice of the API surface the flows need.
type Client interface {
	Register(ctx context.Context, name, email, password string) error
	Login(ctx context.Context, email, password string) (*api.LoginResult, error)
}

// Outcome reports how a flow run ended.
type Outcome struct {
	// State is the terminal state, success or failed.
	State State
	// Next is the navigation signal that was emitted, empty if none.
	Next vidvault.Signal
	// Created reports whether a new account now exists, even when the
	// run did not end with a live session.
	Created bool
	// Message is what the form should display. Empty on a clean success.
	Message string
	// Err is the underlying cause for programmatic inspection.
	Err error
}

// Flow runs login and registration against the API and stores the
// resulting session. Methods are safe for concurrent use, though a form
// normally drives one flow at a time.
type Flow struct {
	api      Client
	sessions *session.Manager
	notify   vidvault.NotifyFunc
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

// New builds a Flow. The API client and session manager are required;
// notify may be nil.
func New(client Client, sessions *session.Manager, notify vidvault.NotifyFunc, logger *slog.Logger) *Flow {
	if client == nil {
		panic("auth: client must not be nil")
	}
	if sessions == nil {
		panic("auth: session manager must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		api:      client,
		sessions: sessions,
		notify:   notify,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Login validates the form, authenticates, and stores the session. On
// success it emits SignalGoToLibrary. Server-sent failure messages pass
// through to the outcome verbatim; transport failures map to one fixed
// retry suggestion.
func (f *Flow) Login(ctx context.Context, form *LoginForm) (Outcome, error) {
	if v := form.Validate(); v != nil {
		return f.fail(v, v.Message), v
	}

	f.setState(StateLoggingIn)
	result, err := f.api.Login(ctx, form.email, form.password)
	if err != nil {
		f.logger.Warn("login failed", "email", form.email, "error", err)
		return f.fail(err, failureMessage(err)), err
	}
	if err := f.establishSession(ctx, result); err != nil {
		return f.fail(err, msgSessionPersist), err
	}

	f.setState(StateSuccess)
	f.logger.Info("logged in", "email", result.User.Email)
	f.signal(vidvault.SignalGoToLibrary)
	return Outcome{State: StateSuccess, Next: vidvault.SignalGoToLibrary}, nil
}

// Register validates the form, creates the account, and immediately logs
// in with the same credentials. A clean run emits SignalGoToLibrary.
//
// If the account was created but the automatic login failed, the run is
// not an error: the outcome carries Created with SignalGoToLogin so the
// user can sign in by hand, and Err records what went wrong.
func (f *Flow) Register(ctx context.Context, form *RegisterForm) (Outcome, error) {
	if v := form.Validate(); v != nil {
		return f.fail(v, v.Message), v
	}
	name := strings.TrimSpace(form.name)

	f.setState(StateRegistering)
	if err := f.api.Register(ctx, name, form.email, form.password); err != nil {
		f.logger.Warn("registration failed", "email", form.email, "error", err)
		return f.fail(err, failureMessage(err)), err
	}

	f.setState(StateAutoLoggingIn)
	result, err := f.api.Login(ctx, form.email, form.password)
	if err != nil {
		return f.degrade(err), nil
	}
	if err := f.establishSession(ctx, result); err != nil {
		return f.degrade(err), nil
	}

	f.setState(StateSuccess)
	f.logger.Info("registered", "email", result.User.Email)
	f.signal(vidvault.SignalGoToLibrary)
	return Outcome{State: StateSuccess, Next: vidvault.SignalGoToLibrary, Created: true}, nil
}

// Logout clears the stored session and resets the flow.
func (f *Flow) Logout(ctx context.Context) error {
	f.setState(StateIdle)
	return f.sessions.Clear(ctx)
}

func (f *Flow) establishSession(ctx context.Context, result *api.LoginResult) error {
	s := session.Session{Token: result.Token, User: result.User}
	if result.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().Add(result.ExpiresIn)
	}
	return f.sessions.SetSession(ctx, s)
}

func (f *Flow) fail(err error, message string) Outcome {
	f.setState(StateFailed)
	return Outcome{State: StateFailed, Message: message, Err: err}
}

// degrade settles a registration whose account exists but whose session
// does not. The user lands on the login page instead of an error.
func (f *Flow) degrade(err error) Outcome {
	f.logger.Warn("auto-login after registration failed", "error", err)
	f.setState(StateSuccess)
	f.signal(vidvault.SignalGoToLogin)
	return Outcome{
		State:   StateSuccess,
		Next:    vidvault.SignalGoToLogin,
		Created: true,
		Message: msgAccountCreated,
		Err:     err,
	}
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flow) signal(s vidvault.Signal) {
	if f.notify != nil {
		f.notify(s)
	}
}

// failureMessage maps an error to what the form shows. Server-sent
// detail passes through verbatim.
func failureMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if apiErr.Kind == api.KindNetwork {
			return msgNetwork
		}
		return apiErr.Message
	}
	return err.Error()
}
