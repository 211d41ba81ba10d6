package vidvault

// Signal is a presentation-facing event emitted by the core components.
// Callers subscribe with a NotifyFunc; the core never renders anything
// itself.
type Signal string

const (
	// SignalRedirectToLogin fires when a 401 invalidates the session.
	// The subscriber should route the user back to the login surface.
	SignalRedirectToLogin Signal = "redirect-to-login"
	// SignalGoToLibrary fires when authentication completes and the
	// library is ready to show.
	SignalGoToLibrary Signal = "go-to-library"
	// SignalGoToLogin fires when registration succeeded but the automatic
	// login did not; the account exists and the user should sign in.
	SignalGoToLogin Signal = "go-to-login"
)

// NotifyFunc receives signals from a core component. A nil NotifyFunc
// is valid and drops all signals.
type NotifyFunc func(Signal)
