package vidvault

import "fmt"

// ValidationError reports a client-side form check that failed before any
// network call was made. Field names the input the message applies to, so
// callers never have to guess from the message text.
//
// Use errors.As() to extract it:
//
//	var vErr *vidvault.ValidationError
//	if errors.As(err, &vErr) {
//		highlight(vErr.Field, vErr.Message)
//	}
type ValidationError struct {
	// Field is the form field the error applies to ("name", "email",
	// "password", "confirm", "url").
	Field string
	// Message is the user-facing text.
	Message string
}

// Error returns the user-facing message.
func (e *ValidationError) Error() string { return e.Message }

// PreconditionError reports caller misuse: an authorized operation invoked
// without a token, or an import started while another is active. It is a
// programming-error signal, logged rather than shown to users.
type PreconditionError struct {
	// Op is the operation that was misused.
	Op string
	// Reason describes the violated precondition.
	Reason string
}

// Error returns a string representation of the precondition violation.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
