// Package auth drives the two sign-in flows: plain login, and
// register-then-auto-login. Both validate locally first, call the API,
// and on success hand the session to the session manager.
package auth

import (
	"strings"

	"vidvault"
)

// Validation messages, shown one at a time in priority order.
const (
	msgNameRequired     = "Name is required"
	msgEmailInvalid     = "Please enter a valid email address"
	msgPasswordTooShort = "Password must be at least 6 characters"
	msgPasswordMismatch = "Passwords do not match"
)

const minPasswordLen = 6

// RegisterForm collects registration input. Editing any field clears the
// current validation error, so a stale message never outlives the input
// that caused it.
type RegisterForm struct {
	name     string
	email    string
	password string
	confirm  string
	err      *vidvault.ValidationError
}

// SetName updates the name field.
func (f *RegisterForm) SetName(v string) { f.name = v; f.err = nil }

// SetEmail updates the email field.
func (f *RegisterForm) SetEmail(v string) { f.email = v; f.err = nil }

// SetPassword updates the password field.
func (f *RegisterForm) SetPassword(v string) { f.password = v; f.err = nil }

// SetConfirm updates the password confirmation field.
func (f *RegisterForm) SetConfirm(v string) { f.confirm = v; f.err = nil }

// Err returns the error from the last Validate call, or nil if any field
// has been edited since.
func (f *RegisterForm) Err() *vidvault.ValidationError { return f.err }

// Validate checks the fields in priority order and records the first
// failure. Only one error is reported at a time.
func (f *RegisterForm) Validate() *vidvault.ValidationError {
	f.err = validateRegistration(f.name, f.email, f.password, f.confirm)
	return f.err
}

func validateRegistration(name, email, password, confirm string) *vidvault.ValidationError {
	if strings.TrimSpace(name) == "" {
		return &vidvault.ValidationError{Field: "name", Message: msgNameRequired}
	}
	if err := validateCredentials(email, password); err != nil {
		return err
	}
	if password != confirm {
		return &vidvault.ValidationError{Field: "confirm", Message: msgPasswordMismatch}
	}
	return nil
}

// LoginForm collects login input with the same edit-clears-error
// behavior as RegisterForm.
type LoginForm struct {
	email    string
	password string
	err      *vidvault.ValidationError
}

// SetEmail updates the email field.
func (f *LoginForm) SetEmail(v string) { f.email = v; f.err = nil }

// SetPassword updates the password field.
func (f *LoginForm) SetPassword(v string) { f.password = v; f.err = nil }

// Err returns the error from the last Validate call, or nil if any field
// has been edited since.
func (f *LoginForm) Err() *vidvault.ValidationError { return f.err }

// Validate checks the fields in priority order and records the first
// failure.
func (f *LoginForm) Validate() *vidvault.ValidationError {
	f.err = validateCredentials(f.email, f.password)
	return f.err
}

func validateCredentials(email, password string) *vidvault.ValidationError {
	if !strings.Contains(email, "@") {
		return &vidvault.ValidationError{Field: "email", Message: msgEmailInvalid}
	}
	if len(password) < minPasswordLen {
		return &vidvault.ValidationError{Field: "password", Message: msgPasswordTooShort}
	}
	return nil
}
