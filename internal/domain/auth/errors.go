package auth

import "errors"

var (
	// ErrInvalidCredentials is returned by credential verifiers when an email/password pair is rejected.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountSuspended is returned when a suspended profile attempts to sign in.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrSessionNotFound is returned when a session id is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrProfileNotFound is returned when no profile exists for a subject.
	ErrProfileNotFound = errors.New("profile not found")
)
