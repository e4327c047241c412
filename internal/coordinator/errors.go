package coordinator

import (
	"errors"
	"fmt"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

// Sentinel kinds reported by coordinator commands. Match with errors.Is.
var (
	// ErrCredentials reports a rejected or failed sign-in.
	ErrCredentials = errors.New("sign-in failed")
	// ErrProfileFetch reports a valid session whose profile could not be loaded.
	ErrProfileFetch = errors.New("profile unavailable")
	// ErrUpdate reports a rejected profile write.
	ErrUpdate = errors.New("profile update failed")
	// ErrNoSession reports a command that needs a signed-in session.
	ErrNoSession = errors.New("no active session")
	// ErrSuperseded reports a command whose result lost to a newer session change.
	ErrSuperseded = errors.New("superseded by a newer session change")
)

// Error pairs a sentinel kind with the backend failure that caused it.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind, cause error) error { return &Error{Kind: kind, Err: cause} }

// ProgrammingError is raised (as a panic) when the coordinator is used outside the
// scope it was provisioned for. It signals a wiring bug, not a runtime condition.
type ProgrammingError struct {
	Op     string
	Reason string
}

func (e *ProgrammingError) Error() string {
	return fmt.Sprintf("coordinator: %s: %s", e.Op, e.Reason)
}

func misuse(op, reason string) {
	panic(&ProgrammingError{Op: op, Reason: reason})
}

// UserMessage returns a short message suitable for inline display.
// Provider internals are never included.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, domainauth.ErrAccountSuspended):
		return "This account is suspended."
	case errors.Is(err, ErrCredentials):
		return "Sign-in failed. Please try again."
	case errors.Is(err, ErrProfileFetch):
		return "Signed in, but your profile could not be loaded."
	case errors.Is(err, ErrNoSession):
		return "Please sign in first."
	case errors.Is(err, ErrUpdate):
		return "Your changes could not be saved."
	case errors.Is(err, ErrSuperseded):
		return "Your session changed while this request was running."
	default:
		return "Something went wrong."
	}
}
