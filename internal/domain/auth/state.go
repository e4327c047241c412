package auth

// SessionEvent names a transition reported by the session-change channel.
type SessionEvent string

const (
	EventInitialSession SessionEvent = "initial_session"
	EventSignedIn       SessionEvent = "signed_in"
	EventSignedOut      SessionEvent = "signed_out"
	EventTokenRefreshed SessionEvent = "token_refreshed"
	EventUserUpdated    SessionEvent = "user_updated"
)

// SessionChange is a single notification from the session store.
// Session is nil when the change leaves the subscriber signed out.
type SessionChange struct {
	Event   SessionEvent `json:"event"`
	UserID  string       `json:"user_id,omitempty"`
	Session *Session     `json:"session,omitempty"`
}

// AuthState is the in-process view of who is signed in.
//
// Loading is the only state in which Session and Profile may be stale.
// Session present with Profile nil is a valid resolved state meaning "role unknown".
type AuthState struct {
	Session *Session
	Profile *Profile
	Loading bool
	// Version increases on every publish; readers drop snapshots that are not newer.
	Version uint64
	// Err records the last resolution failure (for example an initialize timeout).
	Err error
}

// SignedIn reports whether a session is present.
func (s AuthState) SignedIn() bool { return s.Session != nil }

// Role returns the profile role or "" when unknown.
func (s AuthState) Role() Role {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}
