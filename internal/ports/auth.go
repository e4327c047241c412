package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

// CredentialVerifier checks an email/password pair against an identity source.
// Implementations return ErrInvalidCredentials when the pair is rejected.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (domainauth.Identity, error)
}

// SessionStore persists and retrieves user sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// SessionNotifier fans session changes out to every listener of a subject.
type SessionNotifier interface {
	Publish(ctx context.Context, change domainauth.SessionChange) error
	Subscribe(ctx context.Context, userID string) (SessionSubscription, error)
}

// SessionSubscription is a cancellable stream of session changes.
// Changes is closed after Close returns or the producer goes away.
type SessionSubscription interface {
	Changes() <-chan domainauth.SessionChange
	Close() error
}

// RoleMapper maps provider groups to application roles.
type RoleMapper interface {
	Map(groups []string) domainauth.Role
}
