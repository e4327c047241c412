package httpx

import (
	"context"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

// sessionKey and actorKey are unexported context key types to avoid collisions across packages.
type (
	sessionKey struct{}
	actorKey   struct{}
)

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetUserSessionFromContext returns the user session from context and a boolean indicating presence.
func GetUserSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	if session, ok := ctx.Value(sessionKey{}).(*domainauth.Session); ok && session != nil {
		return session, true
	}
	return nil, false
}

// SetActorInContext stores the profile of the authenticated caller.
func SetActorInContext(ctx context.Context, actor *domainauth.Profile) context.Context {
	if actor == nil {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActorFromContext returns the caller's profile when a role guard resolved it.
func GetActorFromContext(ctx context.Context) (*domainauth.Profile, bool) {
	if actor, ok := ctx.Value(actorKey{}).(*domainauth.Profile); ok && actor != nil {
		return actor, true
	}
	return nil, false
}
