package ports

import (
	"context"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

// SessionBackend is the capability interface the client-side coordinator consumes.
// It bundles the identity provider and the profile repository as seen from a client.
//
// CurrentSession and GetProfile return (nil, nil) when the value is definitively absent.
type SessionBackend interface {
	SignInWithCredentials(ctx context.Context, email, password string) (*domainauth.Session, error)
	SignOut(ctx context.Context) error
	CurrentSession(ctx context.Context) (*domainauth.Session, error)
	SubscribeSessionChanges(ctx context.Context) (SessionSubscription, error)
	GetProfile(ctx context.Context, userID string) (*domainauth.Profile, error)
	UpdateProfile(ctx context.Context, userID string, patch domainauth.ProfilePatch) (*domainauth.Profile, error)
}
