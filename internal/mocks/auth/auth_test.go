package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

func TestMockCredentialVerifier_Defaults(t *testing.T) {
	verifier := NewMockCredentialVerifier()
	ctx := context.Background()

	identity, err := verifier.Verify(ctx, " Mock.User@example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", identity.UserID)
	assert.Equal(t, domainauth.RoleStudent, identity.Role)
	assert.True(t, identity.ExpiresAt.After(time.Now()))

	_, err = verifier.Verify(ctx, "mock.user@example.com", "wrong")
	require.ErrorIs(t, err, domainauth.ErrInvalidCredentials)

	_, err = verifier.Verify(ctx, "nobody@example.com", "password123")
	require.ErrorIs(t, err, domainauth.ErrInvalidCredentials)
}

func TestMockCredentialVerifier_CustomFunc(t *testing.T) {
	verifier := &MockCredentialVerifier{
		VerifyFunc: func(_ context.Context, email, _ string) (domainauth.Identity, error) {
			return domainauth.Identity{UserID: "func-user", Email: email}, nil
		},
	}

	identity, err := verifier.Verify(context.Background(), "func@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "func-user", identity.UserID)
	assert.Equal(t, "func@example.com", identity.Email)
}

func TestStaticRoleMapper(t *testing.T) {
	mapper := StaticRoleMapper{AdminGroup: "admins", InstructorGroup: "faculty"}

	assert.Equal(t, domainauth.RoleAdmin, mapper.Map([]string{"faculty", "admins"}))
	assert.Equal(t, domainauth.RoleInstructor, mapper.Map([]string{"faculty"}))
	assert.Equal(t, domainauth.RoleStudent, mapper.Map([]string{"other"}))
	assert.Equal(t, domainauth.RoleStudent, mapper.Map(nil))
	assert.Equal(t, domainauth.RoleStudent, StaticRoleMapper{}.Map([]string{"admins"}))
}

func TestMemorySessionStore_SaveGetDelete(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	session := domainauth.Session{
		ID:        "test-session-1",
		UserID:    "user-123",
		Email:     "user@example.com",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, store.Save(ctx, session))
	assert.Equal(t, 1, store.Len())

	retrieved, err := store.Get(ctx, "test-session-1")
	require.NoError(t, err)
	assert.Equal(t, session.UserID, retrieved.UserID)
	assert.Equal(t, session.Email, retrieved.Email)
	assert.WithinDuration(t, session.ExpiresAt, retrieved.ExpiresAt, time.Second)

	require.NoError(t, store.Delete(ctx, "test-session-1"))
	_, err = store.Get(ctx, "test-session-1")
	require.ErrorIs(t, err, domainauth.ErrSessionNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemorySessionStore_EmptyIDs(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "")
	assert.Equal(t, ErrNotFound, err)

	err = store.Save(ctx, domainauth.Session{UserID: "user-123"})
	require.Error(t, err)

	assert.NoError(t, store.Delete(ctx, ""))
}

func TestMemoryNotifier_DeliversToSubscribersOfUser(t *testing.T) {
	notifier := NewMemoryNotifier()
	ctx := context.Background()

	mine, err := notifier.Subscribe(ctx, "u1")
	require.NoError(t, err)
	other, err := notifier.Subscribe(ctx, "u2")
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, notifier.Publish(ctx, domainauth.SessionChange{Event: domainauth.EventUserUpdated, UserID: "u1"}))

	select {
	case change := <-mine.Changes():
		assert.Equal(t, domainauth.EventUserUpdated, change.Event)
	case <-time.After(time.Second):
		t.Fatal("expected a change for u1")
	}
	select {
	case change := <-other.Changes():
		t.Fatalf("unexpected change for u2: %+v", change)
	default:
	}

	require.NoError(t, mine.Close())
	require.NoError(t, mine.Close(), "close is idempotent")
	_, open := <-mine.Changes()
	assert.False(t, open)
	require.NoError(t, notifier.Publish(ctx, domainauth.SessionChange{Event: domainauth.EventSignedOut, UserID: "u1"}))
}

func TestFakeBackend_SignInProfileRoundTrip(t *testing.T) {
	backend := NewFakeBackend()
	backend.AddUser("ada@example.com", domainauth.Profile{UserID: "u1", Email: "ada@example.com", Role: domainauth.RoleAdmin})
	ctx := context.Background()

	_, err := backend.SignInWithCredentials(ctx, "nobody@example.com", "pw")
	require.ErrorIs(t, err, domainauth.ErrInvalidCredentials)

	sess, err := backend.SignInWithCredentials(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)

	current, err := backend.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, sess.ID, current.ID)

	first := "Ada"
	updated, err := backend.UpdateProfile(ctx, "u1", domainauth.ProfilePatch{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "Ada", backend.StoredProfile("u1").FirstName)

	_, err = backend.UpdateProfile(ctx, "missing", domainauth.ProfilePatch{FirstName: &first})
	require.ErrorIs(t, err, domainauth.ErrProfileNotFound)

	require.NoError(t, backend.SignOut(ctx))
	current, err = backend.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	assert.Equal(t, 2, backend.Calls("SignIn"))
	assert.Equal(t, 2, backend.Calls("UpdateProfile"))
}

func TestFakeBackend_OverridesAndEmit(t *testing.T) {
	backend := NewFakeBackend()
	boom := errors.New("boom")
	backend.GetProfileFunc = func(context.Context, string) (*domainauth.Profile, error) { return nil, boom }

	_, err := backend.GetProfile(context.Background(), "u1")
	require.ErrorIs(t, err, boom)

	sub, err := backend.SubscribeSessionChanges(context.Background())
	require.NoError(t, err)
	backend.Emit(domainauth.SessionChange{Event: domainauth.EventSignedOut})
	change := <-sub.Changes()
	assert.Equal(t, domainauth.EventSignedOut, change.Event)

	require.NoError(t, sub.Close())
	assert.NotPanics(t, func() { backend.Emit(domainauth.SessionChange{Event: domainauth.EventSignedOut}) })
}
