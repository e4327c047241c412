package httpx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

func TestSessionAndActorContext(t *testing.T) {
	ctx := context.Background()
	_, ok := GetUserSessionFromContext(ctx)
	assert.False(t, ok)
	_, ok = GetActorFromContext(ctx)
	assert.False(t, ok)

	assert.Equal(t, ctx, SetSessionInContext(ctx, nil), "nil session leaves ctx unchanged")

	sess := &domainauth.Session{ID: "abc", UserID: "u1"}
	actor := &domainauth.Profile{UserID: "u1", Role: domainauth.RoleInstructor}
	ctx = SetActorInContext(SetSessionInContext(ctx, sess), actor)

	gotSess, ok := GetUserSessionFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, sess, gotSess)
	gotActor, ok := GetActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, actor, gotActor)
}
