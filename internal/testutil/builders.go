// Package testutil provides testing utilities and helpers for the campus portal.
package testutil

import (
	"time"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/domain/model"
)

// ProfileBuilder provides a fluent interface for building Profile values for testing.
type ProfileBuilder struct {
	p domainauth.Profile
}

// NewProfile creates a ProfileBuilder for an active student.
func NewProfile(userID string) *ProfileBuilder {
	return &ProfileBuilder{p: domainauth.Profile{
		UserID:       userID,
		FirstName:    "Test",
		LastName:     "User",
		Email:        userID + "@example.com",
		Role:         domainauth.RoleStudent,
		Status:       domainauth.StatusActive,
		RegisteredAt: TestTime(),
		UpdatedAt:    TestTime(),
	}}
}

// WithRole sets the role.
func (b *ProfileBuilder) WithRole(role domainauth.Role) *ProfileBuilder {
	b.p.Role = role
	return b
}

// WithStatus sets the status.
func (b *ProfileBuilder) WithStatus(status domainauth.Status) *ProfileBuilder {
	b.p.Status = status
	return b
}

// WithName sets first and last name.
func (b *ProfileBuilder) WithName(first, last string) *ProfileBuilder {
	b.p.FirstName, b.p.LastName = first, last
	return b
}

// Build returns the profile.
func (b *ProfileBuilder) Build() domainauth.Profile { return b.p }

// NewSession returns a session for userID issued at now and valid for ttl.
func NewSession(id, userID string, now time.Time, ttl time.Duration) domainauth.Session {
	return domainauth.Session{
		ID:        id,
		UserID:    userID,
		Email:     userID + "@example.com",
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// NewContentRequest builds an upsert request for section.
func NewContentRequest(section string, data map[string]any) *model.UpsertContentRequest {
	return &model.UpsertContentRequest{Section: section, Data: data}
}
