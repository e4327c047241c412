package auth

// Package auth contains domain-level types for identities, sessions and profiles.
// It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and JSON.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return r, nil
	default:
		return "", fmt.Errorf("invalid role %q (valid options: admin, instructor, student)", s)
	}
}

// Level orders roles for hierarchical checks: student < instructor < admin.
// Unknown roles report -1.
func (r Role) Level() int {
	switch r {
	case RoleStudent:
		return 0
	case RoleInstructor:
		return 1
	case RoleAdmin:
		return 2
	default:
		return -1
	}
}

// Status is the account standing of a profile.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusActive, StatusInactive, StatusSuspended:
		return st, nil
	default:
		return "", fmt.Errorf("invalid status %q (valid options: active, inactive, suspended)", s)
	}
}

// Identity represents a principal whose credentials were verified.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID    string // stable subject identifier
	FirstName string
	LastName  string
	Email     string
	Groups    []string
	// Role is set by providers that know the role directly; empty means "derive from Groups".
	Role      Role
	ExpiresAt time.Time // absolute expiry from the IdP, zero when the provider has none
}

// Session is the server-side record we persist for an authenticated user.
// ID is the opaque session token handed to clients.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool { return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt) }

// Profile is the application-level record keyed by the session subject.
type Profile struct {
	UserID       string    `json:"user_id"       db:"user_id"`
	FirstName    string    `json:"first_name"    db:"first_name"`
	LastName     string    `json:"last_name"     db:"last_name"`
	Email        string    `json:"email"         db:"email"`
	Phone        string    `json:"phone"         db:"phone"`
	Role         Role      `json:"role"          db:"role"`
	Status       Status    `json:"status"        db:"status"`
	AvatarURL    *string   `json:"avatar_url"    db:"avatar_url"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

// DisplayName joins first and last name, falling back to the email.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Email
	}
	return name
}

// ProfilePatch carries a partial profile update. Nil fields are left unchanged.
type ProfilePatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Role      *Role   `json:"role,omitempty"`
	Status    *Status `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil &&
		p.AvatarURL == nil && p.Role == nil && p.Status == nil
}

// TouchesPrivileged reports whether the patch changes role or status.
func (p ProfilePatch) TouchesPrivileged() bool { return p.Role != nil || p.Status != nil }

// Apply returns a copy of profile with the patch merged in.
func (p ProfilePatch) Apply(profile Profile) Profile {
	if p.FirstName != nil {
		profile.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		profile.LastName = *p.LastName
	}
	if p.Phone != nil {
		profile.Phone = *p.Phone
	}
	if p.AvatarURL != nil {
		v := *p.AvatarURL
		profile.AvatarURL = &v
	}
	if p.Role != nil {
		profile.Role = *p.Role
	}
	if p.Status != nil {
		profile.Status = *p.Status
	}
	return profile
}
