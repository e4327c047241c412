package devauth

// Package devauth provides a config-driven credential verifier for local development.

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/ports"
)

// User is one development account.
type User struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domainauth.Role
}

// Config controls the dev verifier.
type Config struct {
	Users           []User
	SessionDuration time.Duration // default 8h when zero
}

// Provider implements ports.CredentialVerifier for local development.
// Every user's subject id is "dev-" plus the local part of their email.
type Provider struct {
	users           map[string]User
	sessionDuration time.Duration
	now             func() time.Time
}

var _ ports.CredentialVerifier = (*Provider)(nil)

// NewProvider constructs a dev verifier from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if len(cfg.Users) == 0 {
		return nil, errors.New("dev auth: at least one user is required")
	}
	users := make(map[string]User, len(cfg.Users))
	for _, u := range cfg.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("dev auth: invalid email %q", u.Email)
		}
		if u.Password == "" {
			return nil, fmt.Errorf("dev auth: password is required for %s", email)
		}
		if u.Role == "" {
			u.Role = domainauth.RoleStudent
		}
		if u.Role.Level() < 0 {
			return nil, fmt.Errorf("dev auth: invalid role %q for %s", u.Role, email)
		}
		u.Email = email
		users[email] = u
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	return &Provider{users: users, sessionDuration: dur, now: time.Now}, nil
}

// ParseUsers parses "email:password:role" entries, for example from DEV_AUTH_USERS.
func ParseUsers(entries []string) ([]User, error) {
	out := make([]User, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		parts := strings.Split(e, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("dev auth: entry %q must be email:password[:role]", e)
		}
		u := User{Email: parts[0], Password: parts[1]}
		if len(parts) == 3 {
			role, err := domainauth.ParseRole(parts[2])
			if err != nil {
				return nil, err
			}
			u.Role = role
		}
		out = append(out, u)
	}
	return out, nil
}

// Verify returns the configured identity for a matching email/password pair.
func (p *Provider) Verify(_ context.Context, email, password string) (domainauth.Identity, error) {
	u, ok := p.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok || subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return domainauth.Identity{
		UserID:    "dev-" + local,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
		ExpiresAt: p.now().Add(p.sessionDuration),
	}, nil
}
