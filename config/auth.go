package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the credential verifier used by the identity service.
type AuthMode string

const (
	// AuthModeLocal verifies passwords against the accounts table.
	AuthModeLocal AuthMode = "local"
	// AuthModeOIDC exchanges credentials with an external identity provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock uses a fixed list of dev users (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "local", "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: local, oidc, mock)", v)
	}
}

// OIDCConfig contains the identity provider settings used for the password grant.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"campus"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email groups"`
	DiscoveryURL string `env:"DISCOVERY_URL"`

	// GroupsClaim is a JMESPath expression over the token claims yielding the user's groups.
	GroupsClaim string `env:"GROUPS_CLAIM" envDefault:"groups || memberof || realm_access.roles"`

	// RoleClaim, when set, is a JMESPath expression yielding the role directly
	// and takes precedence over group mapping.
	RoleClaim string `env:"ROLE_CLAIM"`
}

// DevAuthConfig lists the accounts accepted when AUTH_MODE=mock.
type DevAuthConfig struct {
	// Users are "email:password[:role]" entries separated by ';'.
	Users []string `env:"USERS" envDefault:"admin@example.com:admin:admin;teacher@example.com:teacher:instructor;student@example.com:student:student" envSeparator:";"`
}

// SignInLimitConfig bounds sign-in attempts per client address.
type SignInLimitConfig struct {
	Requests int           `env:"REQUESTS" envDefault:"5"`
	Window   time.Duration `env:"WINDOW"   envDefault:"1m"`
	Burst    int           `env:"BURST"    envDefault:"5"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which credential verifier to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"local"`

	// SessionTTL is how long a session stays valid without refresh.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"12h"`

	// PasswordPepper is mixed into local password hashes. Changing it invalidates every stored hash.
	PasswordPepper string `env:"AUTH_PASSWORD_PEPPER"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// AdminGroup is the provider group whose members become admins.
	AdminGroup string `env:"ADMIN_GROUP" envDefault:"campus-admins"`

	// InstructorGroup is the provider group whose members become instructors.
	InstructorGroup string `env:"INSTRUCTOR_GROUP" envDefault:"campus-instructors"`

	// SignInLimit throttles POST /api/auth/sign-in.
	SignInLimit SignInLimitConfig `envPrefix:"AUTH_SIGNIN_LIMIT_"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.SessionTTL < time.Minute {
		a.SessionTTL = time.Minute
	}
	if a.SignInLimit.Requests < 1 {
		a.SignInLimit.Requests = 1
	}
	if a.SignInLimit.Window <= 0 {
		a.SignInLimit.Window = time.Minute
	}
	if a.SignInLimit.Burst < 1 {
		a.SignInLimit.Burst = a.SignInLimit.Requests
	}
	a.OIDC.DiscoveryURL = strings.TrimSpace(a.OIDC.DiscoveryURL)
}
