package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "oidc")
	t.Setenv("AUTH_SESSION_TTL", "2h")
	t.Setenv("AUTH_PASSWORD_PEPPER", "pepper")
	t.Setenv("ADMIN_GROUP", "cn=admins,ou=groups,dc=example,dc=org")
	t.Setenv("INSTRUCTOR_GROUP", "cn=staff,ou=groups,dc=example,dc=org")
	t.Setenv("OIDC_CLIENT_ID", "campus-client")
	t.Setenv("OIDC_CLIENT_SECRET", "super-secret")
	t.Setenv("OIDC_DISCOVERY_URL", "https://login.example.com/.well-known/openid-configuration")
	t.Setenv("OIDC_SCOPE", "openid profile email")
	t.Setenv("OIDC_ROLE_CLAIM", "campus.role")
	t.Setenv("DEV_AUTH_USERS", "a@example.com:pw:admin;b@example.com:pw")
	t.Setenv("AUTH_SIGNIN_LIMIT_REQUESTS", "10")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	expected := AuthConfig{
		Mode:           AuthModeOIDC,
		SessionTTL:     2 * time.Hour,
		PasswordPepper: "pepper",
		OIDC: OIDCConfig{
			ClientID:     "campus-client",
			ClientSecret: "super-secret",
			Scope:        "openid profile email",
			DiscoveryURL: "https://login.example.com/.well-known/openid-configuration",
			GroupsClaim:  "groups || memberof || realm_access.roles",
			RoleClaim:    "campus.role",
		},
		DevAuth: DevAuthConfig{
			Users: []string{"a@example.com:pw:admin", "b@example.com:pw"},
		},
		AdminGroup:      "cn=admins,ou=groups,dc=example,dc=org",
		InstructorGroup: "cn=staff,ou=groups,dc=example,dc=org",
		SignInLimit:     SignInLimitConfig{Requests: 10, Window: time.Minute, Burst: 5},
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModeLocal {
		t.Errorf("expected local auth by default, got %q", cfg.Auth.Mode)
	}
	if cfg.Postgres.Name != "campus" || !cfg.Postgres.RunMigrationsOnStart {
		t.Errorf("unexpected database defaults: %+v", cfg.Postgres)
	}
	if cfg.Storage.Enabled() {
		t.Errorf("storage must be disabled without a bucket")
	}
	if got := cfg.Storage.AllowedTypes; !reflect.DeepEqual(got, []string{"image/*", "application/pdf"}) {
		t.Errorf("unexpected allowed types %v", got)
	}
	if cfg.Storage.MaxUploadBytes != 10<<20 {
		t.Errorf("unexpected max upload bytes %d", cfg.Storage.MaxUploadBytes)
	}
	if cfg.HTTP.EventsHeartbeat != 25*time.Second {
		t.Errorf("unexpected heartbeat %s", cfg.HTTP.EventsHeartbeat)
	}
	if !strings.HasSuffix(cfg.Client.TokenFile, "session.json") {
		t.Errorf("expected a default token file, got %q", cfg.Client.TokenFile)
	}
}

func TestAuthMode_UnmarshalText(t *testing.T) {
	var m AuthMode
	if err := m.UnmarshalText([]byte(" OIDC ")); err != nil || m != AuthModeOIDC {
		t.Fatalf("expected oidc, got %q err=%v", m, err)
	}
	if err := m.UnmarshalText([]byte("oauth")); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestAuthConfig_Sanitize(t *testing.T) {
	cfg := AuthConfig{
		SessionTTL:  time.Second,
		SignInLimit: SignInLimitConfig{Requests: 0, Window: 0, Burst: 0},
		OIDC:        OIDCConfig{DiscoveryURL: "  https://idp.example.com  "},
	}
	cfg.Sanitize()

	if cfg.SessionTTL != time.Minute {
		t.Errorf("expected TTL floor of one minute, got %s", cfg.SessionTTL)
	}
	if cfg.SignInLimit != (SignInLimitConfig{Requests: 1, Window: time.Minute, Burst: 1}) {
		t.Errorf("unexpected sign-in limit %+v", cfg.SignInLimit)
	}
	if cfg.OIDC.DiscoveryURL != "https://idp.example.com" {
		t.Errorf("expected trimmed discovery URL, got %q", cfg.OIDC.DiscoveryURL)
	}
}

func TestStorageConfig_Sanitize(t *testing.T) {
	cfg := StorageConfig{
		Bucket:        " uploads ",
		PublicBaseURL: "https://cdn.example.com/ ",
		AllowedTypes:  []string{" Image/PNG ", "", "application/pdf"},
	}
	cfg.Sanitize()

	if !cfg.Enabled() || cfg.Bucket != "uploads" {
		t.Fatalf("expected trimmed bucket, got %q", cfg.Bucket)
	}
	if cfg.PublicBaseURL != "https://cdn.example.com" {
		t.Errorf("unexpected base URL %q", cfg.PublicBaseURL)
	}
	if !reflect.DeepEqual(cfg.AllowedTypes, []string{"image/png", "application/pdf"}) {
		t.Errorf("unexpected allowed types %v", cfg.AllowedTypes)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("expected default max bytes, got %d", cfg.MaxUploadBytes)
	}
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	cfg := HTTPConfig{CompressionLevel: 12}
	cfg.Sanitize()
	if cfg.CompressionLevel != 9 {
		t.Errorf("expected level clamped to 9, got %d", cfg.CompressionLevel)
	}
	if cfg.EventsHeartbeat != time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("unexpected durations %+v", cfg)
	}

	cfg = HTTPConfig{CompressionLevel: 0}
	cfg.Sanitize()
	if cfg.CompressionLevel != 1 {
		t.Errorf("expected level clamped to 1, got %d", cfg.CompressionLevel)
	}
}

func TestClientConfig_Sanitize(t *testing.T) {
	cfg := ClientConfig{BaseURL: " http://campus.test/ ", TokenFile: "/tmp/tok.json"}
	cfg.Sanitize()
	if cfg.BaseURL != "http://campus.test" {
		t.Errorf("unexpected base URL %q", cfg.BaseURL)
	}
	if cfg.TokenFile != "/tmp/tok.json" || cfg.Timeout != 10*time.Second {
		t.Errorf("unexpected client config %+v", cfg)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}
