package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/campus-portal/config"
	"github.com/target/campus-portal/internal/adapters/authroles"
	"github.com/target/campus-portal/internal/adapters/devauth"
	"github.com/target/campus-portal/internal/adapters/localauth"
	"github.com/target/campus-portal/internal/adapters/oidc"
	"github.com/target/campus-portal/internal/core"
	"github.com/target/campus-portal/internal/data"
	"github.com/target/campus-portal/internal/ports"
)

// VerifierConfig contains what BuildCredentialVerifier needs for every auth mode.
type VerifierConfig struct {
	Auth     config.AuthConfig
	DB       *sql.DB
	Profiles core.ProfileRepository
	Logger   *slog.Logger
}

// BuildCredentialVerifier selects the credential verifier for the configured auth mode.
//
//nolint:ireturn // the mode decides the concrete verifier.
func BuildCredentialVerifier(ctx context.Context, cfg VerifierConfig) (ports.CredentialVerifier, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Mode {
	case config.AuthModeLocal, "":
		if cfg.DB == nil {
			return nil, errors.New("local auth requires a database")
		}
		v, err := localauth.NewVerifier(localauth.VerifierOptions{
			Accounts: data.NewAccountRepo(cfg.DB),
			Profiles: cfg.Profiles,
			Hasher:   localauth.NewHasher(cfg.Auth.PasswordPepper),
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create local verifier: %w", err)
		}
		return v, nil

	case config.AuthModeMock:
		users, err := devauth.ParseUsers(cfg.Auth.DevAuth.Users)
		if err != nil {
			return nil, fmt.Errorf("parse dev users: %w", err)
		}
		prov, err := devauth.NewProvider(devauth.Config{Users: users, SessionDuration: cfg.Auth.SessionTTL})
		if err != nil {
			return nil, fmt.Errorf("create dev provider: %w", err)
		}
		logger.WarnContext(ctx, "mock auth enabled; do not use in production", "users", len(users))
		return prov, nil

	case config.AuthModeOIDC:
		o := cfg.Auth.OIDC
		if o.DiscoveryURL == "" || o.ClientID == "" {
			return nil, fmt.Errorf("oidc auth requires OIDC_DISCOVERY_URL and OIDC_CLIENT_ID (discovery_url_empty=%t client_id_empty=%t)",
				o.DiscoveryURL == "", o.ClientID == "")
		}
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:         o.ClientID,
			ClientSecret:     o.ClientSecret,
			Scope:            o.Scope,
			DiscoveryURL:     o.DiscoveryURL,
			GroupsExpression: o.GroupsClaim,
			RoleExpression:   o.RoleClaim,
		})
		if err != nil {
			return nil, fmt.Errorf("create oidc provider: %w", err)
		}
		return prov, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

// RoleMapper maps provider groups using the configured admin and instructor groups.
func RoleMapper(cfg config.AuthConfig) authroles.StaticRoleMapper {
	return authroles.StaticRoleMapper{
		AdminGroup:      cfg.AdminGroup,
		InstructorGroup: cfg.InstructorGroup,
	}
}
