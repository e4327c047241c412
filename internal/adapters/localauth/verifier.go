package localauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/target/campus-portal/internal/core"
	"github.com/target/campus-portal/internal/data"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/ports"
)

// VerifierOptions wires a Verifier.
type VerifierOptions struct {
	Accounts core.AccountRepository
	Profiles core.ProfileRepository
	Hasher   *Hasher
	Logger   *slog.Logger
}

// Verifier implements ports.CredentialVerifier using the accounts table.
type Verifier struct {
	accounts core.AccountRepository
	profiles core.ProfileRepository
	hasher   *Hasher
	logger   *slog.Logger

	dummyOnce sync.Once
	dummy     string
}

var _ ports.CredentialVerifier = (*Verifier)(nil)

// NewVerifier constructs a Verifier.
func NewVerifier(opts VerifierOptions) (*Verifier, error) {
	if opts.Accounts == nil {
		return nil, errors.New("accounts repository is required")
	}
	if opts.Hasher == nil {
		opts.Hasher = NewHasher("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		accounts: opts.Accounts,
		profiles: opts.Profiles,
		hasher:   opts.Hasher,
		logger:   logger.With("component", "localauth"),
	}, nil
}

// Verify checks email/password. Unknown emails and wrong passwords both yield
// domainauth.ErrInvalidCredentials after comparable work.
func (v *Verifier) Verify(ctx context.Context, email, password string) (domainauth.Identity, error) {
	acct, err := v.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, data.ErrAccountNotFound) {
			_ = v.hasher.Verify(password, v.dummyHash())
			return domainauth.Identity{}, domainauth.ErrInvalidCredentials
		}
		return domainauth.Identity{}, fmt.Errorf("load account: %w", err)
	}

	if err := v.hasher.Verify(password, acct.PasswordHash); err != nil {
		if !errors.Is(err, ErrMismatch) {
			v.logger.WarnContext(ctx, "stored password hash is unreadable", "account_id", acct.ID, "error", err)
		}
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}

	id := domainauth.Identity{UserID: acct.ID, Email: acct.Email}
	if v.profiles != nil {
		p, err := v.profiles.GetByUserID(ctx, acct.ID)
		switch {
		case err == nil:
			id.FirstName, id.LastName, id.Role = p.FirstName, p.LastName, p.Role
		case errors.Is(err, domainauth.ErrProfileNotFound):
		default:
			return domainauth.Identity{}, fmt.Errorf("load profile: %w", err)
		}
	}
	return id, nil
}

func (v *Verifier) dummyHash() string {
	v.dummyOnce.Do(func() {
		h, err := v.hasher.Hash("campus-dummy-password")
		if err != nil {
			h = "$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
		}
		v.dummy = h
	})
	return v.dummy
}
