package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/campus-portal/internal/core"
	"github.com/target/campus-portal/internal/data"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/domain/model"
	apperrors "github.com/target/campus-portal/internal/errors"
)

// PasswordHasher turns a plaintext password into a stored hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// AccountServiceOptions groups dependencies for AccountService.
type AccountServiceOptions struct {
	Accounts core.AccountRepository
	Profiles core.ProfileRepository
	Hasher   PasswordHasher
	Logger   *slog.Logger
}

// AccountService provisions local credentials together with their profile.
type AccountService struct {
	accounts core.AccountRepository
	profiles core.ProfileRepository
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewAccountService constructs a new AccountService.
func NewAccountService(opts AccountServiceOptions) (*AccountService, error) {
	if opts.Accounts == nil {
		return nil, errors.New("AccountRepository is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("ProfileRepository is required")
	}
	if opts.Hasher == nil {
		return nil, errors.New("PasswordHasher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		accounts: opts.Accounts,
		profiles: opts.Profiles,
		hasher:   opts.Hasher,
		logger:   logger.With("component", "account_service"),
	}, nil
}

// Create stores credentials for req.Email and ensures the matching profile.
// An existing profile for the new account keeps its stored role and status.
func (s *AccountService) Create(ctx context.Context, req model.CreateAccountRequest) (*domainauth.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acct, err := s.accounts.Create(ctx, req.Email, hash)
	if err != nil {
		if errors.Is(err, data.ErrAccountExists) {
			return nil, apperrors.Conflict("an account with this email already exists")
		}
		return nil, err
	}
	profile, err := s.profiles.Ensure(ctx, domainauth.Profile{
		UserID:    acct.ID,
		Email:     acct.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		Status:    domainauth.StatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure profile for %s: %w", acct.Email, err)
	}
	s.logger.InfoContext(ctx, "account created", "user_id", acct.ID, "role", string(profile.Role))
	return profile, nil
}

// ResetPassword replaces the stored hash for email.
func (s *AccountService) ResetPassword(ctx context.Context, email, password string) error {
	if len(password) < 8 {
		return apperrors.Validation("password must be at least 8 characters")
	}
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, data.ErrAccountNotFound) {
			return apperrors.NotFoundf("no account for %s", model.NormalizeEmail(email))
		}
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.InfoContext(ctx, "password reset", "user_id", acct.ID)
	return nil
}
