package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/target/campus-portal/internal/adapters/devauth"
	"github.com/target/campus-portal/internal/adapters/localauth"
	"github.com/target/campus-portal/internal/data"
	"github.com/target/campus-portal/internal/domain/model"
	apperrors "github.com/target/campus-portal/internal/errors"
	"github.com/target/campus-portal/internal/service"
)

// seedActor is recorded as updated_by on seeded content.
const seedActor = "devseed"

// Services bundles the dependencies needed for development seeding.
type Services struct {
	Accounts *service.AccountService
	Content  *service.ContentService
}

// NewServices constructs all required services for seeding using the provided DB.
func NewServices(db *sql.DB, pepper string) (Services, error) {
	accounts, err := service.NewAccountService(service.AccountServiceOptions{
		Accounts: data.NewAccountRepo(db),
		Profiles: data.NewProfileRepo(db),
		Hasher:   localauth.NewHasher(pepper),
	})
	if err != nil {
		return Services{}, err
	}
	return Services{
		Accounts: accounts,
		Content:  service.NewContentService(service.ContentServiceOptions{Repo: data.NewContentRepo(db)}),
	}, nil
}

// Run creates the given users and the default content sections. Existing rows are left alone.
func Run(ctx context.Context, svcs Services, users []devauth.User, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	failures := 0
	failures += seedAccounts(ctx, svcs.Accounts, users, logger)
	failures += seedContent(ctx, svcs.Content, logger)
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedAccounts(ctx context.Context, svc *service.AccountService, users []devauth.User, logger *slog.Logger) int {
	failures := 0
	for _, u := range users {
		_, err := svc.Create(ctx, model.CreateAccountRequest{
			Email:     u.Email,
			Password:  u.Password,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      u.Role,
		})
		switch {
		case err == nil:
			logger.InfoContext(ctx, "created account", "email", u.Email, "role", string(u.Role))
		case apperrors.GetCode(err) == apperrors.ErrCodeConflict:
			logger.InfoContext(ctx, "account already exists", "email", u.Email)
		default:
			logger.ErrorContext(ctx, "failed to create account", "email", u.Email, "error", err)
			failures++
		}
	}
	return failures
}

// DefaultSections returns the content created on an empty database.
func DefaultSections() map[string]map[string]any {
	return map[string]map[string]any{
		"hero": {
			"title":    "Learn to build software",
			"subtitle": "Hands-on courses taught by working engineers.",
			"cta":      "Browse courses",
		},
		"about": {
			"body": "Campus is a small school focused on practical programming skills.",
		},
		model.SiteSettingsSection: {
			"site_name":        "Campus",
			model.LogoURLField: "",
		},
	}
}

func seedContent(ctx context.Context, svc *service.ContentService, logger *slog.Logger) int {
	failures := 0
	for section, payload := range DefaultSections() {
		_, err := svc.Get(ctx, section)
		if err == nil {
			logger.InfoContext(ctx, "content section already exists", "section", section)
			continue
		}
		if apperrors.GetCode(err) != apperrors.ErrCodeNotFound {
			logger.ErrorContext(ctx, "failed to read content section", "section", section, "error", err)
			failures++
			continue
		}
		if _, err := svc.Upsert(ctx, seedActor, section, payload); err != nil {
			logger.ErrorContext(ctx, "failed to seed content section", "section", section, "error", err)
			failures++
			continue
		}
		logger.InfoContext(ctx, "seeded content section", "section", section)
	}
	return failures
}
