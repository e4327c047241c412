package devseed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/campus-portal/internal/adapters/devauth"
	"github.com/target/campus-portal/internal/data"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/domain/model"
	"github.com/target/campus-portal/internal/mocks"
	"github.com/target/campus-portal/internal/service"
	"go.uber.org/mock/gomock"
)

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "h:" + p, nil }

type seedFixture struct {
	accounts *mocks.MockAccountRepository
	profiles *mocks.MockProfileRepository
	content  *mocks.MockContentRepository
	svcs     Services
}

func newSeedFixture(t *testing.T) seedFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := seedFixture{
		accounts: mocks.NewMockAccountRepository(ctrl),
		profiles: mocks.NewMockProfileRepository(ctrl),
		content:  mocks.NewMockContentRepository(ctrl),
	}
	accounts, err := service.NewAccountService(service.AccountServiceOptions{
		Accounts: f.accounts,
		Profiles: f.profiles,
		Hasher:   plainHasher{},
	})
	require.NoError(t, err)
	f.svcs = Services{
		Accounts: accounts,
		Content:  service.NewContentService(service.ContentServiceOptions{Repo: f.content}),
	}
	return f
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultSections_AreValid(t *testing.T) {
	for name, payload := range DefaultSections() {
		req := &model.UpsertContentRequest{Section: name, Data: payload}
		req.Normalize()
		require.NoError(t, req.Validate(), name)
		assert.Equal(t, name, req.Section)
	}
}

func TestRun_SkipsExistingRows(t *testing.T) {
	f := newSeedFixture(t)
	users := []devauth.User{
		{Email: "admin@example.com", Password: "admin-password", Role: domainauth.RoleAdmin},
		{Email: "student@example.com", Password: "student-password", Role: domainauth.RoleStudent},
	}

	f.accounts.EXPECT().Create(gomock.Any(), "admin@example.com", "h:admin-password").Return(nil, data.ErrAccountExists)
	f.accounts.EXPECT().Create(gomock.Any(), "student@example.com", "h:student-password").
		Return(&model.Account{ID: "acct-2", Email: "student@example.com"}, nil)
	f.profiles.EXPECT().Ensure(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p domainauth.Profile) (*domainauth.Profile, error) {
			assert.Equal(t, "acct-2", p.UserID)
			return &p, nil
		})

	for name := range DefaultSections() {
		if name == model.SiteSettingsSection {
			f.content.EXPECT().Get(gomock.Any(), name).Return(&model.ContentSection{Section: name}, nil)
			continue
		}
		f.content.EXPECT().Get(gomock.Any(), name).Return(nil, data.ErrContentNotFound)
		f.content.EXPECT().Upsert(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req *model.UpsertContentRequest) (*model.ContentSection, error) {
				assert.Equal(t, seedActor, req.UpdatedBy)
				return &model.ContentSection{Section: req.Section, Data: req.Data}, nil
			})
	}

	require.NoError(t, Run(context.Background(), f.svcs, users, quietLogger()))
}

func TestRun_CountsFailures(t *testing.T) {
	f := newSeedFixture(t)
	users := []devauth.User{{Email: "admin@example.com", Password: "admin-password", Role: domainauth.RoleAdmin}}

	f.accounts.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
	f.content.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down")).Times(len(DefaultSections()))

	err := Run(context.Background(), f.svcs, users, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 seed errors")
}
