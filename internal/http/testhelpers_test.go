package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/target/campus-portal/internal/core"
	"github.com/target/campus-portal/internal/data"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/domain/model"
	mockauth "github.com/target/campus-portal/internal/mocks/auth"
	"github.com/target/campus-portal/internal/service"
)

const testPassword = "password123"

// memProfiles is an in-memory core.ProfileRepository.
type memProfiles struct {
	mu   sync.Mutex
	rows map[string]domainauth.Profile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{rows: make(map[string]domainauth.Profile)}
}

func (m *memProfiles) put(p domainauth.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.UserID] = p
}

func (m *memProfiles) GetByUserID(_ context.Context, userID string) (*domainauth.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID]
	if !ok {
		return nil, domainauth.ErrProfileNotFound
	}
	return &p, nil
}

func (m *memProfiles) GetByEmail(_ context.Context, email string) (*domainauth.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if strings.EqualFold(p.Email, email) {
			return &p, nil
		}
	}
	return nil, domainauth.ErrProfileNotFound
}

func (m *memProfiles) Ensure(_ context.Context, profile domainauth.Profile) (*domainauth.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[profile.UserID]; ok {
		return &p, nil
	}
	profile.RegisteredAt = time.Now()
	profile.UpdatedAt = profile.RegisteredAt
	m.rows[profile.UserID] = profile
	return &profile, nil
}

func (m *memProfiles) Update(_ context.Context, userID string, patch domainauth.ProfilePatch) (*domainauth.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID]
	if !ok {
		return nil, domainauth.ErrProfileNotFound
	}
	p = patch.Apply(p)
	p.UpdatedAt = time.Now()
	m.rows[userID] = p
	return &p, nil
}

func (m *memProfiles) List(_ context.Context, opts model.ProfileListOptions) ([]*domainauth.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domainauth.Profile
	for _, p := range m.rows {
		if opts.Role != "" && p.Role != opts.Role {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		if opts.Search != "" && !strings.Contains(strings.ToLower(p.Email), strings.ToLower(opts.Search)) {
			continue
		}
		cp := p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memProfiles) CountByRole(_ context.Context) (map[domainauth.Role]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domainauth.Role]int)
	for _, p := range m.rows {
		out[p.Role]++
	}
	return out, nil
}

func (m *memProfiles) CountByStatus(_ context.Context) (map[domainauth.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domainauth.Status]int)
	for _, p := range m.rows {
		out[p.Status]++
	}
	return out, nil
}

// memContent is an in-memory core.ContentRepository.
type memContent struct {
	mu       sync.Mutex
	sections map[string]model.ContentSection
}

func newMemContent() *memContent {
	return &memContent{sections: make(map[string]model.ContentSection)}
}

func (m *memContent) Upsert(_ context.Context, req *model.UpsertContentRequest) (*model.ContentSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	by := req.UpdatedBy
	s := model.ContentSection{Section: req.Section, Data: req.Data, UpdatedBy: &by, UpdatedAt: time.Now()}
	m.sections[req.Section] = s
	return &s, nil
}

func (m *memContent) MergeFields(_ context.Context, section string, fields map[string]any, updatedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[section]
	if !ok {
		s = model.ContentSection{Section: section, Data: map[string]any{}}
	}
	for k, v := range fields {
		s.Data[k] = v
	}
	s.UpdatedBy = &updatedBy
	m.sections[section] = s
	return nil
}

func (m *memContent) Get(_ context.Context, section string) (*model.ContentSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[section]
	if !ok {
		return nil, data.ErrContentNotFound
	}
	return &s, nil
}

func (m *memContent) List(_ context.Context) ([]*model.ContentSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.ContentSection, 0, len(m.sections))
	for _, s := range m.sections {
		cp := s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Section < out[j].Section })
	return out, nil
}

// memStorage is an in-memory core.ObjectStorage.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memStorage) Put(_ context.Context, params core.PutObjectParams) (string, error) {
	b, err := io.ReadAll(params.Body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[params.Key] = b
	m.types[params.Key] = params.ContentType
	return "https://cdn.example.test/" + params.Key, nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// apiFixture wires the router to real services over in-memory stores.
type apiFixture struct {
	handler  http.Handler
	profiles *memProfiles
	content  *memContent
	storage  *memStorage
	sessions *mockauth.MemorySessionStore
	verifier *mockauth.MockCredentialVerifier
}

type fixtureOption func(*RouterServices)

func withSignInLimit(cfg RateLimitConfig) fixtureOption {
	return func(s *RouterServices) { s.SignInLimit = cfg }
}

func withHeartbeat(d time.Duration) fixtureOption {
	return func(s *RouterServices) { s.Heartbeat = d }
}

func newAPIFixture(t *testing.T, opts ...fixtureOption) *apiFixture {
	t.Helper()

	f := &apiFixture{
		profiles: newMemProfiles(),
		content:  newMemContent(),
		storage:  newMemStorage(),
		sessions: mockauth.NewMemorySessionStore(),
		verifier: mockauth.NewMockCredentialVerifier(),
	}
	f.addUser("admin@example.com", "admin-1", domainauth.RoleAdmin)
	f.addUser("teacher@example.com", "instructor-1", domainauth.RoleInstructor)
	f.addUser("student@example.com", "student-1", domainauth.RoleStudent)

	notifier := mockauth.NewMemoryNotifier()
	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Verifier: f.verifier,
		Sessions: f.sessions,
		Profiles: f.profiles,
		Notifier: notifier,
	})
	profileSvc := service.NewProfileService(service.ProfileServiceOptions{Profiles: f.profiles, Notifier: notifier})
	contentSvc := service.NewContentService(service.ContentServiceOptions{Repo: f.content})
	uploadSvc := service.NewUploadService(service.UploadServiceOptions{
		Storage:  f.storage,
		Content:  f.content,
		MaxBytes: 1024,
	})

	services := RouterServices{
		Auth:         authSvc,
		Profiles:     profileSvc,
		Content:      contentSvc,
		Uploads:      uploadSvc,
		CookieDomain: "",
		SignInLimit:  RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute},
	}
	for _, opt := range opts {
		opt(&services)
	}
	f.handler = NewRouter(services)
	return f
}

func (f *apiFixture) addUser(email, userID string, role domainauth.Role) {
	f.verifier.Users[email] = domainauth.Identity{
		UserID:    userID,
		FirstName: "Test",
		LastName:  string(role),
		Email:     email,
		Role:      role,
	}
	f.verifier.Passwords[email] = testPassword
}

// request is a test request description.
type request struct {
	method      string
	path        string
	token       string
	body        io.Reader
	contentType string
}

func (f *apiFixture) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(req.method, req.path, req.body)
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.contentType != "" {
		r.Header.Set("Content-Type", req.contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func (f *apiFixture) signIn(t *testing.T, email string) string {
	t.Helper()
	rec := f.do(t, request{
		method:      http.MethodPost,
		path:        "/api/auth/sign-in",
		body:        jsonBody(t, map[string]string{"email": email, "password": testPassword}),
		contentType: "application/json",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Session domainauth.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Session.ID)
	return res.Session.ID
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return strings.NewReader(string(b))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
