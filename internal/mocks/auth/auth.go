package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.CredentialVerifier = (*MockCredentialVerifier)(nil)
	_ ports.SessionStore       = (*MemorySessionStore)(nil)
	_ ports.SessionNotifier    = (*MemoryNotifier)(nil)
	_ ports.RoleMapper         = (*StaticRoleMapper)(nil)
	_ ports.SessionBackend     = (*FakeBackend)(nil)
)

// MockCredentialVerifier accepts a fixed set of email/password pairs.
type MockCredentialVerifier struct {
	VerifyFunc func(ctx context.Context, email, password string) (domainauth.Identity, error)

	// Users maps lower-cased email to the identity returned for it.
	Users map[string]domainauth.Identity
	// Passwords maps lower-cased email to the accepted password.
	Passwords map[string]string
}

// NewMockCredentialVerifier creates a verifier that accepts a single default user.
func NewMockCredentialVerifier() *MockCredentialVerifier {
	return &MockCredentialVerifier{
		Users: map[string]domainauth.Identity{
			"mock.user@example.com": {
				UserID:    "mock-user-1",
				FirstName: "Mock",
				LastName:  "User",
				Email:     "mock.user@example.com",
				Groups:    []string{"students"},
				Role:      domainauth.RoleStudent,
			},
		},
		Passwords: map[string]string{"mock.user@example.com": "password123"},
	}
}

func (m *MockCredentialVerifier) Verify(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, email, password)
	}
	key := strings.ToLower(strings.TrimSpace(email))
	want, ok := m.Passwords[key]
	if !ok || want != password {
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}
	id := m.Users[key]
	id.ExpiresAt = time.Now().Add(time.Hour)
	return id, nil
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if id == "" || !ok {
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports how many sessions are stored.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ErrNotFound is returned by mocks when an entity is not present.
type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

var ErrNotFound error = notFoundError{}

// Is lets errors.Is match the domain sentinel.
func (notFoundError) Is(target error) bool { return target == domainauth.ErrSessionNotFound }

// StaticRoleMapper maps groups by simple string membership rules.
type StaticRoleMapper struct {
	AdminGroup      string
	InstructorGroup string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	for _, g := range groups {
		if m.AdminGroup != "" && g == m.AdminGroup {
			return domainauth.RoleAdmin
		}
	}
	for _, g := range groups {
		if m.InstructorGroup != "" && g == m.InstructorGroup {
			return domainauth.RoleInstructor
		}
	}
	return domainauth.RoleStudent
}

// Subscription is a channel-backed ports.SessionSubscription.
type Subscription struct {
	ch      chan domainauth.SessionChange
	once    sync.Once
	onClose func()
}

// NewSubscription creates a subscription with the given buffer size.
func NewSubscription(buffer int) *Subscription {
	return &Subscription{ch: make(chan domainauth.SessionChange, buffer)}
}

func (s *Subscription) Changes() <-chan domainauth.SessionChange { return s.ch }

func (s *Subscription) Close() error {
	s.once.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.ch)
	})
	return nil
}

// MemoryNotifier fans session changes out in process.
type MemoryNotifier struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewMemoryNotifier creates an empty notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: make(map[string]map[*Subscription]struct{})}
}

func (n *MemoryNotifier) Publish(_ context.Context, change domainauth.SessionChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs[change.UserID] {
		select {
		case sub.ch <- change:
		default:
		}
	}
	return nil
}

func (n *MemoryNotifier) Subscribe(_ context.Context, userID string) (ports.SessionSubscription, error) {
	sub := NewSubscription(8)
	n.mu.Lock()
	if n.subs[userID] == nil {
		n.subs[userID] = make(map[*Subscription]struct{})
	}
	n.subs[userID][sub] = struct{}{}
	n.mu.Unlock()
	sub.onClose = func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs[userID], sub)
	}
	return sub, nil
}

// FakeBackend is a controllable ports.SessionBackend.
//
// Without overrides it behaves like a small in-memory provider: SignInWithCredentials
// succeeds for any email in Accounts, GetProfile reads Profiles, and UpdateProfile
// applies the patch in place. The Func fields replace individual operations so tests
// can block, fail, or reorder calls.
type FakeBackend struct {
	SignInFunc        func(ctx context.Context, email, password string) (*domainauth.Session, error)
	SignOutFunc       func(ctx context.Context) error
	CurrentFunc       func(ctx context.Context) (*domainauth.Session, error)
	GetProfileFunc    func(ctx context.Context, userID string) (*domainauth.Profile, error)
	UpdateProfileFunc func(ctx context.Context, userID string, patch domainauth.ProfilePatch) (*domainauth.Profile, error)

	mu       sync.Mutex
	Accounts map[string]string // email -> user id
	Profiles map[string]*domainauth.Profile
	current  *domainauth.Session
	subs     []*Subscription
	calls    map[string]int
}

// NewFakeBackend creates an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Accounts: make(map[string]string),
		Profiles: make(map[string]*domainauth.Profile),
		calls:    make(map[string]int),
	}
}

// AddUser registers a user that can sign in with any password.
func (f *FakeBackend) AddUser(email string, profile domainauth.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Accounts[email] = profile.UserID
	p := profile
	f.Profiles[profile.UserID] = &p
}

// SetCurrent sets the session returned by CurrentSession.
func (f *FakeBackend) SetCurrent(sess *domainauth.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = sess
}

// Calls reports how many times op was invoked.
func (f *FakeBackend) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// StoredProfile returns a copy of the stored profile for userID, or nil.
func (f *FakeBackend) StoredProfile(userID string) *domainauth.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Profiles[userID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Emit delivers change to every open subscription.
func (f *FakeBackend) Emit(change domainauth.SessionChange) {
	f.mu.Lock()
	subs := append([]*Subscription(nil), f.subs...)
	f.mu.Unlock()
	for _, s := range subs {
		func() {
			defer func() { _ = recover() }() // closed subscription
			s.ch <- change
		}()
	}
}

func (f *FakeBackend) record(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

// NewTestSession builds a session for userID expiring in an hour.
func NewTestSession(id, userID string) *domainauth.Session {
	now := time.Now()
	return &domainauth.Session{ID: id, UserID: userID, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
}

func (f *FakeBackend) SignInWithCredentials(ctx context.Context, email, password string) (*domainauth.Session, error) {
	f.record("SignIn")
	if f.SignInFunc != nil {
		return f.SignInFunc(ctx, email, password)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.Accounts[email]
	if !ok {
		return nil, domainauth.ErrInvalidCredentials
	}
	f.current = NewTestSession("sess-"+userID, userID)
	f.current.Email = email
	s := *f.current
	return &s, nil
}

func (f *FakeBackend) SignOut(ctx context.Context) error {
	f.record("SignOut")
	if f.SignOutFunc != nil {
		return f.SignOutFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	return nil
}

func (f *FakeBackend) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	f.record("CurrentSession")
	if f.CurrentFunc != nil {
		return f.CurrentFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, nil
	}
	s := *f.current
	return &s, nil
}

func (f *FakeBackend) SubscribeSessionChanges(_ context.Context) (ports.SessionSubscription, error) {
	f.record("Subscribe")
	sub := NewSubscription(16)
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub, nil
}

func (f *FakeBackend) GetProfile(ctx context.Context, userID string) (*domainauth.Profile, error) {
	f.record("GetProfile")
	if f.GetProfileFunc != nil {
		return f.GetProfileFunc(ctx, userID)
	}
	return f.StoredProfile(userID), nil
}

func (f *FakeBackend) UpdateProfile(ctx context.Context, userID string, patch domainauth.ProfilePatch) (*domainauth.Profile, error) {
	f.record("UpdateProfile")
	if f.UpdateProfileFunc != nil {
		return f.UpdateProfileFunc(ctx, userID, patch)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Profiles[userID]
	if !ok {
		return nil, domainauth.ErrProfileNotFound
	}
	updated := patch.Apply(*p)
	f.Profiles[userID] = &updated
	cp := updated
	return &cp, nil
}
