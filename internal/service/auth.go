package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/target/campus-portal/internal/core"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/observability/metrics"
	"github.com/target/campus-portal/internal/observability/statsd"
	"github.com/target/campus-portal/internal/ports"
)

// DefaultSessionTTL applies when AuthServiceOptions.SessionTTL is zero.
const DefaultSessionTTL = 12 * time.Hour

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Verifier   ports.CredentialVerifier
	Sessions   ports.SessionStore
	Roles      ports.RoleMapper
	Profiles   core.ProfileRepository
	Notifier   ports.SessionNotifier // optional
	Metrics    statsd.Sink           // optional
	SessionTTL time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// AuthService signs users in, provisions their profile, and owns session lifetime.
type AuthService struct {
	verifier ports.CredentialVerifier
	sessions ports.SessionStore
	roles    ports.RoleMapper
	profiles core.ProfileRepository
	notifier ports.SessionNotifier
	metrics  statsd.Sink
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

var errSessionExpired = fmt.Errorf("%w: expired", domainauth.ErrSessionNotFound)

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		verifier: opts.Verifier,
		sessions: opts.Sessions,
		roles:    opts.Roles,
		profiles: opts.Profiles,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		ttl:      ttl,
		logger:   logger.With("component", "auth_service"),
		now:      now,
	}
}

// SignInResult is a new session together with the subject's profile.
type SignInResult struct {
	Session domainauth.Session  `json:"session"`
	Profile *domainauth.Profile `json:"profile"`
}

// SignIn verifies credentials, provisions the profile on first sign-in, and persists a session.
// Rejected credentials return domainauth.ErrInvalidCredentials; suspended profiles
// return domainauth.ErrAccountSuspended.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (res *SignInResult, err error) {
	start := time.Now()
	defer func() {
		metrics.EmitSignIn(s.metrics, metrics.SignInMetric{Duration: time.Since(start), Err: err})
	}()
	return s.signIn(ctx, email, password)
}

func (s *AuthService) signIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domainauth.ErrInvalidCredentials
	}

	identity, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, domainauth.ErrInvalidCredentials) {
			return nil, domainauth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	profile, err := s.provision(ctx, identity)
	if err != nil {
		return nil, err
	}
	if profile.Status == domainauth.StatusSuspended {
		s.logger.InfoContext(ctx, "rejected sign-in for suspended account", "user_id", identity.UserID)
		return nil, domainauth.ErrAccountSuspended
	}

	now := s.now()
	expires := now.Add(s.ttl)
	if !identity.ExpiresAt.IsZero() && identity.ExpiresAt.Before(expires) {
		expires = identity.ExpiresAt
	}
	sess := domainauth.Session{
		ID:        generateSessionID(),
		UserID:    identity.UserID,
		Email:     profile.Email,
		IssuedAt:  now,
		ExpiresAt: expires,
	}
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		return nil, fmt.Errorf("save session: %w", saveErr)
	}

	s.publish(ctx, domainauth.EventSignedIn, sess.UserID, &sess)
	s.logger.InfoContext(ctx, "signed in", "user_id", sess.UserID, "role", profile.Role)
	return &SignInResult{Session: sess, Profile: profile}, nil
}

// provision returns the stored profile, creating it from identity when missing.
func (s *AuthService) provision(ctx context.Context, id domainauth.Identity) (*domainauth.Profile, error) {
	role := id.Role
	if role == "" {
		role = domainauth.RoleStudent
		if s.roles != nil {
			role = s.roles.Map(id.Groups)
		}
	}
	p, err := s.profiles.Ensure(ctx, domainauth.Profile{
		UserID:    id.UserID,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		Email:     id.Email,
		Role:      role,
		Status:    domainauth.StatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("provision profile: %w", err)
	}
	return p, nil
}

// GetSession retrieves a live session by ID. Expired sessions are deleted.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, domainauth.ErrSessionNotFound
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.Expired(s.now()) {
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
			return nil, errors.Join(errSessionExpired, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, errSessionExpired
	}

	return &session, nil
}

// SignOut removes a session and notifies the subject's listeners with the revoked
// session. Unknown ids are a no-op.
func (s *AuthService) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domainauth.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("get session: %w", err)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	// Listeners of the subject compare the revoked id with their own token.
	s.publish(ctx, domainauth.EventSignedOut, sess.UserID, &sess)
	return nil
}

// Refresh rotates a live session: the old token is revoked and a new one with a
// fresh expiry is returned.
func (s *AuthService) Refresh(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	old, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	next := domainauth.Session{
		ID:        generateSessionID(),
		UserID:    old.UserID,
		Email:     old.Email,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if err := s.sessions.Delete(ctx, old.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to revoke refreshed session", "user_id", old.UserID, "error", err)
	}

	s.publish(ctx, domainauth.EventTokenRefreshed, next.UserID, &next)
	return &next, nil
}

// Subscribe streams session changes for userID. It fails when no notifier is configured.
func (s *AuthService) Subscribe(ctx context.Context, userID string) (ports.SessionSubscription, error) {
	if s.notifier == nil {
		return nil, errors.New("session notifications are not configured")
	}
	return s.notifier.Subscribe(ctx, userID)
}

func (s *AuthService) publish(ctx context.Context, ev domainauth.SessionEvent, userID string, sess *domainauth.Session) {
	metrics.EmitSessionEvent(s.metrics, ev)
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, domainauth.SessionChange{Event: ev, UserID: userID, Session: sess}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish session change", "event", ev, "user_id", userID, "error", err)
	}
}

// generateSessionID creates a cryptographically secure random session ID.
func generateSessionID() string {
	return uuid.New().String()
}
