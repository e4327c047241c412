// Package coordinator owns the client-side authentication state.
//
// A Coordinator is the single writer of AuthState for a client process. It observes the
// session backend, resolves the profile for the signed-in subject, and exposes sign-in,
// sign-out and profile updates. Every session transition advances an epoch; profile
// fetches and updates remember the epoch they started in and are dropped when a newer
// transition has happened since, so a slow result can never overwrite newer state.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/observable"
	"github.com/target/campus-portal/internal/ports"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds every backend call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Options groups dependencies for a Coordinator.
type Options struct {
	Backend ports.SessionBackend
	Logger  *slog.Logger
	// Timeout bounds each backend call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Coordinator is the single source of truth for {Session, Profile, Loading}.
// Construct one per process with New and pass it to whoever needs it.
type Coordinator struct {
	backend ports.SessionBackend
	logger  *slog.Logger
	timeout time.Duration
	state   *observable.Store[domainauth.AuthState]
	fetches singleflight.Group

	mu          sync.Mutex
	epoch       uint64
	version     uint64
	session     *domainauth.Session
	profile     *domainauth.Profile
	fetching    bool
	initialized bool
	closed      bool
	sub         ports.SessionSubscription
	stop        context.CancelFunc
	listening   chan struct{}
	fetchWG     sync.WaitGroup
}

// New constructs a Coordinator. The state starts as Loading until Initialize resolves it.
func New(opts Options) *Coordinator {
	if opts.Backend == nil {
		misuse("New", "backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		backend: opts.Backend,
		logger:  logger.With("component", "auth_coordinator"),
		timeout: timeout,
		state:   observable.NewStore(domainauth.AuthState{Loading: true}),
	}
}

// State returns the most recently published AuthState.
func (c *Coordinator) State() domainauth.AuthState {
	c.mustBeProvisioned("State")
	return c.state.Get()
}

// Subscribe returns a read-only subscription to AuthState. The current state is delivered first.
func (c *Coordinator) Subscribe(ctx context.Context) *observable.Subscription[domainauth.AuthState] {
	c.mustBeProvisioned("Subscribe")
	return c.state.Subscribe(ctx)
}

// Initialize resolves the current session and profile and starts listening for session changes.
// It must be called exactly once. When the current session cannot be resolved (including on
// timeout) the state becomes signed out with Err set, and the error is returned.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mustBeProvisioned("Initialize")

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		misuse("Initialize", "coordinator is closed")
	}
	if c.initialized {
		c.mu.Unlock()
		misuse("Initialize", "already initialized")
	}
	c.initialized = true
	epoch := c.epoch
	listenCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	c.stop = stop
	c.mu.Unlock()

	c.startListening(listenCtx)

	callCtx, cancel := c.callContext(ctx)
	sess, err := c.backend.CurrentSession(callCtx)
	cancel()
	if err != nil {
		err = fmt.Errorf("resolve current session: %w", err)
		c.logger.WarnContext(ctx, "initial session unresolved, treating as signed out", "error", err)
		c.mu.Lock()
		if c.epoch == epoch && !c.closed {
			c.session, c.profile, c.fetching = nil, nil, false
			c.publishLocked(err)
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.epoch != epoch || c.closed {
		// A change notification already resolved the state.
		c.mu.Unlock()
		return nil
	}
	if sess == nil {
		c.session, c.profile, c.fetching = nil, nil, false
		c.publishLocked(nil)
		c.mu.Unlock()
		return nil
	}
	c.session = copySession(sess)
	c.profile = nil
	c.fetching = true
	c.mu.Unlock()

	profile, ferr := c.fetchProfile(ctx, sess.UserID)
	if ferr != nil {
		c.logger.WarnContext(ctx, "profile fetch failed during initialize", "user_id", sess.UserID, "error", ferr)
	}
	c.completeFetch(epoch, profile, ferr, false)
	return nil
}

func (c *Coordinator) startListening(ctx context.Context) {
	sub, err := c.backend.SubscribeSessionChanges(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "session change subscription unavailable", "error", err)
		return
	}
	done := make(chan struct{})
	c.mu.Lock()
	c.sub = sub
	c.listening = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-sub.Changes():
				if !ok {
					return
				}
				// Transitions apply in arrival order; fetches run alongside so a slow
				// profile lookup never holds back a later sign-out.
				if fetch := c.applyChange(ctx, change); fetch != nil {
					c.fetchWG.Add(1)
					go func() {
						defer c.fetchWG.Done()
						fetch()
					}()
				}
			}
		}
	}()
}

// OnSessionChanged applies a notification from the session backend and waits for any
// profile fetch it starts.
//
// A nil session signs the state out. A session for a new subject starts a profile fetch.
// Notifications for the subject already held (duplicates, token refreshes) replace the
// session token without refetching; user_updated refetches the profile.
func (c *Coordinator) OnSessionChanged(ctx context.Context, change domainauth.SessionChange) {
	c.mustBeProvisioned("OnSessionChanged")
	if fetch := c.applyChange(ctx, change); fetch != nil {
		fetch()
	}
}

// applyChange records the transition for change and returns the profile fetch it
// requires, or nil.
func (c *Coordinator) applyChange(ctx context.Context, change domainauth.SessionChange) func() {
	sess := change.Session

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}

	if sess == nil || sess.UserID == "" {
		if c.session == nil && c.version > 0 {
			return nil
		}
		c.beginLocked(nil)
		c.publishLocked(nil)
		return nil
	}

	keep := false
	if c.session != nil && c.session.UserID == sess.UserID {
		tokenChanged := c.session.ID != sess.ID || !c.session.ExpiresAt.Equal(sess.ExpiresAt)
		c.session = copySession(sess)
		if c.fetching {
			// The outstanding fetch publishes with the latest session.
			return nil
		}
		if change.Event != domainauth.EventUserUpdated && c.profile != nil {
			if tokenChanged {
				c.publishLocked(nil)
			}
			return nil
		}
		keep = c.profile != nil
		c.epoch++
		c.fetching = true
	} else {
		if !establishes(change.Event) {
			// Refreshes and profile edits only concern the subject already held; one that
			// arrives after a sign-out has started must not bring the session back.
			c.logger.DebugContext(ctx, "ignoring session change for a subject not held", "event", change.Event, "user_id", sess.UserID)
			return nil
		}
		c.beginLocked(sess)
	}

	epoch := c.epoch
	userID := sess.UserID
	return func() {
		profile, err := c.fetchProfile(ctx, userID)
		if err != nil {
			c.logger.WarnContext(ctx, "profile fetch failed", "event", change.Event, "user_id", userID, "error", err)
		}
		if !c.completeFetch(epoch, profile, err, keep) {
			c.logger.DebugContext(ctx, "discarded stale profile", "user_id", userID)
		}
	}
}

// establishes reports whether event may start a session for a subject that is not held.
func establishes(event domainauth.SessionEvent) bool {
	return event == domainauth.EventSignedIn || event == domainauth.EventInitialSession
}

// SignIn verifies credentials with the backend and resolves the subject's profile before
// returning. The new state is published before SignIn returns.
//
// Errors match ErrCredentials when the backend rejects the sign-in, ErrProfileFetch when the
// session is valid but the profile could not be loaded (the session stays signed in), and
// ErrSuperseded when a newer session change completed first.
func (c *Coordinator) SignIn(ctx context.Context, email, password string) error {
	c.mustBeProvisioned("SignIn")
	c.mustBeOpen("SignIn")

	callCtx, cancel := c.callContext(ctx)
	sess, err := c.backend.SignInWithCredentials(callCtx, email, password)
	cancel()
	if err != nil {
		c.logger.InfoContext(ctx, "sign-in rejected", "error", err)
		return newError(ErrCredentials, err)
	}
	if sess == nil || sess.UserID == "" {
		return newError(ErrCredentials, errors.New("backend returned no session"))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return newError(ErrSuperseded, nil)
	}
	var epoch uint64
	if c.session != nil && c.session.UserID == sess.UserID {
		c.session = copySession(sess)
		epoch = c.epoch
		if !c.fetching && c.profile != nil {
			c.publishLocked(nil)
			c.mu.Unlock()
			return nil
		}
		c.fetching = true
	} else {
		epoch = c.beginLocked(sess)
	}
	c.mu.Unlock()

	profile, ferr := c.fetchProfile(ctx, sess.UserID)
	if !c.completeFetch(epoch, profile, ferr, false) {
		return newError(ErrSuperseded, nil)
	}
	if ferr != nil {
		c.logger.WarnContext(ctx, "signed in without profile", "user_id", sess.UserID, "error", ferr)
		return newError(ErrProfileFetch, ferr)
	}
	return nil
}

// SignOut invalidates the session at the backend and then publishes the signed-out state,
// even when the backend call fails. Signing out while already signed out is a no-op.
// While the backend call is outstanding only a new sign-in can move the state elsewhere.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.mustBeProvisioned("SignOut")
	c.mustBeOpen("SignOut")

	c.mu.Lock()
	if c.session == nil && c.version > 0 {
		c.mu.Unlock()
		return nil
	}
	epoch := c.beginLocked(nil)
	c.mu.Unlock()

	callCtx, cancel := c.callContext(ctx)
	err := c.backend.SignOut(callCtx)
	cancel()
	if err != nil {
		c.logger.WarnContext(ctx, "backend sign-out failed; clearing local state", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	// Only a sign-in that began after this sign-out may replace its result.
	if c.epoch != epoch && c.session != nil {
		return nil
	}
	if c.epoch == epoch || c.state.Get().Session != nil {
		c.publishLocked(nil)
	}
	return nil
}

// UpdateProfile writes patch for the signed-in subject and republishes the merged profile.
// It returns ErrNoSession without touching state when signed out, and ErrUpdate when the
// backend rejects the write.
func (c *Coordinator) UpdateProfile(ctx context.Context, patch domainauth.ProfilePatch) error {
	c.mustBeProvisioned("UpdateProfile")
	c.mustBeOpen("UpdateProfile")

	c.mu.Lock()
	sess := copySession(c.session)
	epoch := c.epoch
	c.mu.Unlock()
	if sess == nil {
		return newError(ErrNoSession, nil)
	}

	callCtx, cancel := c.callContext(ctx)
	updated, err := c.backend.UpdateProfile(callCtx, sess.UserID, patch)
	cancel()
	if err != nil {
		return newError(ErrUpdate, err)
	}
	if updated == nil {
		return newError(ErrUpdate, errors.New("backend returned no profile"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.epoch != epoch || c.session == nil || c.session.UserID != sess.UserID {
		return nil
	}
	// Advance the epoch so an older outstanding fetch cannot replace the written profile.
	c.epoch++
	c.fetching = false
	c.profile = copyProfile(updated)
	c.publishLocked(nil)
	return nil
}

// Close stops listening for session changes and ends all state subscriptions.
// Commands called after Close panic.
func (c *Coordinator) Close() error {
	c.mustBeProvisioned("Close")

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stop, sub, listening := c.stop, c.sub, c.listening
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	var err error
	if sub != nil {
		err = sub.Close()
	}
	if listening != nil {
		<-listening
	}
	c.fetchWG.Wait()
	c.state.Close()
	return err
}

// beginLocked records a transition to sess and returns its epoch.
// Switching directly between two different subjects publishes a Loading state so that
// readers never act on the previous subject's role while the new profile resolves.
func (c *Coordinator) beginLocked(sess *domainauth.Session) uint64 {
	switching := c.session != nil && sess != nil && c.session.UserID != sess.UserID
	c.epoch++
	c.session = copySession(sess)
	c.profile = nil
	c.fetching = sess != nil
	if switching {
		c.version++
		c.state.Set(domainauth.AuthState{Session: copySession(sess), Loading: true, Version: c.version})
	}
	return c.epoch
}

// completeFetch applies a profile fetch result if no newer transition happened since epoch.
// With keepOnError a failed refresh leaves the held profile in place.
func (c *Coordinator) completeFetch(epoch uint64, profile *domainauth.Profile, err error, keepOnError bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || epoch != c.epoch {
		return false
	}
	if !c.fetching {
		// Another waiter on the same fetch already published it.
		return true
	}
	c.fetching = false
	switch {
	case err == nil:
		c.profile = copyProfile(profile)
	case !keepOnError:
		c.profile = nil
	}
	c.publishLocked(nil)
	return true
}

// publishLocked publishes the held session and profile as a resolved state.
func (c *Coordinator) publishLocked(err error) {
	c.version++
	c.state.Set(domainauth.AuthState{
		Session: copySession(c.session),
		Profile: copyProfile(c.profile),
		Loading: false,
		Version: c.version,
		Err:     err,
	})
}

// fetchProfile loads a profile, collapsing concurrent fetches for the same subject.
func (c *Coordinator) fetchProfile(ctx context.Context, userID string) (*domainauth.Profile, error) {
	v, err, _ := c.fetches.Do(userID, func() (any, error) {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()
		return c.backend.GetProfile(callCtx, userID)
	})
	if err != nil {
		return nil, err
	}
	profile, _ := v.(*domainauth.Profile)
	if profile == nil {
		return nil, domainauth.ErrProfileNotFound
	}
	return copyProfile(profile), nil
}

func (c *Coordinator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Coordinator) mustBeProvisioned(op string) {
	if c == nil || c.state == nil || c.backend == nil {
		misuse(op, "coordinator was not constructed with New")
	}
}

func (c *Coordinator) mustBeOpen(op string) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		misuse(op, "coordinator is closed")
	}
}

func copySession(s *domainauth.Session) *domainauth.Session {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyProfile(p *domainauth.Profile) *domainauth.Profile {
	if p == nil {
		return nil
	}
	v := *p
	if p.AvatarURL != nil {
		a := *p.AvatarURL
		v.AvatarURL = &a
	}
	return &v
}
