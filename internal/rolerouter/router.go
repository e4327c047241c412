// Package rolerouter decides which view a client may see for a given AuthState.
//
// Decisions are pure functions of (State, Access). Router wraps them with a current
// location and a Navigator, and re-evaluates on every AuthState published by the
// coordinator, ignoring snapshots older than the newest one it has applied.
package rolerouter

import (
	"context"
	"log/slog"
	"sync"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/observable"
)

// State is the routing view of an AuthState.
type State int

const (
	// Unresolved means the coordinator is still loading; no decision may be made.
	Unresolved State = iota
	// Anonymous means no session is present.
	Anonymous
	// AuthenticatedAdmin means a session whose profile role is admin.
	AuthenticatedAdmin
	// AuthenticatedOther means a session with any other role, including an unknown one.
	AuthenticatedOther
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Anonymous:
		return "anonymous"
	case AuthenticatedAdmin:
		return "authenticated_admin"
	case AuthenticatedOther:
		return "authenticated_other"
	default:
		return "unknown"
	}
}

// Resolve maps an AuthState to a routing State.
func Resolve(st domainauth.AuthState) State {
	switch {
	case st.Loading:
		return Unresolved
	case st.Session == nil:
		return Anonymous
	case st.Profile.IsAdmin():
		return AuthenticatedAdmin
	default:
		return AuthenticatedOther
	}
}

// Access classifies who may see a view.
type Access int

const (
	// Public views render for everyone.
	Public Access = iota
	// Protected views need any session.
	Protected
	// GeneralOnly views are for signed-in non-admins; admins go to the admin view.
	GeneralOnly
	// AdminOnly views are for admins; everyone else signed in goes to the general view.
	AdminOnly
)

// Well-known view paths.
const (
	SignInPath  = "/sign-in"
	GeneralPath = "/dashboard"
	AdminPath   = "/admin"
)

// View is a routable page.
type View struct {
	Path   string
	Access Access
}

// DefaultViews is the client's view table.
func DefaultViews() []View {
	return []View{
		{Path: "/", Access: Public},
		{Path: SignInPath, Access: Public},
		{Path: GeneralPath, Access: GeneralOnly},
		{Path: "/profile", Access: Protected},
		{Path: AdminPath, Access: AdminOnly},
		{Path: "/admin/content", Access: AdminOnly},
		{Path: "/admin/summary", Access: AdminOnly},
	}
}

// Action is what a view should do.
type Action int

const (
	// Render shows the requested view.
	Render Action = iota
	// Wait renders a neutral loading indicator.
	Wait
	// Redirect navigates to Decision.Target.
	Redirect
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the outcome for one (State, Access) pair.
type Decision struct {
	Action Action
	Target string
}

// Decide returns the routing decision for a view of the given access class.
func Decide(s State, access Access) Decision {
	if access == Public {
		return Decision{Action: Render}
	}
	switch s {
	case Unresolved:
		return Decision{Action: Wait}
	case Anonymous:
		return Decision{Action: Redirect, Target: SignInPath}
	case AuthenticatedOther:
		if access == AdminOnly {
			return Decision{Action: Redirect, Target: GeneralPath}
		}
	case AuthenticatedAdmin:
		if access == GeneralOnly {
			return Decision{Action: Redirect, Target: AdminPath}
		}
	}
	return Decision{Action: Render}
}

// Landing returns the view a resolved state is sent to after sign-in.
// Only admins land on the admin view. Unresolved and Anonymous states return "".
func Landing(s State) string {
	switch s {
	case AuthenticatedAdmin:
		return AdminPath
	case AuthenticatedOther:
		return GeneralPath
	default:
		return ""
	}
}

// Navigator performs a redirect.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Options configures a Router.
type Options struct {
	Views     []View
	Navigator Navigator
	Logger    *slog.Logger
	// Start is the initial location. Defaults to "/".
	Start string
}

// Router tracks the current location and applies decisions as AuthState changes.
type Router struct {
	nav    Navigator
	logger *slog.Logger
	views  map[string]Access

	mu       sync.Mutex
	location string
	state    domainauth.AuthState
	applied  bool
}

// New constructs a Router. Views default to DefaultViews.
func New(opts Options) *Router {
	views := opts.Views
	if len(views) == 0 {
		views = DefaultViews()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		nav:      opts.Navigator,
		logger:   logger.With("component", "role_router"),
		views:    make(map[string]Access, len(views)),
		location: opts.Start,
		state:    domainauth.AuthState{Loading: true},
	}
	if r.location == "" {
		r.location = "/"
	}
	for _, v := range views {
		r.views[v.Path] = v.Access
	}
	return r
}

// AccessFor returns the access class for path. Unknown paths are Protected.
func (r *Router) AccessFor(path string) Access {
	if a, ok := r.views[path]; ok {
		return a
	}
	return Protected
}

// Location returns the current path.
func (r *Router) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// Visit moves to path and returns the decision for it under the last applied state.
func (r *Router) Visit(path string) Decision {
	r.mu.Lock()
	r.location = path
	d := r.evaluateLocked()
	r.mu.Unlock()
	r.follow(d)
	return d
}

// Apply evaluates st against the current location. Snapshots that are not newer than
// the last applied one are ignored and reported with ok=false.
func (r *Router) Apply(st domainauth.AuthState) (d Decision, ok bool) {
	r.mu.Lock()
	if r.applied && st.Version <= r.state.Version {
		r.mu.Unlock()
		return Decision{}, false
	}
	r.state = st
	r.applied = true
	d = r.evaluateLocked()
	r.mu.Unlock()
	r.follow(d)
	return d, true
}

// Current returns the routing state of the last applied snapshot.
func (r *Router) Current() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Resolve(r.state)
}

// Run applies every state from sub until ctx is done or the subscription ends.
func (r *Router) Run(ctx context.Context, sub *observable.Subscription[domainauth.AuthState]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-sub.C():
			if !ok {
				return nil
			}
			r.Apply(st)
		}
	}
}

// evaluateLocked decides for the current location and moves it on redirect.
func (r *Router) evaluateLocked() Decision {
	d := Decide(Resolve(r.state), r.AccessFor(r.location))
	if d.Action == Redirect {
		r.logger.Debug("redirecting", "from", r.location, "to", d.Target, "state", Resolve(r.state).String())
		r.location = d.Target
	}
	return d
}

func (r *Router) follow(d Decision) {
	if d.Action == Redirect && r.nav != nil {
		r.nav.Navigate(d.Target)
	}
}
