// Package backendclient implements ports.SessionBackend over the campus HTTP API.
//
// The client holds the session token for its process, persists it through a TokenStore,
// and reports its own sign-in, refresh and sign-out as local session changes. Changes made
// elsewhere (profile edits, revocation of this token) arrive over the server's event
// stream, which is reconnected with exponential backoff.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/ports"
)

var _ ports.SessionBackend = (*Client)(nil)

const (
	defaultTimeout      = 15 * time.Second
	defaultReconnectMin = 500 * time.Millisecond
	defaultReconnectMax = 30 * time.Second
	subscriptionBuffer  = 16
)

// ErrNotSignedIn is returned by calls that need a token when none is held.
var ErrNotSignedIn = errors.New("not signed in")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("%d %s", e.Status, e.Code)
	default:
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client // used for unary calls; the event stream uses a copy without timeout
	Tokens     TokenStore   // defaults to an in-memory store
	Logger     *slog.Logger
	// ReconnectMin and ReconnectMax bound the delay between event stream reconnects.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Client is a ports.SessionBackend backed by the campus HTTP API.
type Client struct {
	base         *url.URL
	http         *http.Client
	stream       *http.Client
	tokens       TokenStore
	logger       *slog.Logger
	reconnectMin time.Duration
	reconnectMax time.Duration

	mu      sync.Mutex
	current *domainauth.Session
	loaded  bool
	changed chan struct{} // closed and replaced whenever the token changes
	subs    map[*subscription]struct{}
}

// New constructs a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	streamClient := *hc
	streamClient.Timeout = 0

	tokens := opts.Tokens
	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	minDelay, maxDelay := opts.ReconnectMin, opts.ReconnectMax
	if minDelay <= 0 {
		minDelay = defaultReconnectMin
	}
	if maxDelay < minDelay {
		maxDelay = max(defaultReconnectMax, minDelay)
	}
	return &Client{
		base:         base,
		http:         hc,
		stream:       &streamClient,
		tokens:       tokens,
		logger:       logger.With("component", "backend_client"),
		reconnectMin: minDelay,
		reconnectMax: maxDelay,
		changed:      make(chan struct{}),
		subs:         make(map[*subscription]struct{}),
	}, nil
}

// SignInWithCredentials exchanges credentials for a session and stores its token.
func (c *Client) SignInWithCredentials(ctx context.Context, email, password string) (*domainauth.Session, error) {
	var res struct {
		Session domainauth.Session `json:"session"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/sign-in", body: body}, &res); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Status {
			case http.StatusUnauthorized:
				return nil, domainauth.ErrInvalidCredentials
			case http.StatusForbidden:
				return nil, domainauth.ErrAccountSuspended
			}
		}
		return nil, err
	}
	if res.Session.ID == "" {
		return nil, errors.New("server returned no session")
	}

	sess := res.Session
	if err := c.setSession(&sess); err != nil {
		return nil, err
	}
	c.emit(domainauth.SessionChange{Event: domainauth.EventSignedIn, UserID: sess.UserID, Session: copySession(&sess)})
	return copySession(&sess), nil
}

// SignOut revokes the token at the server and forgets it locally. The local token is
// dropped even when the server call fails; that error is still returned.
func (c *Client) SignOut(ctx context.Context) error {
	sess, err := c.session()
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	callErr := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/sign-out", token: sess.ID}, nil)
	if err := c.setSession(nil); err != nil {
		return errors.Join(callErr, err)
	}
	c.emit(domainauth.SessionChange{Event: domainauth.EventSignedOut, UserID: sess.UserID})
	if callErr != nil {
		return fmt.Errorf("sign out: %w", callErr)
	}
	return nil
}

// CurrentSession validates the stored token with the server. A token the server no
// longer accepts is forgotten and reported as (nil, nil).
func (c *Client) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	sess, err := c.session()
	if err != nil || sess == nil {
		return nil, err
	}
	var res struct {
		Session domainauth.Session `json:"session"`
	}
	err = c.do(ctx, request{method: http.MethodGet, path: "/api/auth/session", token: sess.ID}, &res)
	if isStatus(err, http.StatusUnauthorized) {
		c.logger.InfoContext(ctx, "stored session is no longer valid")
		if clearErr := c.setSession(nil); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res.Session, nil
}

// Refresh rotates the held token and reports token_refreshed locally.
func (c *Client) Refresh(ctx context.Context) (*domainauth.Session, error) {
	sess, err := c.session()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotSignedIn
	}
	var res struct {
		Session domainauth.Session `json:"session"`
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/refresh", token: sess.ID}, &res); err != nil {
		return nil, err
	}
	next := res.Session
	if err := c.setSession(&next); err != nil {
		return nil, err
	}
	c.emit(domainauth.SessionChange{Event: domainauth.EventTokenRefreshed, UserID: next.UserID, Session: copySession(&next)})
	return copySession(&next), nil
}

// GetProfile returns (nil, nil) when the server has no profile for userID.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domainauth.Profile, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	var p domainauth.Profile
	err = c.do(ctx, request{method: http.MethodGet, path: "/api/profiles/" + url.PathEscape(userID), token: token}, &p)
	if isStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile sends patch and returns the merged profile.
func (c *Client) UpdateProfile(ctx context.Context, userID string, patch domainauth.ProfilePatch) (*domainauth.Profile, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	var p domainauth.Profile
	req := request{method: http.MethodPatch, path: "/api/profiles/" + url.PathEscape(userID), token: token, body: patch}
	if err := c.do(ctx, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) session() (*domainauth.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		sess, err := c.tokens.Load()
		if err != nil {
			return nil, err
		}
		c.current = sess
		c.loaded = true
	}
	return copySession(c.current), nil
}

func (c *Client) token() (string, error) {
	sess, err := c.session()
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", ErrNotSignedIn
	}
	return sess.ID, nil
}

// setSession replaces the held session and wakes the event streams.
func (c *Client) setSession(sess *domainauth.Session) error {
	var err error
	if sess == nil {
		err = c.tokens.Clear()
	} else {
		err = c.tokens.Save(*sess)
	}

	c.mu.Lock()
	c.current = copySession(sess)
	c.loaded = true
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// watch returns the held session and a channel closed on the next change.
func (c *Client) watch() (*domainauth.Session, <-chan struct{}) {
	sess, err := c.session()
	if err != nil {
		c.logger.Warn("failed to load stored session", "error", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return sess, c.changed
}

type request struct {
	method string
	path   string
	token  string
	body   any
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.base.String()+r.path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
		apiErr.Code = payload.Error
		apiErr.Message = payload.Message
	}
	return apiErr
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func copySession(s *domainauth.Session) *domainauth.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
