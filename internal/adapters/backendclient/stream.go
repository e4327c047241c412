package backendclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/ports"
)

var errTokenChanged = errors.New("session token changed")

// SubscribeSessionChanges returns a stream of local and server-side session changes.
// The stream ends when ctx is done or the subscription is closed.
func (c *Client) SubscribeSessionChanges(ctx context.Context) (ports.SessionSubscription, error) {
	runCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		c:      c,
		ch:     make(chan domainauth.SessionChange, subscriptionBuffer),
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go sub.run(runCtx)
	return sub, nil
}

// emit delivers a locally originated change to every subscription.
func (c *Client) emit(change domainauth.SessionChange) {
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()
	for _, s := range subs {
		s.deliver(change)
	}
}

// revoke forgets the held session when its id is sessionID.
func (c *Client) revoke(sessionID string) bool {
	c.mu.Lock()
	match := c.current != nil && c.current.ID == sessionID
	c.mu.Unlock()
	if !match {
		return false
	}
	if err := c.setSession(nil); err != nil {
		c.logger.Warn("failed to clear revoked session", "error", err)
	}
	return true
}

type subscription struct {
	c      *Client
	ch     chan domainauth.SessionChange
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// sendMu guards closed; senders hold it shared so ch is never closed under them.
	sendMu sync.RWMutex
	closed bool

	mu            sync.Mutex
	rejectedToken string
}

func (s *subscription) Changes() <-chan domainauth.SessionChange { return s.ch }

func (s *subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// deliver queues change for the subscriber. A full buffer drops refreshes and profile
// edits, but a sign-out waits for room until the subscription ends.
func (s *subscription) deliver(change domainauth.SessionChange) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- change:
		return
	default:
	}
	if change.Event != domainauth.EventSignedOut {
		s.c.logger.Warn("dropping session change for slow subscriber", "event", change.Event)
		return
	}
	select {
	case s.ch <- change:
	case <-s.ctx.Done():
	}
}

func (s *subscription) shutdown() {
	s.c.mu.Lock()
	delete(s.c.subs, s)
	s.c.mu.Unlock()

	s.sendMu.Lock()
	s.closed = true
	close(s.ch)
	s.sendMu.Unlock()
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)
	defer s.shutdown()

	c := s.c
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.reconnectMin
	b.MaxInterval = c.reconnectMax

	for {
		sess, changed := c.watch()
		if sess == nil || s.rejected(sess) {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				continue
			}
		}

		connected, err := s.streamOnce(ctx, sess, changed)
		if ctx.Err() != nil {
			return
		}
		if connected {
			b.Reset()
		}
		if errors.Is(err, errTokenChanged) {
			continue
		}
		if isStatus(err, http.StatusUnauthorized) {
			c.logger.Info("event stream rejected the session token; waiting for a new one")
			s.markRejected(sess)
			continue
		}

		delay := b.NextBackOff()
		c.logger.Warn("session event stream interrupted", "error", err, "retry_in", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-changed:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// rejectedToken is the last token the server refused for this stream.
func (s *subscription) rejected(sess *domainauth.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejectedToken != "" && s.rejectedToken == sess.ID
}

func (s *subscription) markRejected(sess *domainauth.Session) {
	s.mu.Lock()
	s.rejectedToken = sess.ID
	s.mu.Unlock()
}

// streamOnce reads the event stream for sess until it fails or the token changes.
func (s *subscription) streamOnce(ctx context.Context, sess *domainauth.Session, changed <-chan struct{}) (bool, error) {
	c := s.c
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-changed:
			cancel()
		case <-streamCtx.Done():
		}
	}()
	tokenChanged := func() bool {
		select {
		case <-changed:
			return true
		default:
			return false
		}
	}

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.base.String()+"/api/auth/events", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+sess.ID)

	resp, err := c.stream.Do(req)
	if err != nil {
		if tokenChanged() {
			return false, errTokenChanged
		}
		return false, fmt.Errorf("connect event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, decodeAPIError(resp)
	}

	err = readEvents(resp.Body, func(data string) {
		var change domainauth.SessionChange
		if err := json.Unmarshal([]byte(data), &change); err != nil {
			c.logger.Warn("ignoring malformed session event", "error", err)
			return
		}
		s.handleRemote(change, sess)
	})
	if tokenChanged() {
		return true, errTokenChanged
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return true, err
}

// handleRemote translates a change published by the server for this subject.
// Only revocation of the held token and profile edits concern this client; sign-ins and
// refreshes elsewhere belong to other sessions of the same subject.
func (s *subscription) handleRemote(change domainauth.SessionChange, sess *domainauth.Session) {
	c := s.c
	switch change.Event {
	case domainauth.EventSignedOut:
		if change.Session != nil && c.revoke(change.Session.ID) {
			c.emit(domainauth.SessionChange{Event: domainauth.EventSignedOut, UserID: sess.UserID})
		}
	case domainauth.EventUserUpdated:
		if change.UserID != "" && change.UserID != sess.UserID {
			return
		}
		current, err := c.session()
		if err != nil || current == nil || current.ID != sess.ID {
			return
		}
		s.deliver(domainauth.SessionChange{Event: domainauth.EventUserUpdated, UserID: current.UserID, Session: current})
	default:
		c.logger.Debug("ignoring remote session event", "event", change.Event)
	}
}

// readEvents calls fn with the data of every server-sent event in r.
func readEvents(r io.Reader, fn func(data string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				fn(strings.Join(data, "\n"))
				data = data[:0]
			}
		case strings.HasPrefix(line, ":"):
			// comment / heartbeat
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return sc.Err()
}
