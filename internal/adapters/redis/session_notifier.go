package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/ports"
)

// DefaultChannelPrefix namespaces session-change channels; the subject id is appended.
const DefaultChannelPrefix = "session-events:"

// SessionNotifier publishes session changes on a per-subject Redis Pub/Sub channel.
type SessionNotifier struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
	buffer int
}

// SessionNotifierOptions configures a SessionNotifier.
type SessionNotifierOptions struct {
	Client redis.UniversalClient
	Prefix string
	Logger *slog.Logger
	// Buffer is the per-subscription channel size. Changes beyond it are dropped for slow readers.
	Buffer int
}

var _ ports.SessionNotifier = (*SessionNotifier)(nil)

// NewSessionNotifier constructs a notifier backed by Redis Pub/Sub.
func NewSessionNotifier(opts SessionNotifierOptions) (*SessionNotifier, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 16
	}
	return &SessionNotifier{
		client: opts.Client,
		prefix: prefix,
		logger: logger.With("component", "session_notifier"),
		buffer: buffer,
	}, nil
}

func (n *SessionNotifier) channel(userID string) string { return n.prefix + userID }

// Publish sends change to every subscriber of change.UserID.
func (n *SessionNotifier) Publish(ctx context.Context, change domainauth.SessionChange) error {
	if change.UserID == "" {
		return errors.New("session change requires a user id")
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal session change: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel(change.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish session change: %w", err)
	}
	return nil
}

// Subscribe opens a subscription for userID. The Redis subscription is confirmed
// before Subscribe returns, so changes published afterwards are delivered.
func (n *SessionNotifier) Subscribe(ctx context.Context, userID string) (ports.SessionSubscription, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	ps := n.client.Subscribe(ctx, n.channel(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", n.channel(userID), err)
	}

	sub := &pubsubSubscription{
		ps:     ps,
		out:    make(chan domainauth.SessionChange, n.buffer),
		done:   make(chan struct{}),
		logger: n.logger.With("user_id", userID),
	}
	sub.wg.Add(1)
	go sub.loop()
	return sub, nil
}

type pubsubSubscription struct {
	ps     *redis.PubSub
	out    chan domainauth.SessionChange
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *slog.Logger
}

func (s *pubsubSubscription) Changes() <-chan domainauth.SessionChange { return s.out }

func (s *pubsubSubscription) loop() {
	defer s.wg.Done()
	defer close(s.out)

	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var change domainauth.SessionChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				s.logger.Warn("dropping malformed session change", "error", err)
				continue
			}
			select {
			case s.out <- change:
			case <-s.done:
				return
			default:
				s.logger.Warn("subscriber is slow; dropping session change", "event", change.Event)
			}
		}
	}
}

// Close unsubscribes and waits for the delivery loop to exit.
func (s *pubsubSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		s.wg.Wait()
	})
	return err
}
