// Package observable provides a typed, latest-value store with channel subscriptions.
//
// Subscribers never block the writer: each subscription buffers a single value and a
// newer value replaces an unread older one, so a slow reader always sees the most
// recent state and never an older one after a newer one.
package observable

import (
	"context"
	"sync"
)

// Store holds a current value of T and notifies subscribers on every Set.
// All methods are safe for concurrent use.
type Store[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// NewStore creates a store holding initial.
func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{
		value: initial,
		subs:  make(map[*Subscription[T]]struct{}),
	}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the current value and delivers it to every subscriber.
// Calls to Set are delivered in the order they acquire the store lock.
func (s *Store[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.value = v
	for sub := range s.subs {
		sub.offer(v)
	}
}

// Subscribe registers a subscriber that first receives the current value.
// The subscription ends when ctx is cancelled, Close is called, or the store is closed.
func (s *Store[T]) Subscribe(ctx context.Context) *Subscription[T] {
	sub := &Subscription[T]{
		ch:    make(chan T, 1),
		store: s,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.closeLocked()
		return sub
	}
	s.subs[sub] = struct{}{}
	sub.offer(s.value)
	s.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done():
			}
		}()
	}
	return sub
}

// Close closes every subscription. Further Sets are ignored.
func (s *Store[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		delete(s.subs, sub)
		sub.closeLocked()
	}
}

func (s *Store[T]) remove(sub *Subscription[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		sub.closeLocked()
	}
}

// Subscription receives values published to a Store.
type Subscription[T any] struct {
	ch     chan T
	store  *Store[T]
	once   sync.Once
	closed chan struct{}
	initMu sync.Mutex
}

// C returns the channel of published values. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.store.remove(s)
}

func (s *Subscription[T]) done() chan struct{} {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.closed == nil {
		s.closed = make(chan struct{})
	}
	return s.closed
}

// offer delivers v, replacing an unread value. Callers hold the store lock.
func (s *Subscription[T]) offer(v T) {
	select {
	case s.ch <- v:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}

// closeLocked closes the value channel. Callers hold the store lock.
func (s *Subscription[T]) closeLocked() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done())
	})
}
