package observable

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, sub *Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestStore_SubscribeReceivesCurrentValue(t *testing.T) {
	t.Parallel()
	s := NewStore(1)
	sub := s.Subscribe(context.Background())
	defer sub.Close()

	assert.Equal(t, 1, recv(t, sub))

	s.Set(2)
	assert.Equal(t, 2, recv(t, sub))
	assert.Equal(t, 2, s.Get())
}

func TestStore_SlowReaderSeesLatestOnly(t *testing.T) {
	t.Parallel()
	s := NewStore(0)
	sub := s.Subscribe(context.Background())
	defer sub.Close()

	for i := 1; i <= 100; i++ {
		s.Set(i)
	}

	assert.Equal(t, 100, recv(t, sub))
	select {
	case v := <-sub.C():
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func TestStore_ValuesNeverGoBackwards(t *testing.T) {
	t.Parallel()
	s := NewStore(0)
	sub := s.Subscribe(context.Background())
	defer sub.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			s.Set(i)
		}
	}()

	last := -1
	for last < 1000 {
		v := recv(t, sub)
		require.Greater(t, v, last)
		last = v
	}
	wg.Wait()
}

func TestSubscription_CloseReleasesWatcher(t *testing.T) {
	t.Parallel()
	s := NewStore(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := s.Subscribe(ctx)
	recv(t, sub)

	sub.Close()
	sub.Close()

	select {
	case <-sub.done():
	case <-time.After(time.Second):
		t.Fatal("done channel was not closed")
	}
	_, ok := <-sub.C()
	assert.False(t, ok)
}

func TestStore_ContextCancelClosesSubscription(t *testing.T) {
	t.Parallel()
	s := NewStore(0)
	ctx, cancel := context.WithCancel(context.Background())
	sub := s.Subscribe(ctx)
	recv(t, sub)

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.C():
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestStore_CloseEndsSubscriptions(t *testing.T) {
	t.Parallel()
	s := NewStore(0)
	sub := s.Subscribe(context.Background())
	recv(t, sub)

	s.Close()
	_, ok := <-sub.C()
	assert.False(t, ok)

	// Sets after close are ignored and subscribing yields a closed subscription.
	s.Set(5)
	assert.Equal(t, 0, s.Get())
	late := s.Subscribe(context.Background())
	_, ok = <-late.C()
	assert.False(t, ok)

	sub.Close()
}
