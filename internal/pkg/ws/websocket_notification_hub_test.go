package ws

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []any
	fail   bool
}

func (r *recorder) WriteJSON(v interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("closed")
	}
	r.events = append(r.events, v)
	return nil
}

func (r *recorder) Events() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events...)
}

// stuck never finishes a write until released, like a peer that stopped
// reading.
type stuck struct {
	release chan struct{}
}

func (s *stuck) WriteJSON(v interface{}) error {
	<-s.release
	return nil
}

func eventually(t *testing.T, want []any, r *recorder) {
	t.Helper()
	require.Eventually(t, func() bool { return assert.ObjectsAreEqual(want, r.Events()) }, time.Second, 5*time.Millisecond)
}

func TestPublishReachesTopicListenersOnly(t *testing.T) {
	hub := NewNotificationHub()
	a, b := &recorder{}, &recorder{}
	hub.RegisterListener(DirectoryTopic, a)
	hub.RegisterListener(DuelTopic(3), b)

	hub.Publish(DirectoryTopic, "snapshot")

	eventually(t, []any{"snapshot"}, a)
	assert.Empty(t, b.Events())
}

func TestSendQueuesBehindPublishedEvents(t *testing.T) {
	hub := NewNotificationHub()
	a := &recorder{}
	hub.RegisterListener(DirectoryTopic, a)

	hub.Publish(DirectoryTopic, 1)
	require.NoError(t, hub.Send(a, 2))
	eventually(t, []any{1, 2}, a)

	assert.ErrorIs(t, hub.Send(&recorder{}, 3), ErrListenerGone)
}

func TestUnregisterRemovesOnlyThatListener(t *testing.T) {
	hub := NewNotificationHub()
	a, b := &recorder{}, &recorder{}
	hub.RegisterListener(DirectoryTopic, a)
	hub.RegisterListener(DirectoryTopic, b)

	hub.UnregisterListener(DirectoryTopic, a)
	hub.Publish(DirectoryTopic, 1)

	eventually(t, []any{1}, b)
	assert.Empty(t, a.Events())

	hub.UnregisterListener(DirectoryTopic, b)
	assert.Equal(t, 0, hub.ListenerCount(DirectoryTopic))
}

func TestPublishDropsBrokenListeners(t *testing.T) {
	hub := NewNotificationHub()
	broken, ok := &recorder{fail: true}, &recorder{}
	hub.RegisterListener(ActionTopic("x"), broken)
	hub.RegisterListener(ActionTopic("x"), ok)

	hub.Publish(ActionTopic("x"), "done")

	eventually(t, []any{"done"}, ok)
	require.Eventually(t, func() bool { return hub.ListenerCount(ActionTopic("x")) == 1 }, time.Second, 5*time.Millisecond)
}

func TestStalledListenerNeverBlocksPublish(t *testing.T) {
	hub := NewNotificationHub()
	blocked := &stuck{release: make(chan struct{})}
	defer close(blocked.release)
	healthy := &recorder{}
	hub.RegisterListener(DirectoryTopic, blocked)
	hub.RegisterListener(ActionTopic("a"), healthy)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < outboxSize*4; i++ {
			hub.Publish(DirectoryTopic, i)
		}
		hub.Publish(ActionTopic("a"), "pending")
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stalled listener")
	}
	eventually(t, []any{"pending"}, healthy)
	assert.Equal(t, 0, hub.ListenerCount(DirectoryTopic))
}
