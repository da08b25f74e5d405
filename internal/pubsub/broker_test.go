package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_PublishReachesAllSubscribers(t *testing.T) {
	b := NewBroker[string]()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Cancel()
	defer s2.Cancel()

	b.Publish("hello")

	for _, sub := range []*Subscription[string]{s1, s2} {
		select {
		case got := <-sub.C:
			assert.Equal(t, "hello", got)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBroker_CancelRemovesSubscriber(t *testing.T) {
	b := NewBroker[int]()
	s := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	s.Cancel()
	assert.Equal(t, 0, b.SubscriberCount())

	// Cancel is idempotent.
	s.Cancel()
	assert.Equal(t, 0, b.SubscriberCount())

	// Channel is closed after cancel.
	_, ok := <-s.C
	assert.False(t, ok)
}

func TestBroker_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := NewBroker[int]()
	s := b.Subscribe()
	defer s.Cancel()

	done := make(chan struct{})
	go func() {
		// Publish more events than the buffer holds without draining.
		for i := 0; i < defaultBufferSize*2; i++ {
			b.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestBroker_PublishWithNoSubscribers(t *testing.T) {
	b := NewBroker[struct{}]()
	assert.NotPanics(t, func() { b.Publish(struct{}{}) })
}
