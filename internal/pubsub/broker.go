// Package pubsub provides a minimal generic publish/subscribe broker used to
// fan out events (log entries, repository changes, operation state) to the UI.
package pubsub

import "sync"

// defaultBufferSize is the per-subscriber channel buffer.
// Slow subscribers drop events rather than block publishers.
const defaultBufferSize = 64

// Subscription represents an active subscription to a Broker.
// Each subscription is individually revocable via Cancel.
type Subscription[T any] struct {
	C      <-chan T
	broker *Broker[T]
	ch     chan T
	once   sync.Once
}

// Cancel revokes the subscription and closes its channel.
// Safe to call multiple times.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.broker.remove(s.ch)
		close(s.ch)
	})
}

// Broker fans out published values to all current subscribers.
// The zero value is not usable; create brokers with NewBroker.
type Broker[T any] struct {
	mu   sync.RWMutex
	subs map[chan T]struct{}
}

// NewBroker creates an empty broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[chan T]struct{})}
}

// Subscribe registers a new subscriber and returns its subscription.
func (b *Broker[T]) Subscribe() *Subscription[T] {
	ch := make(chan T, defaultBufferSize)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return &Subscription[T]{C: ch, broker: b, ch: ch}
}

// Publish delivers v to every subscriber. Delivery is best-effort: a
// subscriber whose buffer is full misses the event instead of blocking
// the publisher.
func (b *Broker[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker[T]) remove(ch chan T) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}
