package identitysdk

import "sync"

// Subscription delivers auth events until closed.
type Subscription interface {
	Events() <-chan AuthEvent
	Close()
}

const subscriberBuffer = 16

type broadcaster struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

type subscription struct {
	b    *broadcaster
	ch   chan AuthEvent
	done chan struct{}
	once sync.Once
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*subscription]struct{})}
}

func (b *broadcaster) subscribe() *subscription {
	s := &subscription{
		b:    b,
		ch:   make(chan AuthEvent, subscriberBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// publish delivers ev to every subscriber in order. A full subscriber blocks
// the publisher until it drains or closes.
func (b *broadcaster) publish(ev AuthEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		select {
		case s.ch <- AuthEvent{Kind: ev.Kind, Session: ev.Session.Clone()}:
		case <-s.done:
		}
	}
}

func (s *subscription) Events() <-chan AuthEvent { return s.ch }

// Close unsubscribes and closes the events channel. Safe to call twice.
func (s *subscription) Close() {
	s.once.Do(func() {
		close(s.done)

		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()

		close(s.ch)
	})
}
