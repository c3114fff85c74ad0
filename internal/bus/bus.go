// Package bus implements the server-wide broadcast fan-out that connects
// every authenticated session to every other one.
package bus

import (
	"errors"
	"sync"
)

// ErrBusClosed is returned by Subscribe and Publish once the Bus has been
// closed.
var ErrBusClosed = errors.New("bus: closed")

// Capacity is the size of each subscriber's inbound queue. A slow reader
// that falls Capacity messages behind starts losing the oldest ones rather
// than stalling the broadcaster — chat history is best-effort for a
// lagging client, and the persisted log (internal/store) remains the
// authoritative record.
const Capacity = 20

// Envelope is one broadcast message together with the identity of its
// sender, so a subscriber can filter out its own traffic.
type Envelope struct {
	FromAddr string
	Payload  any
}

// Subscription is a single listener's view onto the Bus. Receive from C to
// observe broadcasts; call Close when the subscriber disconnects.
type Subscription struct {
	addr string
	c    chan Envelope
	bus  *Bus
}

// C is the channel of envelopes delivered to this subscription.
func (s *Subscription) C() <-chan Envelope { return s.c }

// Close unregisters the subscription from its Bus. Calling it again, or
// after the Bus has been closed, returns without effect.
func (s *Subscription) Close() {
	select {
	case s.bus.unregister <- s:
	case <-s.bus.done:
	}
}

// Bus fans a single stream of published envelopes out to every current
// subscriber, adapted from the teacher's generic broadcast hub: one owning
// goroutine (Run) serializes register/unregister/publish over channels so
// the subscriber set never needs its own lock on the hot broadcast path.
type Bus struct {
	register   chan *Subscription
	unregister chan *Subscription
	publish    chan Envelope
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New returns a Bus. Call Run in its own goroutine before subscribing.
func New() *Bus {
	return &Bus{
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		publish:    make(chan Envelope, Capacity),
		done:       make(chan struct{}),
	}
}

// Run serializes subscriber bookkeeping and delivery. It blocks until
// Close is called and should run in its own goroutine for the lifetime of
// the server.
func (b *Bus) Run() {
	subs := make(map[*Subscription]struct{})
	for {
		select {
		case s := <-b.register:
			subs[s] = struct{}{}

		case s := <-b.unregister:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.c)
			}

		case env := <-b.publish:
			for s := range subs {
				deliver(s.c, env)
			}

		case <-b.done:
			for s := range subs {
				close(s.c)
			}
			return
		}
	}
}

// deliver is a non-blocking send that drops the oldest queued envelope to
// make room when a subscriber's channel is full, rather than blocking the
// whole bus on one slow reader.
func deliver(c chan Envelope, env Envelope) {
	for {
		select {
		case c <- env:
			return
		default:
		}
		select {
		case <-c:
		default:
		}
	}
}

// Subscribe registers a new listener identified by addr (used to filter a
// subscriber's own broadcasts back out in internal/session) and returns its
// Subscription.
func (b *Bus) Subscribe(addr string) (*Subscription, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, ErrBusClosed
	}

	s := &Subscription{addr: addr, c: make(chan Envelope, Capacity), bus: b}
	b.register <- s
	return s, nil
}

// Publish broadcasts env to every current subscriber.
func (b *Bus) Publish(env Envelope) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBusClosed
	}

	b.publish <- env
	return nil
}

// Close shuts the Bus down, closing every subscriber's channel. Safe to
// call once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}
