package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscription is a registered observer. Channel subscriptions expose C;
// handler subscriptions are called synchronously from Publish, in
// subscription order.
type Subscription struct {
	ID      string
	C       <-chan Event
	filter  Filter
	handler Handler
	ch      chan Event
	mu      sync.Mutex
	closed  bool
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.ch != nil {
		close(s.ch)
	}
}

func (s *Subscription) deliver(e Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.handler != nil {
		s.mu.Unlock()
		s.handler(e)
		return true
	}
	defer s.mu.Unlock()
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

// Metrics counts bus traffic.
type Metrics struct {
	Published int64
	Delivered int64
	Dropped   int64
	Active    int
	ByType    map[Type]int64
}

// Bus broadcasts events to subscribers. A full channel subscriber loses the
// event rather than blocking the publisher.
type Bus struct {
	mu      sync.RWMutex
	subs    []*Subscription
	metrics Metrics
	closed  bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{metrics: Metrics{ByType: make(map[Type]int64)}}
}

// Publish stamps e with the current time when unset and delivers it.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	var delivered, dropped int64
	for _, s := range subs {
		if s.filter != nil && !s.filter(e) {
			continue
		}
		if s.deliver(e) {
			delivered++
		} else if s.ch != nil {
			dropped++
		}
	}

	b.mu.Lock()
	b.metrics.Published++
	b.metrics.Delivered += delivered
	b.metrics.Dropped += dropped
	b.metrics.ByType[e.Type]++
	b.mu.Unlock()
}

// Subscribe registers a handler.
func (b *Bus) Subscribe(filter Filter, handler Handler) *Subscription {
	return b.add(&Subscription{filter: filter, handler: handler})
}

// SubscribeChannel registers a buffered channel subscription.
func (b *Bus) SubscribeChannel(filter Filter, buffer int) *Subscription {
	ch := make(chan Event, buffer)
	return b.add(&Subscription{filter: filter, ch: ch, C: ch})
}

func (b *Bus) add(s *Subscription) *Subscription {
	s.ID = uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.close()
		return s
	}
	b.subs = append(b.subs, s)
	return s
}

// Unsubscribe removes s and closes its channel.
func (b *Bus) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	b.mu.Lock()
	for i, cur := range b.subs {
		if cur == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	s.close()
}

// Metrics returns a copy of the counters.
func (b *Bus) Metrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m := b.metrics
	m.Active = len(b.subs)
	m.ByType = make(map[Type]int64, len(b.metrics.ByType))
	for k, v := range b.metrics.ByType {
		m.ByType[k] = v
	}
	return m
}

// Close drops every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.closed = true
	b.mu.Unlock()
	for _, s := range subs {
		s.close()
	}
}
