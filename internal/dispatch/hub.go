package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

// DefaultSubscriptionBuffer is used when a non-positive buffer is requested.
const DefaultSubscriptionBuffer = 64

// Filter selects the notifications a subscription receives, nil accepts all.
type Filter func(n *event.Notification) bool

// Hub is a sink that fans notifications out to in-process subscribers.
// Slow subscribers lose notifications instead of blocking delivery.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
}

// Subscription receives notifications from a Hub until closed.
type Subscription struct {
	hub    *Hub
	id     uint64
	filter Filter
	ch     chan *event.Notification

	dropped atomic.Uint64
	once    sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Name implements Sink.
func (h *Hub) Name() string {
	return "hub"
}

// Subscribe registers a subscriber.
func (h *Hub) Subscribe(buffer int, filter Filter) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++

	sub := &Subscription{
		hub:    h,
		id:     h.nextID,
		filter: filter,
		ch:     make(chan *event.Notification, buffer),
	}
	h.subs[sub.id] = sub

	return sub
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Send implements Sink. Every subscriber receives its own copy.
func (h *Hub) Send(_ context.Context, n *event.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.filter != nil && !sub.filter(n) {
			continue
		}

		select {
		case sub.ch <- n.Clone():
		default:
			sub.dropped.Add(1)
		}
	}

	return nil
}

// C returns the channel notifications arrive on. It is closed by Close.
func (s *Subscription) C() <-chan *event.Notification {
	return s.ch
}

// Dropped returns the number of notifications lost because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()

		close(s.ch)
	})
}
