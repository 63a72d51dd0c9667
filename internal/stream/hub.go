// Package stream implements the push channel behind the live order
// views.  The transaction service notifies the hub on every change;
// each subscriber owns a Subscription whose channel carries coalesced
// change notifications.  Subscribers re-query the store on every
// notification instead of applying diffs, so dropping intermediate
// notifications while a subscriber is slow loses nothing.  A
// Subscription must be closed on teardown; leaking one leaks its slot
// in the hub.
package stream

import (
	"sync"

	"github.com/sribagavath/sbb-server/internal/model"
)

// Filter decides whether a subscriber cares about a change.  A nil
// filter matches everything.
type Filter func(model.Transaction) bool

// OwnedBy returns a filter matching transactions that belong to the
// given identity.
func OwnedBy(owner model.Owner) Filter {
	return func(tx model.Transaction) bool {
		if owner.ByAccount() {
			return tx.Owner.UserID == owner.UserID
		}
		return tx.Owner.DeviceID == owner.DeviceID
	}
}

// Subscription is a registered listener.  C fires (capacity one,
// coalesced) whenever a matching transaction changes.  Close must be
// called exactly once when the subscriber is done.
type Subscription struct {
	C      chan struct{}
	filter Filter
	hub    *Hub
	once   sync.Once
}

// Close unregisters the subscription and releases its channel.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.drop(s) })
}

// Hub fans change notifications out to live subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a listener for changes matching filter.  The
// caller owns the returned Subscription and must Close it.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	s := &Subscription{C: make(chan struct{}, 1), filter: filter, hub: h}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Notify wakes every subscriber whose filter matches the changed
// transaction.  A subscriber that already has a pending notification
// is not queued again; it will observe this change when it re-reads.
func (h *Hub) Notify(tx model.Transaction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if s.filter != nil && !s.filter(tx) {
			continue
		}
		select {
		case s.C <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) drop(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	close(s.C)
}
