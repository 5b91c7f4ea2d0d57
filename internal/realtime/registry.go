// Package realtime tracks which observers watch which lots and pushes
// committed bids to them.
package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/auction"
)

// Observer is a connected client that can receive bid summaries.
// Deliver must not block; a returned error marks the observer dead.
type Observer interface {
	ID() uuid.UUID
	Deliver(ctx context.Context, summary auction.BidSummary) error
	Close()
}

type membership struct {
	observer Observer
	lots     map[uuid.UUID]struct{}
}

// Registry maps lots to their observers and observers to their lots.
// Both indexes change under one lock so no reader sees half an edge.
type Registry struct {
	mu        sync.RWMutex
	lots      map[uuid.UUID]map[uuid.UUID]struct{}
	observers map[uuid.UUID]*membership
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		lots:      make(map[uuid.UUID]map[uuid.UUID]struct{}),
		observers: make(map[uuid.UUID]*membership),
	}
}

// Join subscribes observer to lotID. Joining twice is a no-op.
func (r *Registry) Join(observer Observer, lotID uuid.UUID) {
	id := observer.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.observers[id]
	if !ok {
		m = &membership{observer: observer, lots: make(map[uuid.UUID]struct{})}
		r.observers[id] = m
	}
	m.lots[lotID] = struct{}{}

	members, ok := r.lots[lotID]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		r.lots[lotID] = members
	}
	members[id] = struct{}{}
}

// Leave unsubscribes the observer from lotID. Leaving a lot that was never
// joined is a no-op.
func (r *Registry) Leave(observerID, lotID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.observers[observerID]
	if !ok {
		return
	}
	if _, joined := m.lots[lotID]; !joined {
		return
	}

	delete(m.lots, lotID)
	if len(m.lots) == 0 {
		delete(r.observers, observerID)
	}
	r.removeMember(lotID, observerID)
}

// DropObserver removes every subscription of the observer and reports whether
// it had any.
func (r *Registry) DropObserver(observerID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.observers[observerID]
	if !ok {
		return false
	}
	for lotID := range m.lots {
		r.removeMember(lotID, observerID)
	}
	delete(r.observers, observerID)
	return true
}

// caller holds r.mu
func (r *Registry) removeMember(lotID, observerID uuid.UUID) {
	members := r.lots[lotID]
	delete(members, observerID)
	if len(members) == 0 {
		delete(r.lots, lotID)
	}
}

// MembersOf returns the IDs of the lot's observers in no particular order
func (r *Registry) MembersOf(lotID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.lots[lotID]
	ids := make([]uuid.UUID, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// Members returns a snapshot of the lot's observers for delivery
func (r *Registry) Members(lotID uuid.UUID) []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.lots[lotID]
	observers := make([]Observer, 0, len(members))
	for id := range members {
		observers = append(observers, r.observers[id].observer)
	}
	return observers
}

// LotsOf returns the lots the observer currently watches
func (r *Registry) LotsOf(observerID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.observers[observerID]
	if !ok {
		return nil
	}
	lots := make([]uuid.UUID, 0, len(m.lots))
	for lotID := range m.lots {
		lots = append(lots, lotID)
	}
	return lots
}
