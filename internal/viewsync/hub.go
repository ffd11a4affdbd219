// Package viewsync keeps independent station views consistent with the
// shared record store. A subscription embodies one filter+ordering pair as a
// fetch closure; whenever the underlying collection changes, every matching
// subscriber receives a full replacement snapshot, never a diff, and
// re-renders entirely from it. The hub holds no per-subscriber state beyond
// the fetch itself; closing the subscription is the only cancellation.
package viewsync

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/mirclinic/clinic-core/internal/observability/metrics"
)

// FetchFunc executes one subscriber's filtered, ordered query against the
// store and returns the complete matching set.
type FetchFunc func(ctx context.Context) (any, error)

type Subscription struct {
	id         uuid.UUID
	collection string
	fetch      FetchFunc
	updates    chan any
	done       chan struct{}
	closeOnce  sync.Once
	hub        *Hub

	// fetchMu ties fetch order to push order: concurrent notifiers cannot
	// overwrite a newer snapshot with an older fetch result.
	fetchMu sync.Mutex
}

// Updates delivers full replacement snapshots. The channel is never closed;
// select on Done to observe cancellation.
func (s *Subscription) Updates() <-chan any {
	return s.updates
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.unsubscribe(s)
		close(s.done)
	})
}

// push replaces any undelivered snapshot with the latest one. A slow
// subscriber only ever skips intermediate states, never sees a stale final
// state.
func (s *Subscription) push(snapshot any) {
	for {
		select {
		case s.updates <- snapshot:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[uuid.UUID]*Subscription
	metrics *metrics.BookingMetrics
}

func NewHub(m *metrics.BookingMetrics) *Hub {
	return &Hub{
		subs:    make(map[string]map[uuid.UUID]*Subscription),
		metrics: m,
	}
}

// Subscribe registers a live view over collection and delivers the initial
// snapshot before returning.
func (h *Hub) Subscribe(ctx context.Context, collection string, fetch FetchFunc) (*Subscription, error) {
	snapshot, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		id:         uuid.New(),
		collection: collection,
		fetch:      fetch,
		updates:    make(chan any, 1),
		done:       make(chan struct{}),
		hub:        h,
	}
	sub.updates <- snapshot

	h.mu.Lock()
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[uuid.UUID]*Subscription)
	}
	h.subs[collection][sub.id] = sub
	h.mu.Unlock()

	return sub, nil
}

// Notify re-executes every subscriber's fetch for the collection and pushes
// the resulting snapshots. A failed fetch is logged and skipped; the
// subscriber keeps its previous snapshot until the next change.
func (h *Hub) Notify(ctx context.Context, collection string) {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs[collection]))
	for _, s := range h.subs[collection] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.fetchMu.Lock()
		snapshot, err := sub.fetch(ctx)
		if err != nil {
			sub.fetchMu.Unlock()
			log.Printf("viewsync: fetch for %s subscriber %s failed: %v", collection, sub.id, err)
			continue
		}
		sub.push(snapshot)
		sub.fetchMu.Unlock()
		h.metrics.ObserveSnapshot(collection)
	}
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.subs[sub.collection]; m != nil {
		delete(m, sub.id)
	}
}
