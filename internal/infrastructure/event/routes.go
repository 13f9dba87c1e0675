package event

import (
	"sync"
	"sync/atomic"

	"github.com/medsupply/backend/internal/domain/shared"
)

// routeTable is an immutable snapshot of subscriptions. The "*" key holds
// handlers that receive every event.
type routeTable map[string][]shared.EventHandler

const allEvents = "*"

// routes is read on every publish and written only at wiring time, so
// readers load a snapshot and writers replace it.
type routes struct {
	mu    sync.Mutex
	table atomic.Pointer[routeTable]
}

func (r *routes) update(fn func(routeTable)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := routeTable{}
	if cur := r.table.Load(); cur != nil {
		for k, hs := range *cur {
			next[k] = append([]shared.EventHandler(nil), hs...)
		}
	}
	fn(next)
	r.table.Store(&next)
}

func (r *routes) add(h shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = []string{allEvents}
	}
	r.update(func(t routeTable) {
		for _, et := range eventTypes {
			t[et] = append(t[et], h)
		}
	})
}

func (r *routes) remove(h shared.EventHandler) {
	r.update(func(t routeTable) {
		for et, hs := range t {
			kept := hs[:0]
			for _, x := range hs {
				if x != h {
					kept = append(kept, x)
				}
			}
			if len(kept) == 0 {
				delete(t, et)
			} else {
				t[et] = kept
			}
		}
	})
}

// match returns the handlers for eventType, wildcard handlers last
func (r *routes) match(eventType string) []shared.EventHandler {
	cur := r.table.Load()
	if cur == nil {
		return nil
	}
	t := *cur
	if eventType == allEvents {
		return t[allEvents]
	}
	out := make([]shared.EventHandler, 0, len(t[eventType])+len(t[allEvents]))
	out = append(out, t[eventType]...)
	return append(out, t[allEvents]...)
}
