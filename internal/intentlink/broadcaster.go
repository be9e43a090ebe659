package intentlink

import (
	"context"
	"slices"
	"sync"

	"github.com/skobkin/wedgego/internal/datawedge"
)

// Broadcaster sends intents to the device and delivers matching inbound intents to receivers.
type Broadcaster interface {
	SendBroadcast(ctx context.Context, intent datawedge.Intent) error
	RegisterReceiver(filter Filter, fn func(datawedge.Intent)) (Registration, error)
}

// Registration releases a receiver. Unregister is safe to call more than once.
type Registration interface {
	Unregister()
}

// Filter matches inbound intents by action and, optionally, category.
type Filter struct {
	Actions  []string
	Category string
}

func NewFilter(actions ...string) Filter {
	return Filter{Actions: actions}
}

func (f Filter) Match(intent datawedge.Intent) bool {
	if f.Category != "" && f.Category != intent.Category {
		return false
	}

	return slices.Contains(f.Actions, intent.Action)
}

type receiver struct {
	filter Filter
	fn     func(datawedge.Intent)
}

// registry keeps receivers and dispatches intents to them outside of its lock.
type registry struct {
	mu        sync.RWMutex
	nextID    uint64
	receivers map[uint64]receiver
}

func (r *registry) add(filter Filter, fn func(datawedge.Intent)) Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.receivers == nil {
		r.receivers = make(map[uint64]receiver)
	}
	r.nextID++
	id := r.nextID
	r.receivers[id] = receiver{filter: filter, fn: fn}

	return &registration{release: func() {
		r.mu.Lock()
		delete(r.receivers, id)
		r.mu.Unlock()
	}}
}

func (r *registry) dispatch(intent datawedge.Intent) int {
	r.mu.RLock()
	matched := make([]func(datawedge.Intent), 0, len(r.receivers))
	ids := make([]uint64, 0, len(r.receivers))
	for id := range r.receivers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		rcv := r.receivers[id]
		if rcv.filter.Match(intent) {
			matched = append(matched, rcv.fn)
		}
	}
	r.mu.RUnlock()

	for _, fn := range matched {
		fn(intent)
	}

	return len(matched)
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.receivers)
}

type registration struct {
	once    sync.Once
	release func()
}

func (r *registration) Unregister() {
	r.once.Do(r.release)
}
