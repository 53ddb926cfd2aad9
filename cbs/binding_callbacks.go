package cbs

import (
	"sync"

	"github.com/google/uuid"
)

// Callback is a script callable a host stored for later invocation.
type Callback struct {
	ID  uuid.UUID
	Key Value
	Fn  Value
}

// CallbackRegistry keeps callables that scripts hand to the host, for
// example through chart.on(time, fn). The host's event loop later invokes
// them through an Invoker such as *Script.
type CallbackRegistry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]Callback
	order   []uuid.UUID
}

func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{entries: make(map[uuid.UUID]Callback)}
}

// Register stores fn under key and returns its handle.
func (r *CallbackRegistry) Register(key, fn Value) (uuid.UUID, error) {
	if !fn.Callable() {
		return uuid.Nil, newError(NotCallable, Position{}, "%s is not callable", fn.Type().Name())
	}
	id := uuid.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = Callback{ID: id, Key: key, Fn: fn}
	r.order = append(r.order, id)
	return id, nil
}

func (r *CallbackRegistry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *CallbackRegistry) Lookup(id uuid.UUID) (Callback, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.entries[id]
	return cb, ok
}

func (r *CallbackRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Select returns the callbacks whose key satisfies match, in registration
// order.
func (r *CallbackRegistry) Select(match func(key Value) bool) []Callback {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Callback
	for _, id := range r.order {
		cb := r.entries[id]
		if match == nil || match(cb.Key) {
			out = append(out, cb)
		}
	}
	return out
}

// Invoke runs the callback id with args.
func (r *CallbackRegistry) Invoke(inv Invoker, id uuid.UUID, args ...Value) (Value, error) {
	cb, ok := r.Lookup(id)
	if !ok {
		return Value{}, newError(MissingMember, Position{}, "no callback %s", id)
	}
	return inv.Invoke(cb.Fn, args...)
}
