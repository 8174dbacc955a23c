// Package services holds the shared service-bus substrate: the callback
// registry every service multicasts through, and the station base that
// implements the common snapshot/connect/publish lifecycle.
//
// Everything in this package is single-threaded on the UI main loop.
// Background work inside services must cross over via mainloop.Post before
// touching a registry or station.
package services

// CallbackID identifies a registered callback. IDs are monotonic from 1 and
// never reused within a registry, so stale IDs unregister as no-ops instead
// of clobbering a successor.
type CallbackID uint64

// Registry is an insertion-ordered multicast list of snapshot callbacks.
//
// Not safe for concurrent use; UI thread only.
type Registry[T any] struct {
	nextID    CallbackID
	order     []CallbackID
	callbacks map[CallbackID]func(T)
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		nextID:    1,
		callbacks: make(map[CallbackID]func(T)),
	}
}

// Register appends cb and returns its fresh ID.
func (r *Registry[T]) Register(cb func(T)) CallbackID {
	id := r.nextID
	r.nextID++
	r.order = append(r.order, id)
	r.callbacks[id] = cb
	return id
}

// Unregister removes the callback; no-op if the ID is absent.
func (r *Registry[T]) Unregister(id CallbackID) {
	if _, ok := r.callbacks[id]; !ok {
		return
	}
	delete(r.callbacks, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Notify invokes every callback present at entry, in insertion order.
//
// The ID list is copied first so callbacks may mutate the registry:
// registrations made during Notify are not invoked by this call, and
// removals are honoured before the next callback runs.
func (r *Registry[T]) Notify(snapshot T) {
	ids := make([]CallbackID, len(r.order))
	copy(ids, r.order)
	for _, id := range ids {
		if cb, ok := r.callbacks[id]; ok {
			cb(snapshot)
		}
	}
}

// NotifySingle invokes only the callback with the given ID, if present.
func (r *Registry[T]) NotifySingle(id CallbackID, snapshot T) {
	if cb, ok := r.callbacks[id]; ok {
		cb(snapshot)
	}
}

// Len reports the number of registered callbacks.
func (r *Registry[T]) Len() int {
	return len(r.callbacks)
}
