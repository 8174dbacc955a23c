package services

// Station is the base every service embeds: it owns the canonical snapshot
// and the subscriber registry, and implements the shared lifecycle of
// connect with an immediate synchronous notify plus publish with
// redundant-change suppression.
//
// UI thread only, like the registry it wraps.
type Station[T any] struct {
	snapshot T
	equal    func(a, b T) bool
	registry *Registry[T]
}

// NewStation creates a station seeded with initial. The equal function
// decides whether a candidate snapshot is a redundant re-publish; it must
// compare every field subscribers can observe.
func NewStation[T any](initial T, equal func(a, b T) bool) *Station[T] {
	if equal == nil {
		panic("services.NewStation: equal function cannot be nil")
	}
	return &Station[T]{
		snapshot: initial,
		equal:    equal,
		registry: NewRegistry[T](),
	}
}

// Snapshot returns the current snapshot value.
func (s *Station[T]) Snapshot() T {
	return s.snapshot
}

// Connect registers cb and synchronously invokes it once with the current
// snapshot before returning, so subscribers render valid state on
// construction without waiting for an event.
func (s *Station[T]) Connect(cb func(T)) CallbackID {
	id := s.registry.Register(cb)
	s.registry.NotifySingle(id, s.snapshot)
	return id
}

// Disconnect removes a subscription; no-op for unknown IDs.
func (s *Station[T]) Disconnect(id CallbackID) {
	s.registry.Unregister(id)
}

// Publish replaces the snapshot and multicasts it, unless next is equal to
// the current snapshot, in which case nothing is dispatched.
// Reports whether a dispatch happened.
func (s *Station[T]) Publish(next T) bool {
	if s.equal(s.snapshot, next) {
		return false
	}
	s.snapshot = next
	s.registry.Notify(next)
	return true
}

// Subscribers reports the number of connected callbacks.
func (s *Station[T]) Subscribers() int {
	return s.registry.Len()
}
