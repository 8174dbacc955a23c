// Package popover enforces that at most one popover is open across the
// whole panel: opening one dismisses whichever was open before.
package popover

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// ID identifies one SetActive registration. IDs start at 1 and are never
// reused, so a stale ClearIfActive can always be told apart from a current
// one.
type ID uint64

// Dismissible is the handle a widget gives the tracker so it can be closed
// when another popover opens.
type Dismissible interface {
	IsVisible() bool
	Dismiss()
}

type active struct {
	id      ID
	popover Dismissible
}

// Tracker tracks the single active popover. All methods must be called
// from the UI thread.
type Tracker struct {
	mu     sync.Mutex
	nextID ID
	active *active
}

var (
	globalOnce sync.Once
	global     *Tracker
)

// Global returns the process-wide tracker, creating it on first use.
func Global() *Tracker {
	globalOnce.Do(func() {
		global = NewTracker()
	})
	return global
}

func NewTracker() *Tracker {
	return &Tracker{nextID: 1}
}

// SetActive dismisses the previous popover if it is still visible, then
// records p as the active one. The old popover's Dismiss runs before p is
// stored, so its close handler can never see or evict the incoming
// popover; the slot is emptied first, so a handler that calls back into
// the tracker finds it vacant and cannot recurse.
func (t *Tracker) SetActive(p Dismissible) ID {
	t.mu.Lock()
	previous := t.active
	t.active = nil
	t.mu.Unlock()

	if previous != nil && previous.popover.IsVisible() {
		log.Trace().Uint64("dismissed", uint64(previous.id)).Msg("popover displaced")
		previous.popover.Dismiss()
	}

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.active = &active{id: id, popover: p}
	t.mu.Unlock()
	return id
}

// ClearIfActive clears the slot only when id is still the active
// registration. Stale calls from popovers that were already displaced are
// no-ops.
func (t *Tracker) ClearIfActive(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != nil && t.active.id == id {
		t.active = nil
	}
}

// DismissActive closes the active popover, if any. The slot is emptied
// before Dismiss runs, for the same re-entrancy reason as SetActive.
func (t *Tracker) DismissActive() {
	t.mu.Lock()
	current := t.active
	t.active = nil
	t.mu.Unlock()

	if current != nil && current.popover.IsVisible() {
		current.popover.Dismiss()
	}
}

// HasActive reports whether a popover currently holds the slot.
func (t *Tracker) HasActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != nil
}
