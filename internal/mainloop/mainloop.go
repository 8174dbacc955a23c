// Package mainloop marshals work from background threads onto the UI main loop.
//
// All service-bus state, callback registries, and the popover tracker are
// single-threaded: they live on the UI thread. Background workers (D-Bus
// handlers, compositor IPC readers, pollers) must cross over via Post.
package mainloop

import "sync"

// Poster schedules a function to run on the UI main loop.
type Poster func(func())

var (
	mu     sync.RWMutex
	poster Poster = GLibPost
)

// SetPoster replaces the scheduling primitive. Tests install a synchronous
// poster; production keeps the GLib idle source default.
func SetPoster(p Poster) {
	if p == nil {
		panic("mainloop.SetPoster: poster cannot be nil")
	}
	mu.Lock()
	poster = p
	mu.Unlock()
}

// Post schedules fn onto the UI main loop. Safe to call from any goroutine.
func Post(fn func()) {
	if fn == nil {
		return
	}
	mu.RLock()
	p := poster
	mu.RUnlock()
	p(fn)
}
