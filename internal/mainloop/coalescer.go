package mainloop

import "sync"

// Coalescer collapses bursts of same-key tasks into a single main-loop
// dispatch. While a key is in flight, later posts for it just replace the
// stored callback, so the dispatch always runs the newest one.
type Coalescer[K comparable] struct {
	mu        sync.Mutex
	inflight  map[K]func()
	post      func(func())
	destroyed bool
}

// NewCoalescer builds a coalescer that schedules through post, typically
// mainloop.Post.
func NewCoalescer[K comparable](post func(func())) *Coalescer[K] {
	if post == nil {
		panic("mainloop.NewCoalescer: post function cannot be nil")
	}
	return &Coalescer[K]{
		inflight: make(map[K]func()),
		post:     post,
	}
}

// Post schedules fn under key. When the key already has a dispatch
// pending, fn replaces the pending callback instead of scheduling again.
func (c *Coalescer[K]) Post(key K, fn func()) {
	if fn == nil {
		return
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	_, pending := c.inflight[key]
	c.inflight[key] = fn
	post := c.post
	c.mu.Unlock()

	if pending {
		return
	}
	post(func() { c.dispatch(key) })
}

func (c *Coalescer[K]) dispatch(key K) {
	c.mu.Lock()
	fn := c.inflight[key]
	delete(c.inflight, key)
	destroyed := c.destroyed
	c.mu.Unlock()

	if fn != nil && !destroyed {
		fn()
	}
}

// Destroy drops pending work and refuses further posts. Dispatches already
// queued on the main loop become no-ops.
func (c *Coalescer[K]) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	c.inflight = make(map[K]func())
	c.mu.Unlock()
}
