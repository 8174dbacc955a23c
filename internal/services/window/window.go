// Package window re-exposes the compositor's focused-window state with
// the standard service connect semantics.
package window

import (
	"sync"

	"github.com/bnema/vibepanel/internal/compositor"
	"github.com/bnema/vibepanel/internal/services"
)

// Service mirrors the compositor manager's focused-window updates.
type Service struct {
	mu      sync.Mutex
	station *services.Station[compositor.WindowInfo]
}

var instance = sync.OnceValue(newService)

// Get returns the process-wide window service. Requires the compositor
// manager to be initialised; call from the UI thread.
func Get() *Service { return instance() }

func newService() *Service {
	s := &Service{
		station: services.NewStation(compositor.WindowInfo{},
			func(a, b compositor.WindowInfo) bool { return a == b }),
	}
	compositor.Global().RegisterWindowCallback(func(win compositor.WindowInfo) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.station.Publish(win)
	})
	return s
}

func (s *Service) Snapshot() compositor.WindowInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.station.Snapshot()
}

func (s *Service) Connect(cb func(compositor.WindowInfo)) services.CallbackID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.station.Connect(cb)
}

func (s *Service) Disconnect(id services.CallbackID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.station.Disconnect(id)
}
