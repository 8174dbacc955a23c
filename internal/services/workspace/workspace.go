// Package workspace re-exposes compositor workspace state with the
// standard service connect semantics, so widgets do not talk to the
// compositor manager directly.
package workspace

import (
	"sync"

	"github.com/bnema/vibepanel/internal/compositor"
	"github.com/bnema/vibepanel/internal/services"
)

// Service mirrors the compositor manager's workspace snapshots.
type Service struct {
	mu      sync.Mutex
	station *services.Station[compositor.WorkspaceSnapshot]
}

var instance = sync.OnceValue(newService)

// Get returns the process-wide workspace service. Requires the compositor
// manager to be initialised; call from the UI thread.
func Get() *Service { return instance() }

func newService() *Service {
	s := &Service{
		station: services.NewStation(compositor.NewWorkspaceSnapshot(),
			compositor.WorkspaceSnapshot.Equal),
	}
	compositor.Global().RegisterWorkspaceCallback(func(snapshot compositor.WorkspaceSnapshot) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.station.Publish(snapshot)
	})
	return s
}

func (s *Service) Snapshot() compositor.WorkspaceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.station.Snapshot()
}

func (s *Service) Connect(cb func(compositor.WorkspaceSnapshot)) services.CallbackID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.station.Connect(cb)
}

func (s *Service) Disconnect(id services.CallbackID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.station.Disconnect(id)
}

// ListWorkspaces proxies to the compositor backend.
func (s *Service) ListWorkspaces() []compositor.WorkspaceMeta {
	return compositor.Global().ListWorkspaces()
}

// Switch focuses workspace id.
func (s *Service) Switch(id int) {
	compositor.Global().SwitchWorkspace(id)
}
