package compositor

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bnema/vibepanel/internal/config"
	"github.com/bnema/vibepanel/internal/mainloop"
	"github.com/bnema/vibepanel/internal/services"
)

// Manager owns the single backend instance and fans its events out to
// subscribers. Backend callbacks arrive on the monitoring goroutine and are
// bounced onto the UI thread via mainloop.Post before snapshots are stored
// and callbacks run, so subscribers never need their own locking.
// updateKind keys the coalescer so workspace and window bursts merge
// independently.
type updateKind int

const (
	workspaceUpdate updateKind = iota
	windowUpdate
)

type Manager struct {
	backend   Backend
	coalescer *mainloop.Coalescer[updateKind]

	mu         sync.Mutex
	workspaces *services.Station[WorkspaceSnapshot]
	windows    *services.Station[WindowInfo]
}

var (
	globalMu sync.Mutex
	global   *Manager
)

// InitGlobal creates the process-wide manager, selecting and starting the
// backend for cfg. Calling it again is a no-op.
func InitGlobal(cfg *config.Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		log.Debug().Msg("compositor manager already initialised")
		return
	}
	global = newManager(NewBackend(cfg.BackendChoice()))
	global.start()
}

// InitGlobalWithBackend is InitGlobal with an explicit backend, for tests
// and for the CLI paths that bypass auto-detection.
func InitGlobalWithBackend(b Backend) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		log.Debug().Msg("compositor manager already initialised")
		return
	}
	global = newManager(b)
	global.start()
}

// Global returns the process-wide manager. It panics when InitGlobal has
// not run yet; that is a programming error, not a runtime condition.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		panic("compositor.Global called before compositor.InitGlobal")
	}
	return global
}

// ResetGlobal stops the backend and discards the singleton. Test helper.
func ResetGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		global.Stop()
		global = nil
	}
}

func newManager(b Backend) *Manager {
	return &Manager{
		backend:   b,
		coalescer: mainloop.NewCoalescer[updateKind](mainloop.Post),
		workspaces: services.NewStation(NewWorkspaceSnapshot(),
			WorkspaceSnapshot.Equal),
		windows: services.NewStation(WindowInfo{},
			func(a, b WindowInfo) bool { return a == b }),
	}
}

func (m *Manager) start() {
	m.backend.Start(m.handleWorkspaceUpdate, m.handleWindowUpdate)

	// Seed the stations with whatever the backend learned during Start, so
	// subscribers connecting before the first event still see real state.
	m.workspaces.Publish(m.backend.WorkspaceSnapshot())
	if win, ok := m.backend.FocusedWindow(); ok {
		m.windows.Publish(win)
	}
	log.Info().Str("backend", m.backend.Name()).Msg("compositor backend started")
}

// Stop shuts the backend down and drops queued dispatches. Subscriptions
// stay registered but receive no further updates.
func (m *Manager) Stop() {
	m.backend.Stop()
	m.coalescer.Destroy()
}

// BackendName names the running backend.
func (m *Manager) BackendName() string {
	return m.backend.Name()
}

// handleWorkspaceUpdate bounces a backend snapshot to the UI thread.
// Bursts (a window moving fires several compositor events back to back)
// coalesce into one dispatch carrying the newest snapshot.
func (m *Manager) handleWorkspaceUpdate(snapshot WorkspaceSnapshot) {
	owned := snapshot.Clone()
	m.coalescer.Post(workspaceUpdate, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.workspaces.Publish(owned)
	})
}

func (m *Manager) handleWindowUpdate(win WindowInfo) {
	m.coalescer.Post(windowUpdate, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.windows.Publish(win)
	})
}

// RegisterWorkspaceCallback subscribes cb to workspace snapshots. The
// current snapshot is delivered synchronously before the call returns.
func (m *Manager) RegisterWorkspaceCallback(cb WorkspaceCallback) services.CallbackID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workspaces.Connect(func(s WorkspaceSnapshot) { cb(s) })
}

// UnregisterWorkspaceCallback removes a workspace subscription.
func (m *Manager) UnregisterWorkspaceCallback(id services.CallbackID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workspaces.Disconnect(id)
}

// RegisterWindowCallback subscribes cb to focused-window updates, with an
// immediate synchronous delivery of the current value.
func (m *Manager) RegisterWindowCallback(cb WindowCallback) services.CallbackID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.windows.Connect(func(w WindowInfo) { cb(w) })
}

// UnregisterWindowCallback removes a focused-window subscription.
func (m *Manager) UnregisterWindowCallback(id services.CallbackID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows.Disconnect(id)
}

// WorkspaceSnapshot returns the last snapshot delivered to subscribers.
func (m *Manager) WorkspaceSnapshot() WorkspaceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workspaces.Snapshot()
}

// FocusedWindow returns the last focused-window value delivered to
// subscribers.
func (m *Manager) FocusedWindow() WindowInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.windows.Snapshot()
}

// ListWorkspaces proxies to the backend.
func (m *Manager) ListWorkspaces() []WorkspaceMeta {
	return m.backend.ListWorkspaces()
}

// SwitchWorkspace asks the compositor to focus workspace id.
func (m *Manager) SwitchWorkspace(id int) {
	m.backend.SwitchWorkspace(id)
}

// QuitCompositor asks the compositor to exit the session.
func (m *Manager) QuitCompositor() {
	m.backend.QuitCompositor()
}
