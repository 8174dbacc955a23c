package compositor

// StubBackend is the fallback when no supported compositor is present. It
// reports a single empty workspace set and never emits events, letting the
// panel run (clock, battery, etc.) on unsupported sessions.
type StubBackend struct{}

func NewStubBackend() *StubBackend { return &StubBackend{} }

func (s *StubBackend) Name() string { return "Stub" }

func (s *StubBackend) Start(onWorkspaceUpdate WorkspaceCallback, onWindowUpdate WindowCallback) {
}

func (s *StubBackend) Stop() {}

func (s *StubBackend) ListWorkspaces() []WorkspaceMeta { return nil }

func (s *StubBackend) WorkspaceSnapshot() WorkspaceSnapshot {
	return NewWorkspaceSnapshot()
}

func (s *StubBackend) FocusedWindow() (WindowInfo, bool) {
	return WindowInfo{}, false
}

func (s *StubBackend) SwitchWorkspace(id int) {}

func (s *StubBackend) QuitCompositor() {}
