package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/vibepanel/internal/compositor"
	"github.com/bnema/vibepanel/internal/mainloop"
	"github.com/bnema/vibepanel/internal/services"
)

type fakeBackend struct {
	onWorkspace compositor.WorkspaceCallback
	onWindow    compositor.WindowCallback
	switchedTo  []int
}

func (f *fakeBackend) Name() string { return "Fake" }

func (f *fakeBackend) Start(onWS compositor.WorkspaceCallback, onWin compositor.WindowCallback) {
	f.onWorkspace = onWS
	f.onWindow = onWin
}

func (f *fakeBackend) Stop() {}

func (f *fakeBackend) ListWorkspaces() []compositor.WorkspaceMeta {
	return []compositor.WorkspaceMeta{{ID: 1, Name: "1"}}
}

func (f *fakeBackend) WorkspaceSnapshot() compositor.WorkspaceSnapshot {
	return compositor.NewWorkspaceSnapshot()
}

func (f *fakeBackend) FocusedWindow() (compositor.WindowInfo, bool) {
	return compositor.WindowInfo{}, false
}

func (f *fakeBackend) SwitchWorkspace(id int) { f.switchedTo = append(f.switchedTo, id) }

func (f *fakeBackend) QuitCompositor() {}

func TestServiceForwardsManagerSnapshots(t *testing.T) {
	mainloop.SetPoster(func(fn func()) { fn() })
	t.Cleanup(func() { mainloop.SetPoster(mainloop.GLibPost) })
	t.Cleanup(compositor.ResetGlobal)

	backend := &fakeBackend{}
	compositor.InitGlobalWithBackend(backend)
	// The package singleton survives across tests, so exercise newService
	// directly.
	s := newService()

	var got []compositor.WorkspaceSnapshot
	var id services.CallbackID
	id = s.Connect(func(snap compositor.WorkspaceSnapshot) { got = append(got, snap) })
	require.Len(t, got, 1, "connect delivers the current snapshot")

	next := compositor.NewWorkspaceSnapshot()
	next.Active[4] = true
	backend.onWorkspace(next)

	require.Len(t, got, 2)
	assert.True(t, got[1].Active[4])
	assert.True(t, s.Snapshot().Active[4])

	s.Disconnect(id)
	backend.onWorkspace(compositor.NewWorkspaceSnapshot())
	assert.Len(t, got, 2)

	s.Switch(7)
	assert.Equal(t, []int{7}, backend.switchedTo)
	assert.Len(t, s.ListWorkspaces(), 1)
}
