package compositor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHyprlandBackend(replies map[string]string) *HyprlandBackend {
	b := NewHyprlandBackend()
	b.request = func(cmd string) ([]byte, error) {
		reply, ok := replies[cmd]
		if !ok {
			return nil, fmt.Errorf("unexpected command %q", cmd)
		}
		return []byte(reply), nil
	}
	return b
}

func hyprTestReplies() map[string]string {
	return map[string]string{
		"j/workspaces": `[
			{"id": 1, "name": "1", "monitor": "DP-1", "windows": 2},
			{"id": 3, "name": "web", "monitor": "DP-1", "windows": 1},
			{"id": 11, "name": "11", "monitor": "eDP-1", "windows": 0}
		]`,
		"j/monitors": `[
			{"name": "DP-1", "focused": true, "activeWorkspace": {"id": 1, "name": "1"}},
			{"name": "eDP-1", "focused": false, "activeWorkspace": {"id": 11, "name": "11"}}
		]`,
		"j/activewindow": `{
			"address": "0x5f2a", "class": "firefox", "title": "Mozilla Firefox",
			"workspace": {"id": 1}
		}`,
	}
}

func TestHyprlandRefreshBuildsSnapshot(t *testing.T) {
	b := newTestHyprlandBackend(hyprTestReplies())

	require.NoError(t, b.refreshAll())
	snapshot := b.WorkspaceSnapshot()

	assert.True(t, snapshot.Active[1])
	assert.True(t, snapshot.Active[11])
	assert.True(t, snapshot.Occupied[1])
	assert.True(t, snapshot.Occupied[3])
	assert.False(t, snapshot.Occupied[11])
	assert.Equal(t, uint(2), snapshot.WindowCounts[1])

	dp1 := snapshot.PerOutput["DP-1"]
	assert.True(t, dp1.Active[1])
	assert.True(t, dp1.Occupied[3])
	assert.False(t, dp1.Active[11])
}

func TestHyprlandRefreshTracksFocusedWindow(t *testing.T) {
	b := newTestHyprlandBackend(hyprTestReplies())

	require.NoError(t, b.refreshAll())
	win, ok := b.FocusedWindow()

	require.True(t, ok)
	assert.Equal(t, "Mozilla Firefox", win.Title)
	assert.Equal(t, "firefox", win.AppID)
	assert.Equal(t, 1, win.WorkspaceID)
}

func TestHyprlandListWorkspacesCoversFixedStrip(t *testing.T) {
	b := newTestHyprlandBackend(hyprTestReplies())
	require.NoError(t, b.refreshAll())

	metas := b.ListWorkspaces()

	// Ten fixed slots plus workspace 11 that actually exists.
	require.Len(t, metas, 11)
	assert.Equal(t, 1, metas[0].ID)
	assert.Equal(t, "web", metas[2].Name)
	assert.Equal(t, 11, metas[10].ID)
}

func TestHyprlandActiveWindowEvent(t *testing.T) {
	b := newTestHyprlandBackend(hyprTestReplies())

	var got []WindowInfo
	b.onWindow = func(w WindowInfo) { got = append(got, w) }

	b.handleEvent("activewindow>>foot,fish /home/user")
	require.Len(t, got, 1)
	assert.Equal(t, "foot", got[0].AppID)
	assert.Equal(t, "fish /home/user", got[0].Title)

	b.handleEvent("activewindow>>,")
	require.Len(t, got, 2)
	assert.True(t, got[1].IsEmpty())
	_, ok := b.FocusedWindow()
	assert.False(t, ok)
}

func TestHyprlandTitleWithCommasSurvives(t *testing.T) {
	b := newTestHyprlandBackend(hyprTestReplies())
	b.handleEvent("activewindow>>firefox,one, two, three")

	win, ok := b.FocusedWindow()
	require.True(t, ok)
	assert.Equal(t, "one, two, three", win.Title)
}

func TestHyprlandWorkspaceEventTriggersRefresh(t *testing.T) {
	b := newTestHyprlandBackend(hyprTestReplies())

	var snapshots []WorkspaceSnapshot
	b.onWorkspace = func(s WorkspaceSnapshot) { snapshots = append(snapshots, s) }

	b.handleEvent("workspace>>3")

	require.Len(t, snapshots, 1)
	assert.True(t, snapshots[0].Active[1])
}

func TestHyprlandUrgentEventFlagsWorkspace(t *testing.T) {
	replies := hyprTestReplies()
	replies["j/clients"] = `[
		{"address": "0xabcd", "workspace": {"id": 3}},
		{"address": "0x1234", "workspace": {"id": 1}}
	]`
	b := newTestHyprlandBackend(replies)
	require.NoError(t, b.refreshAll())

	b.handleEvent("urgent>>abcd")
	snapshot := b.WorkspaceSnapshot()
	assert.True(t, snapshot.Urgent[3])

	// Switching to the urgent workspace clears the flag.
	replies["j/monitors"] = `[
		{"name": "DP-1", "focused": true, "activeWorkspace": {"id": 3, "name": "web"}}
	]`
	b.handleEvent("workspacev2>>3,web")
	snapshot = b.WorkspaceSnapshot()
	assert.False(t, snapshot.Urgent[3])
	assert.True(t, snapshot.Active[3])
}

func TestHyprlandMalformedEventIsIgnored(t *testing.T) {
	b := newTestHyprlandBackend(map[string]string{})

	assert.NotPanics(t, func() {
		b.handleEvent("no separator here")
		b.handleEvent("")
	})
}

func TestNextBackoffGrowsAndCaps(t *testing.T) {
	cur := hyprReconnectInitial
	cur = nextBackoff(cur, hyprReconnectInitial, hyprReconnectMax, hyprReconnectFactor)
	assert.Equal(t, hyprReconnectInitial*3/2, cur)

	for i := 0; i < 20; i++ {
		cur = nextBackoff(cur, hyprReconnectInitial, hyprReconnectMax, hyprReconnectFactor)
	}
	assert.Equal(t, hyprReconnectMax, cur)
}
