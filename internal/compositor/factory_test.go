package compositor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearSessionEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	t.Setenv("NIRI_SOCKET", "")
	t.Setenv("MANGO_SOCKET", "")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
}

func TestNewBackendExplicitChoices(t *testing.T) {
	clearSessionEnv(t)

	assert.Equal(t, "Hyprland", NewBackend("hyprland").Name())
	assert.Equal(t, "Niri", NewBackend("niri").Name())
	assert.Equal(t, "MangoWC", NewBackend("mango").Name())
	assert.Equal(t, "Stub", NewBackend("river").Name())
}

func TestDetectPrefersHyprland(t *testing.T) {
	clearSessionEnv(t)
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "abc123")
	t.Setenv("NIRI_SOCKET", "/tmp/niri.sock")

	assert.Equal(t, "Hyprland", NewBackend("auto").Name())
}

func TestDetectFindsNiri(t *testing.T) {
	clearSessionEnv(t)
	t.Setenv("NIRI_SOCKET", "/tmp/niri.sock")

	assert.Equal(t, "Niri", NewBackend("auto").Name())
}

func TestDetectFallsBackToStub(t *testing.T) {
	clearSessionEnv(t)

	assert.Equal(t, "Stub", NewBackend("auto").Name())
}
