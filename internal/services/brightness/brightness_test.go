package brightness

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/vibepanel/internal/mainloop"
)

func withSyncPoster(t *testing.T) {
	t.Helper()
	mainloop.SetPoster(func(fn func()) { fn() })
	t.Cleanup(func() { mainloop.SetPoster(mainloop.GLibPost) })
}

func writeBacklight(t *testing.T, dir, device string, brightness, max int) string {
	t.Helper()
	devDir := filepath.Join(dir, device)
	require.NoError(t, os.MkdirAll(devDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(devDir, "max_brightness"),
		[]byte(strconv.Itoa(max)+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(devDir, "brightness"),
		[]byte(strconv.Itoa(brightness)+"\n"), 0o644))
	return devDir
}

func noBus() (*dbus.Conn, error) { return nil, os.ErrNotExist }

func TestFindBacklight(t *testing.T) {
	dir := t.TempDir()
	writeBacklight(t, dir, "intel_backlight", 400, 1000)

	device, maxRaw, ok := findBacklight(dir)

	require.True(t, ok)
	assert.Equal(t, "intel_backlight", device)
	assert.Equal(t, 1000, maxRaw)
}

func TestFindBacklightNoDevices(t *testing.T) {
	_, _, ok := findBacklight(t.TempDir())
	assert.False(t, ok)
}

func TestServiceReadsInitialPercent(t *testing.T) {
	withSyncPoster(t)
	dir := t.TempDir()
	writeBacklight(t, dir, "amdgpu_bl0", 250, 1000)

	s := newService(dir, noBus)
	t.Cleanup(s.Close)

	snap := s.Snapshot()
	assert.True(t, snap.Available)
	assert.Equal(t, 25.0, snap.Percent)
	assert.Equal(t, "amdgpu_bl0", snap.Device)
}

func TestServiceUnavailableWithoutBacklight(t *testing.T) {
	withSyncPoster(t)

	s := newService(t.TempDir(), noBus)
	t.Cleanup(s.Close)

	assert.False(t, s.Snapshot().Available)
}

func TestExternalChangeIsPickedUp(t *testing.T) {
	withSyncPoster(t)
	dir := t.TempDir()
	devDir := writeBacklight(t, dir, "intel_backlight", 250, 1000)

	s := newService(dir, noBus)
	t.Cleanup(s.Close)

	// Give the watcher a moment to install before mutating the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(devDir, "brightness"),
		[]byte("750\n"), 0o644))

	assert.Eventually(t, func() bool {
		return s.Snapshot().Percent == 75.0
	}, 2*time.Second, 20*time.Millisecond)
}
