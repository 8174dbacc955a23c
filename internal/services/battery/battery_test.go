package battery

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

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

func writeSupply(t *testing.T, dir, name, kind string) {
	t.Helper()
	supply := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(supply, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(supply, "type"), []byte(kind+"\n"), 0o644))
}

func TestHasBatteryDetection(t *testing.T) {
	tests := []struct {
		name     string
		supplies map[string]string
		want     bool
	}{
		{name: "laptop", supplies: map[string]string{"AC": "Mains", "BAT0": "Battery"}, want: true},
		{name: "case-insensitive", supplies: map[string]string{"BAT1": "battery"}, want: true},
		{name: "desktop", supplies: map[string]string{"AC": "Mains"}, want: false},
		{name: "empty", supplies: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, kind := range tt.supplies {
				writeSupply(t, dir, name, kind)
			}
			assert.Equal(t, tt.want, hasBattery(dir))
		})
	}
}

func TestHasBatteryMissingDir(t *testing.T) {
	assert.False(t, hasBattery("/nonexistent/power_supply"))
}

func TestNoBatteryMeansPermanentlyUnavailable(t *testing.T) {
	withSyncPoster(t)
	s := newService(t.TempDir(), func() (*dbus.Conn, error) {
		t.Fatal("bus must not be touched without a battery")
		return nil, nil
	})
	t.Cleanup(s.Close)

	assert.False(t, s.Snapshot().Available)
}

func TestBatteryPresentIsAvailableBeforeBusAttach(t *testing.T) {
	withSyncPoster(t)
	dir := t.TempDir()
	writeSupply(t, dir, "BAT0", "Battery")

	attached := make(chan struct{})
	s := newService(dir, func() (*dbus.Conn, error) {
		close(attached)
		return nil, fmt.Errorf("bus down")
	})
	t.Cleanup(s.Close)

	snap := s.Snapshot()
	assert.True(t, snap.Available)
	assert.Equal(t, StateUnknown, snap.State)
	<-attached
}

func TestOwnerLossCollapsesSnapshot(t *testing.T) {
	withSyncPoster(t)
	dir := t.TempDir()
	writeSupply(t, dir, "BAT0", "Battery")

	s := newService(dir, func() (*dbus.Conn, error) {
		return nil, fmt.Errorf("bus down")
	})
	t.Cleanup(s.Close)
	require.True(t, s.Snapshot().Available)

	s.handleSignal(nil, &dbus.Signal{
		Name: "org.freedesktop.DBus.NameOwnerChanged",
		Body: []any{upowerName, ":1.7", ""},
	})

	snap := s.Snapshot()
	assert.False(t, snap.Available, "losing the daemon must take the widget to unavailable")
	assert.Equal(t, StateUnknown, snap.State)
}

func TestSnapshotFromPropertiesPrefersEnergyRatio(t *testing.T) {
	props := map[string]dbus.Variant{
		"Energy":     dbus.MakeVariant(40.0),
		"EnergyFull": dbus.MakeVariant(50.0),
		"Percentage": dbus.MakeVariant(99.0),
		"State":      dbus.MakeVariant(uint32(2)),
		"EnergyRate": dbus.MakeVariant(11.5),
		"TimeToEmpty": dbus.MakeVariant(int64(7200)),
	}

	snap := snapshotFromProperties(props)

	assert.InDelta(t, 80.0, snap.Percent, 0.001)
	assert.Equal(t, StateDischarging, snap.State)
	assert.Equal(t, 11.5, snap.EnergyRate)
	assert.Equal(t, int64(7200), snap.TimeToEmpty)
}

func TestSnapshotFromPropertiesFallsBackToPercentage(t *testing.T) {
	props := map[string]dbus.Variant{
		"Percentage": dbus.MakeVariant(57.0),
		"State":      dbus.MakeVariant(uint32(1)),
	}

	snap := snapshotFromProperties(props)

	assert.Equal(t, 57.0, snap.Percent)
	assert.Equal(t, StateCharging, snap.State)
}

func TestSnapshotFromPropertiesClampsPercent(t *testing.T) {
	props := map[string]dbus.Variant{
		"Energy":     dbus.MakeVariant(55.0),
		"EnergyFull": dbus.MakeVariant(50.0),
	}

	assert.Equal(t, 100.0, snapshotFromProperties(props).Percent)
}

func TestChargeStateMapping(t *testing.T) {
	assert.Equal(t, StateCharging, chargeStateFromUPower(1))
	assert.Equal(t, StateDischarging, chargeStateFromUPower(2))
	assert.Equal(t, StateEmpty, chargeStateFromUPower(3))
	assert.Equal(t, StateFull, chargeStateFromUPower(4))
	assert.Equal(t, StateCharging, chargeStateFromUPower(5), "pending-charge counts as charging")
	assert.Equal(t, StateUnknown, chargeStateFromUPower(0))
}
