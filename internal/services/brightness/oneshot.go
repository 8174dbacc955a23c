package brightness

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/godbus/dbus/v5"
)

// Current reads the backlight level once, without starting the watching
// service. Used by the CLI.
func Current() (Snapshot, error) {
	device, maxRaw, ok := findBacklight(defaultBacklightDir)
	if !ok {
		return Snapshot{}, fmt.Errorf("no backlight device under %s", defaultBacklightDir)
	}
	raw, err := readIntFile(filepath.Join(defaultBacklightDir, device, "brightness"))
	if err != nil {
		return Snapshot{}, err
	}
	percent := 100 * float64(raw) / float64(maxRaw)
	return Snapshot{
		Available: true,
		Percent:   math.Round(percent*10) / 10,
		Device:    device,
	}, nil
}

// Adjust shifts the backlight by delta percentage points and returns the
// resulting state. Set clamps, so over- and undershoot are safe.
func Adjust(delta float64) (Snapshot, error) {
	snap, err := Current()
	if err != nil {
		return Snapshot{}, err
	}
	if err := Set(snap.Percent + delta); err != nil {
		return Snapshot{}, err
	}
	return Current()
}

// Set writes the backlight level once through logind and waits for the
// call to complete. Used by the CLI.
func Set(percent float64) error {
	device, maxRaw, ok := findBacklight(defaultBacklightDir)
	if !ok {
		return fmt.Errorf("no backlight device under %s", defaultBacklightDir)
	}
	percent = math.Max(0, math.Min(100, percent))
	raw := uint32(math.Round(percent / 100 * float64(maxRaw)))

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("system bus: %w", err)
	}
	obj := conn.Object("org.freedesktop.login1", "/org/freedesktop/login1/session/auto")
	call := obj.Call("org.freedesktop.login1.Session.SetBrightness", 0,
		"backlight", device, raw)
	if call.Err != nil {
		return fmt.Errorf("set brightness on %s: %w", device, call.Err)
	}
	return nil
}
