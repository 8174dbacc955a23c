package power

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotFromProperties(t *testing.T) {
	props := map[string]dbus.Variant{
		"ActiveProfile": dbus.MakeVariant("balanced"),
		"Profiles": dbus.MakeVariant([]map[string]dbus.Variant{
			{"Profile": dbus.MakeVariant("power-saver")},
			{"Profile": dbus.MakeVariant("balanced")},
			{"Profile": dbus.MakeVariant("performance")},
		}),
	}

	snap := snapshotFromProperties(props)

	assert.True(t, snap.Available)
	assert.Equal(t, "balanced", snap.ActiveProfile)
	assert.Equal(t, []string{"balanced", "performance", "power-saver"}, snap.Profiles)
}

func TestSnapshotFromPropertiesTolerateMissingFields(t *testing.T) {
	snap := snapshotFromProperties(map[string]dbus.Variant{})

	assert.True(t, snap.Available)
	assert.Empty(t, snap.ActiveProfile)
	assert.Empty(t, snap.Profiles)
}

func TestSnapshotEqual(t *testing.T) {
	a := Snapshot{Available: true, ActiveProfile: "balanced", Profiles: []string{"a", "b"}}
	b := Snapshot{Available: true, ActiveProfile: "balanced", Profiles: []string{"a", "b"}}
	assert.True(t, a.equal(b))

	b.Profiles = []string{"a", "c"}
	assert.False(t, a.equal(b))

	b = a
	b.ActiveProfile = "performance"
	assert.False(t, a.equal(b))
}
