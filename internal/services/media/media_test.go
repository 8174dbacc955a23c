package media

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotFromProperties(t *testing.T) {
	props := map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant("Playing"),
		"CanGoNext":      dbus.MakeVariant(true),
		"CanGoPrevious":  dbus.MakeVariant(false),
		"Metadata": dbus.MakeVariant(map[string]dbus.Variant{
			"xesam:title":  dbus.MakeVariant("Paranoid Android"),
			"xesam:album":  dbus.MakeVariant("OK Computer"),
			"xesam:artist": dbus.MakeVariant([]string{"Radiohead"}),
		}),
	}

	snap := snapshotFromProperties("org.mpris.MediaPlayer2.spotify", props)

	assert.True(t, snap.Available)
	assert.Equal(t, "spotify", snap.Player)
	assert.Equal(t, StatusPlaying, snap.Status)
	assert.Equal(t, "Paranoid Android", snap.Title)
	assert.Equal(t, "OK Computer", snap.Album)
	assert.Equal(t, "Radiohead", snap.Artist)
	assert.True(t, snap.CanGoNext)
	assert.False(t, snap.CanGoPrevious)
}

func TestSnapshotFromPropertiesEmptyMetadata(t *testing.T) {
	snap := snapshotFromProperties("org.mpris.MediaPlayer2.mpv", map[string]dbus.Variant{})

	assert.Equal(t, "mpv", snap.Player)
	assert.Equal(t, StatusStopped, snap.Status)
	assert.Empty(t, snap.Title)
}

func TestPlayerNameStripsInstanceSuffix(t *testing.T) {
	assert.Equal(t, "firefox", playerName("org.mpris.MediaPlayer2.firefox.instance123"))
	assert.Equal(t, "spotify", playerName("org.mpris.MediaPlayer2.spotify"))
}

func TestRankedNamesPrefersPlaying(t *testing.T) {
	players := map[string]Snapshot{
		"org.mpris.MediaPlayer2.a_paused":  {Status: StatusPaused},
		"org.mpris.MediaPlayer2.b_playing": {Status: StatusPlaying},
		"org.mpris.MediaPlayer2.c_stopped": {Status: StatusStopped},
		"org.mpris.MediaPlayer2.a_playing": {Status: StatusPlaying},
	}

	names := rankedNames(players)

	assert.Equal(t, []string{
		"org.mpris.MediaPlayer2.a_playing",
		"org.mpris.MediaPlayer2.b_playing",
		"org.mpris.MediaPlayer2.a_paused",
		"org.mpris.MediaPlayer2.c_stopped",
	}, names)
}

func TestRankedNamesEmpty(t *testing.T) {
	assert.Empty(t, rankedNames(map[string]Snapshot{}))
}
