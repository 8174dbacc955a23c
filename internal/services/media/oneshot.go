package media

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// preferredPlayer discovers the MPRIS players on conn and returns the bus
// name and snapshot of the one the panel would show.
func preferredPlayer(conn *dbus.Conn) (string, Snapshot, error) {
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return "", Snapshot{}, fmt.Errorf("list bus names: %w", err)
	}

	players := make(map[string]Snapshot)
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		var props map[string]dbus.Variant
		obj := conn.Object(name, mprisPath)
		if err := obj.Call("org.freedesktop.DBus.Properties.GetAll", 0, playerInterface).Store(&props); err != nil {
			continue
		}
		players[name] = snapshotFromProperties(name, props)
	}

	ranked := rankedNames(players)
	if len(ranked) == 0 {
		return "", Snapshot{}, fmt.Errorf("no MPRIS player running")
	}
	return ranked[0], players[ranked[0]], nil
}

// Command sends one player command ("PlayPause", "Next", "Previous") to
// the preferred MPRIS player and waits for the reply. Used by the CLI,
// which has no running service.
func Command(method string) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("session bus: %w", err)
	}

	busName, _, err := preferredPlayer(conn)
	if err != nil {
		return err
	}

	call := conn.Object(busName, mprisPath).Call(playerInterface+"."+method, 0)
	if call.Err != nil {
		return fmt.Errorf("%s on %s: %w", method, playerName(busName), call.Err)
	}
	return nil
}

// Status queries the preferred player once and returns its snapshot.
// Used by the CLI.
func Status() (Snapshot, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return Snapshot{}, fmt.Errorf("session bus: %w", err)
	}
	_, snap, err := preferredPlayer(conn)
	return snap, err
}
