// Package media tracks MPRIS players on the session bus.
package media

import (
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bnema/vibepanel/internal/mainloop"
	"github.com/bnema/vibepanel/internal/services"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisPath       = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	playerInterface = "org.mpris.MediaPlayer2.Player"
)

// PlaybackStatus is the MPRIS PlaybackStatus value.
type PlaybackStatus string

const (
	StatusPlaying PlaybackStatus = "Playing"
	StatusPaused  PlaybackStatus = "Paused"
	StatusStopped PlaybackStatus = "Stopped"
)

// Snapshot describes the preferred player and its current track.
type Snapshot struct {
	Available     bool
	Player        string
	Title         string
	Artist        string
	Album         string
	Status        PlaybackStatus
	CanGoNext     bool
	CanGoPrevious bool
}

// Service watches bus name ownership for MPRIS players and mirrors the
// active one. Playing players win over paused ones; ties break by name
// for stability.
type Service struct {
	mu      sync.Mutex
	station *services.Station[Snapshot]
	conn    *dbus.Conn
	// bus name -> last known state
	players map[string]Snapshot
	stop    chan struct{}
	log     zerolog.Logger
}

var instance = sync.OnceValue(func() *Service {
	return newService(dbus.SessionBus)
})

// Get returns the process-wide media service. Call from the UI thread.
func Get() *Service { return instance() }

func newService(connect func() (*dbus.Conn, error)) *Service {
	s := &Service{
		station: services.NewStation(Snapshot{}, func(a, b Snapshot) bool { return a == b }),
		players: make(map[string]Snapshot),
		stop:    make(chan struct{}),
		log:     log.With().Str("service", "media").Logger(),
	}
	go s.attach(connect)
	return s
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.station.Snapshot()
}

func (s *Service) Connect(cb func(Snapshot)) services.CallbackID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.station.Connect(cb)
}

func (s *Service) Disconnect(id services.CallbackID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.station.Disconnect(id)
}

func (s *Service) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// PlayPause toggles the active player.
func (s *Service) PlayPause() { s.command("PlayPause") }

// Next skips to the next track.
func (s *Service) Next() { s.command("Next") }

// Previous goes back one track.
func (s *Service) Previous() { s.command("Previous") }

func (s *Service) command(method string) {
	s.mu.Lock()
	conn := s.conn
	player := s.activeBusNameLocked()
	s.mu.Unlock()
	if conn == nil || player == "" {
		return
	}
	go func() {
		call := conn.Object(player, mprisPath).Call(playerInterface+"."+method, 0)
		if call.Err != nil {
			s.log.Warn().Err(call.Err).Str("method", method).Msg("player command failed")
		}
	}()
}

func (s *Service) activeBusNameLocked() string {
	names := rankedNames(s.players)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// rankedNames orders player bus names: playing first, then paused, then
// the rest, alphabetical within each group.
func rankedNames(players map[string]Snapshot) []string {
	names := make([]string, 0, len(players))
	for name := range players {
		names = append(names, name)
	}
	rank := func(status PlaybackStatus) int {
		switch status {
		case StatusPlaying:
			return 0
		case StatusPaused:
			return 1
		default:
			return 2
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := rank(players[names[i]].Status), rank(players[names[j]].Status)
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}

func (s *Service) attach(connect func() (*dbus.Conn, error)) {
	conn, err := connect()
	if err != nil {
		s.log.Debug().Err(err).Msg("session bus unavailable")
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		s.log.Warn().Err(err).Msg("NameOwnerChanged match failed")
		return
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		s.log.Warn().Err(err).Msg("PropertiesChanged match failed")
		return
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err == nil {
		for _, name := range names {
			if strings.HasPrefix(name, mprisPrefix) {
				s.refreshPlayer(conn, name)
			}
		}
	}
	s.recompute()

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	for {
		select {
		case <-s.stop:
			conn.RemoveSignal(signals)
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			s.handleSignal(conn, sig)
		}
	}
}

func (s *Service) handleSignal(conn *dbus.Conn, sig *dbus.Signal) {
	switch sig.Name {
	case "org.freedesktop.DBus.NameOwnerChanged":
		if len(sig.Body) < 3 {
			return
		}
		name, _ := sig.Body[0].(string)
		newOwner, _ := sig.Body[2].(string)
		if !strings.HasPrefix(name, mprisPrefix) {
			return
		}
		if newOwner == "" {
			s.mu.Lock()
			delete(s.players, name)
			s.mu.Unlock()
		} else {
			s.refreshPlayer(conn, name)
		}
		s.recompute()
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		// sig.Sender is the unique name; re-query every known player on
		// its well-known name instead of tracking owner mappings.
		s.mu.Lock()
		known := make([]string, 0, len(s.players))
		for name := range s.players {
			known = append(known, name)
		}
		s.mu.Unlock()
		for _, name := range known {
			s.refreshPlayer(conn, name)
		}
		s.recompute()
	}
}

func (s *Service) refreshPlayer(conn *dbus.Conn, busName string) {
	obj := conn.Object(busName, mprisPath)
	var props map[string]dbus.Variant
	if err := obj.Call("org.freedesktop.DBus.Properties.GetAll", 0, playerInterface).Store(&props); err != nil {
		s.mu.Lock()
		delete(s.players, busName)
		s.mu.Unlock()
		return
	}
	snap := snapshotFromProperties(busName, props)
	s.mu.Lock()
	s.players[busName] = snap
	s.mu.Unlock()
}

// recompute picks the preferred player and publishes it.
func (s *Service) recompute() {
	s.mu.Lock()
	names := rankedNames(s.players)
	var snapshot Snapshot
	if len(names) > 0 {
		snapshot = s.players[names[0]]
	}
	s.mu.Unlock()
	s.publish(snapshot)
}

func (s *Service) publish(snapshot Snapshot) {
	mainloop.Post(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.station.Publish(snapshot)
	})
}

// snapshotFromProperties maps MPRIS player properties to a snapshot. The
// player name is the bus-name suffix, with the ".instanceN" tail some
// players append stripped.
func snapshotFromProperties(busName string, props map[string]dbus.Variant) Snapshot {
	snapshot := Snapshot{Available: true, Player: playerName(busName), Status: StatusStopped}

	if v, ok := props["PlaybackStatus"]; ok {
		if status, ok := v.Value().(string); ok {
			snapshot.Status = PlaybackStatus(status)
		}
	}
	if v, ok := props["CanGoNext"]; ok {
		snapshot.CanGoNext, _ = v.Value().(bool)
	}
	if v, ok := props["CanGoPrevious"]; ok {
		snapshot.CanGoPrevious, _ = v.Value().(bool)
	}
	if v, ok := props["Metadata"]; ok {
		if meta, ok := v.Value().(map[string]dbus.Variant); ok {
			if t, ok := meta["xesam:title"]; ok {
				snapshot.Title, _ = t.Value().(string)
			}
			if a, ok := meta["xesam:album"]; ok {
				snapshot.Album, _ = a.Value().(string)
			}
			if artists, ok := meta["xesam:artist"]; ok {
				if list, ok := artists.Value().([]string); ok && len(list) > 0 {
					snapshot.Artist = strings.Join(list, ", ")
				}
			}
		}
	}
	return snapshot
}

func playerName(busName string) string {
	name := strings.TrimPrefix(busName, mprisPrefix)
	if idx := strings.LastIndex(name, ".instance"); idx > 0 {
		name = name[:idx]
	}
	return name
}
