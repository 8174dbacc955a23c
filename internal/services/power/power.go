// Package power exposes power-profiles-daemon profiles over the system bus.
package power

import (
	"sort"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bnema/vibepanel/internal/mainloop"
	"github.com/bnema/vibepanel/internal/services"
)

// power-profiles-daemon moved to the freedesktop name in 0.20; older
// installs still answer on the hadess one.
var busNames = []struct {
	name string
	path dbus.ObjectPath
	intf string
}{
	{"org.freedesktop.UPower.PowerProfiles", "/org/freedesktop/UPower/PowerProfiles", "org.freedesktop.UPower.PowerProfiles"},
	{"net.hadess.PowerProfiles", "/net/hadess/PowerProfiles", "net.hadess.PowerProfiles"},
}

// Snapshot lists the available profiles and which one is active.
type Snapshot struct {
	Available     bool
	ActiveProfile string
	Profiles      []string
}

func (s Snapshot) equal(other Snapshot) bool {
	if s.Available != other.Available || s.ActiveProfile != other.ActiveProfile {
		return false
	}
	if len(s.Profiles) != len(other.Profiles) {
		return false
	}
	for i := range s.Profiles {
		if s.Profiles[i] != other.Profiles[i] {
			return false
		}
	}
	return true
}

// Service tracks the active power profile and can switch it.
type Service struct {
	mu      sync.Mutex
	station *services.Station[Snapshot]
	conn    *dbus.Conn
	busName string
	objPath dbus.ObjectPath
	intf    string
	stop    chan struct{}
	log     zerolog.Logger
}

var instance = sync.OnceValue(func() *Service {
	return newService(dbus.SystemBus)
})

// Get returns the process-wide power service. Call from the UI thread.
func Get() *Service { return instance() }

func newService(connect func() (*dbus.Conn, error)) *Service {
	s := &Service{
		station: services.NewStation(Snapshot{}, Snapshot.equal),
		stop:    make(chan struct{}),
		log:     log.With().Str("service", "power").Logger(),
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

// SetProfile asks the daemon to switch the active profile. Fire and
// forget; the PropertiesChanged signal updates the snapshot.
func (s *Service) SetProfile(name string) {
	s.mu.Lock()
	conn, busName, objPath, intf := s.conn, s.busName, s.objPath, s.intf
	s.mu.Unlock()
	if conn == nil {
		return
	}
	go func() {
		obj := conn.Object(busName, objPath)
		call := obj.Call("org.freedesktop.DBus.Properties.Set", 0,
			intf, "ActiveProfile", dbus.MakeVariant(name))
		if call.Err != nil {
			s.log.Warn().Err(call.Err).Str("profile", name).Msg("profile switch failed")
		}
	}()
}

func (s *Service) publish(snapshot Snapshot) {
	mainloop.Post(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.station.Publish(snapshot)
	})
}

func (s *Service) attach(connect func() (*dbus.Conn, error)) {
	conn, err := connect()
	if err != nil {
		s.log.Debug().Err(err).Msg("system bus unavailable")
		return
	}

	found := false
	for _, candidate := range busNames {
		var owner string
		err := conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, candidate.name).Store(&owner)
		if err != nil {
			continue
		}
		s.mu.Lock()
		s.conn = conn
		s.busName = candidate.name
		s.objPath = candidate.path
		s.intf = candidate.intf
		s.mu.Unlock()
		found = true
		break
	}
	if !found {
		s.log.Debug().Msg("power-profiles-daemon not running")
		return
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(s.objPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		s.log.Warn().Err(err).Msg("PropertiesChanged match failed")
		return
	}

	s.refresh(conn)

	signals := make(chan *dbus.Signal, 8)
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
			if sig.Name == "org.freedesktop.DBus.Properties.PropertiesChanged" && sig.Path == s.objPath {
				s.refresh(conn)
			}
		}
	}
}

func (s *Service) refresh(conn *dbus.Conn) {
	s.mu.Lock()
	busName, objPath, intf := s.busName, s.objPath, s.intf
	s.mu.Unlock()

	obj := conn.Object(busName, objPath)
	var props map[string]dbus.Variant
	if err := obj.Call("org.freedesktop.DBus.Properties.GetAll", 0, intf).Store(&props); err != nil {
		s.log.Warn().Err(err).Msg("profiles query failed")
		s.publish(Snapshot{})
		return
	}
	s.publish(snapshotFromProperties(props))
}

func snapshotFromProperties(props map[string]dbus.Variant) Snapshot {
	snapshot := Snapshot{Available: true}
	if v, ok := props["ActiveProfile"]; ok {
		if name, ok := v.Value().(string); ok {
			snapshot.ActiveProfile = name
		}
	}
	if v, ok := props["Profiles"]; ok {
		// Array of dicts, each with a "Profile" string entry.
		if list, ok := v.Value().([]map[string]dbus.Variant); ok {
			for _, entry := range list {
				if p, ok := entry["Profile"]; ok {
					if name, ok := p.Value().(string); ok {
						snapshot.Profiles = append(snapshot.Profiles, name)
					}
				}
			}
		}
	}
	sort.Strings(snapshot.Profiles)
	return snapshot
}
