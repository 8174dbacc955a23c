// Package battery tracks the UPower display device over the system bus.
package battery

import (
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bnema/vibepanel/internal/mainloop"
	"github.com/bnema/vibepanel/internal/services"
)

const (
	upowerName        = "org.freedesktop.UPower"
	displayDevicePath = "/org/freedesktop/UPower/devices/DisplayDevice"
	deviceInterface   = "org.freedesktop.UPower.Device"
)

// ChargeState mirrors UPower's device state enum in readable form.
type ChargeState string

const (
	StateUnknown     ChargeState = "unknown"
	StateCharging    ChargeState = "charging"
	StateDischarging ChargeState = "discharging"
	StateEmpty       ChargeState = "empty"
	StateFull        ChargeState = "full"
)

func chargeStateFromUPower(state uint32) ChargeState {
	switch state {
	case 1, 5:
		return StateCharging
	case 2, 6:
		return StateDischarging
	case 3:
		return StateEmpty
	case 4:
		return StateFull
	default:
		return StateUnknown
	}
}

// Snapshot is the battery state shown by the bar.
type Snapshot struct {
	Available bool
	Percent   float64
	State     ChargeState
	// Watts, positive while charging or discharging.
	EnergyRate float64
	// Seconds; zero when UPower cannot estimate.
	TimeToEmpty int64
	TimeToFull  int64
}

// Service watches the UPower DisplayDevice. When the machine has no
// battery the service stays permanently unavailable and spawns nothing.
type Service struct {
	mu      sync.Mutex
	station *services.Station[Snapshot]
	stop    chan struct{}
	log     zerolog.Logger
}

var instance = sync.OnceValue(func() *Service {
	return newService(defaultPowerSupplyDir, dbus.SystemBus)
})

// Get returns the process-wide battery service, creating it on first use.
// Call from the UI thread.
func Get() *Service { return instance() }

func newService(powerSupplyDir string, connect func() (*dbus.Conn, error)) *Service {
	s := &Service{
		station: services.NewStation(Snapshot{}, func(a, b Snapshot) bool { return a == b }),
		stop:    make(chan struct{}),
		log:     log.With().Str("service", "battery").Logger(),
	}
	if !hasBattery(powerSupplyDir) {
		s.log.Debug().Msg("no battery present, service disabled")
		return s
	}
	// A battery exists, so the widget can show up right away while the
	// D-Bus attach fills in the numbers.
	s.station.Publish(Snapshot{Available: true, State: StateUnknown})
	go s.attach(connect)
	return s
}

// Snapshot returns the current battery state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.station.Snapshot()
}

// Connect subscribes cb, delivering the current snapshot synchronously
// before returning.
func (s *Service) Connect(cb func(Snapshot)) services.CallbackID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.station.Connect(cb)
}

// Disconnect removes a subscription.
func (s *Service) Disconnect(id services.CallbackID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.station.Disconnect(id)
}

// Close stops the D-Bus worker.
func (s *Service) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
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
		s.log.Warn().Err(err).Msg("system bus unavailable")
		return
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(displayDevicePath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		s.log.Warn().Err(err).Msg("PropertiesChanged match failed")
		return
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, upowerName),
	); err != nil {
		s.log.Warn().Err(err).Msg("NameOwnerChanged match failed")
		return
	}

	s.refresh(conn)

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
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if sig.Path == displayDevicePath {
			s.refresh(conn)
		}
	case "org.freedesktop.DBus.NameOwnerChanged":
		if len(sig.Body) < 3 {
			return
		}
		newOwner, _ := sig.Body[2].(string)
		if newOwner == "" {
			s.log.Info().Msg("upower daemon went away")
			s.publish(Snapshot{State: StateUnknown})
		} else {
			s.log.Info().Msg("upower daemon appeared, refreshing")
			s.refresh(conn)
		}
	}
}

func (s *Service) refresh(conn *dbus.Conn) {
	obj := conn.Object(upowerName, displayDevicePath)
	var props map[string]dbus.Variant
	if err := obj.Call("org.freedesktop.DBus.Properties.GetAll", 0, deviceInterface).Store(&props); err != nil {
		s.log.Warn().Err(err).Msg("display device query failed")
		s.publish(Snapshot{Available: true, State: StateUnknown})
		return
	}
	s.publish(snapshotFromProperties(props))
}

// snapshotFromProperties derives a snapshot from UPower device properties.
// Energy/EnergyFull is preferred over the reported Percentage, which some
// firmwares round or freeze.
func snapshotFromProperties(props map[string]dbus.Variant) Snapshot {
	snapshot := Snapshot{Available: true, State: StateUnknown}

	energy := variantFloat(props, "Energy")
	energyFull := variantFloat(props, "EnergyFull")
	if energy > 0 && energyFull > 0 {
		snapshot.Percent = 100 * energy / energyFull
	} else {
		snapshot.Percent = variantFloat(props, "Percentage")
	}
	if snapshot.Percent < 0 {
		snapshot.Percent = 0
	}
	if snapshot.Percent > 100 {
		snapshot.Percent = 100
	}

	if v, ok := props["State"]; ok {
		if state, ok := v.Value().(uint32); ok {
			snapshot.State = chargeStateFromUPower(state)
		}
	}
	snapshot.EnergyRate = variantFloat(props, "EnergyRate")
	snapshot.TimeToEmpty = variantInt(props, "TimeToEmpty")
	snapshot.TimeToFull = variantInt(props, "TimeToFull")
	return snapshot
}

func variantFloat(props map[string]dbus.Variant, key string) float64 {
	if v, ok := props[key]; ok {
		if f, ok := v.Value().(float64); ok {
			return f
		}
	}
	return 0
}

func variantInt(props map[string]dbus.Variant, key string) int64 {
	if v, ok := props[key]; ok {
		if i, ok := v.Value().(int64); ok {
			return i
		}
	}
	return 0
}
