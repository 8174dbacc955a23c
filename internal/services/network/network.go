// Package network tracks Wi-Fi state through NetworkManager on the
// system bus.
package network

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bnema/vibepanel/internal/mainloop"
	"github.com/bnema/vibepanel/internal/services"
)

const (
	nmName               = "org.freedesktop.NetworkManager"
	nmPath               = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmInterface          = "org.freedesktop.NetworkManager"
	settingsPath         = dbus.ObjectPath("/org/freedesktop/NetworkManager/Settings")
	settingsInterface    = "org.freedesktop.NetworkManager.Settings"
	connectionInterface  = "org.freedesktop.NetworkManager.Settings.Connection"
	deviceInterface      = "org.freedesktop.NetworkManager.Device"
	wirelessInterface    = "org.freedesktop.NetworkManager.Device.Wireless"
	accessPointInterface = "org.freedesktop.NetworkManager.AccessPoint"

	// NM_DEVICE_TYPE_WIFI
	wifiDeviceType = uint32(2)

	knownSSIDCacheTTL = 30 * time.Second
)

// WifiNetwork is one network visible in the scan results.
type WifiNetwork struct {
	SSID     string
	Strength int
	Secured  bool
	// Currently connected.
	Active bool
	// NetworkManager has a saved profile for this SSID.
	Known bool
}

// Snapshot is the Wi-Fi state shown by the bar.
type Snapshot struct {
	Available   bool
	WifiEnabled bool
	Connected   bool
	SSID        string
	Strength    int
	Scanning    bool
	Networks    []WifiNetwork
}

func (s Snapshot) equal(o Snapshot) bool {
	if s.Available != o.Available || s.WifiEnabled != o.WifiEnabled ||
		s.Connected != o.Connected || s.SSID != o.SSID ||
		s.Strength != o.Strength || s.Scanning != o.Scanning {
		return false
	}
	if len(s.Networks) != len(o.Networks) {
		return false
	}
	for i := range s.Networks {
		if s.Networks[i] != o.Networks[i] {
			return false
		}
	}
	return true
}

// Service mirrors NetworkManager's view of the wireless device. Without
// NetworkManager on the bus the snapshot stays unavailable.
type Service struct {
	mu      sync.Mutex
	station *services.Station[Snapshot]
	conn    *dbus.Conn
	device  dbus.ObjectPath
	stop    chan struct{}
	log     zerolog.Logger

	scanning atomic.Bool

	knownMu        sync.Mutex
	knownSSIDs     map[string]struct{}
	knownRefreshed time.Time
}

var instance = sync.OnceValue(func() *Service {
	return newService(dbus.SystemBus)
})

// Get returns the process-wide network service. Call from the UI thread.
func Get() *Service { return instance() }

func newService(connect func() (*dbus.Conn, error)) *Service {
	s := &Service{
		station:    services.NewStation(Snapshot{}, Snapshot.equal),
		stop:       make(chan struct{}),
		log:        log.With().Str("service", "network").Logger(),
		knownSSIDs: make(map[string]struct{}),
	}
	go s.attach(connect)
	return s
}

// Snapshot returns the current Wi-Fi state.
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

// SetWifiEnabled toggles the wireless radio.
func (s *Service) SetWifiEnabled(enabled bool) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	go func() {
		obj := conn.Object(nmName, nmPath)
		if err := obj.SetProperty(nmInterface+".WirelessEnabled", dbus.MakeVariant(enabled)); err != nil {
			s.log.Warn().Err(err).Bool("enabled", enabled).Msg("WirelessEnabled write failed")
		}
	}()
}

// Scan asks the wireless device for a fresh scan. The snapshot reports
// Scanning until NetworkManager's LastScan property moves.
func (s *Service) Scan() {
	s.mu.Lock()
	conn, device := s.conn, s.device
	s.mu.Unlock()
	if conn == nil || device == "" {
		return
	}
	if !s.scanning.CompareAndSwap(false, true) {
		return
	}

	snap := s.Snapshot()
	snap.Scanning = true
	s.publish(snap)

	go func() {
		obj := conn.Object(nmName, device)
		call := obj.Call(wirelessInterface+".RequestScan", 0, map[string]dbus.Variant{})
		if call.Err != nil {
			s.log.Debug().Err(call.Err).Msg("scan request refused")
			s.scanning.Store(false)
			s.refresh(conn)
		}
	}()
}

// DisconnectWifi drops the active wireless connection.
func (s *Service) DisconnectWifi() {
	s.mu.Lock()
	conn, device := s.conn, s.device
	s.mu.Unlock()
	if conn == nil || device == "" {
		return
	}
	go func() {
		call := conn.Object(nmName, device).Call(deviceInterface+".Disconnect", 0)
		if call.Err != nil {
			s.log.Warn().Err(call.Err).Msg("wifi disconnect failed")
		}
	}()
}

func (s *Service) attach(connect func() (*dbus.Conn, error)) {
	conn, err := connect()
	if err != nil {
		s.log.Warn().Err(err).Msg("system bus unavailable")
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := conn.AddMatchSignal(
		dbus.WithMatchPathNamespace(nmPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		s.log.Warn().Err(err).Msg("PropertiesChanged match failed")
		return
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, nmName),
	); err != nil {
		s.log.Warn().Err(err).Msg("NameOwnerChanged match failed")
		return
	}

	s.discoverDevice(conn)
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
		if len(sig.Body) < 2 {
			return
		}
		iface, _ := sig.Body[0].(string)
		switch iface {
		case nmInterface, accessPointInterface:
			s.refresh(conn)
		case wirelessInterface:
			if changed, ok := sig.Body[1].(map[string]dbus.Variant); ok {
				if _, moved := changed["LastScan"]; moved {
					s.scanning.Store(false)
				}
			}
			s.refresh(conn)
		}
	case "org.freedesktop.DBus.NameOwnerChanged":
		if len(sig.Body) < 3 {
			return
		}
		newOwner, _ := sig.Body[2].(string)
		if newOwner == "" {
			s.log.Info().Msg("NetworkManager went away")
			s.mu.Lock()
			s.device = ""
			s.mu.Unlock()
			s.publish(Snapshot{})
		} else {
			s.log.Info().Msg("NetworkManager appeared, refreshing")
			s.discoverDevice(conn)
			s.refresh(conn)
		}
	}
}

// discoverDevice finds the first wireless device NetworkManager manages.
func (s *Service) discoverDevice(conn *dbus.Conn) {
	var paths []dbus.ObjectPath
	obj := conn.Object(nmName, nmPath)
	if err := obj.Call(nmInterface+".GetDevices", 0).Store(&paths); err != nil {
		s.log.Debug().Err(err).Msg("device enumeration failed")
		return
	}
	for _, path := range paths {
		v, err := conn.Object(nmName, path).GetProperty(deviceInterface + ".DeviceType")
		if err != nil {
			continue
		}
		if devType, ok := v.Value().(uint32); ok && devType == wifiDeviceType {
			s.mu.Lock()
			s.device = path
			s.mu.Unlock()
			s.log.Debug().Str("device", string(path)).Msg("wifi device found")
			return
		}
	}
}

func (s *Service) refresh(conn *dbus.Conn) {
	snapshot := Snapshot{Available: true, Scanning: s.scanning.Load()}

	nm := conn.Object(nmName, nmPath)
	if v, err := nm.GetProperty(nmInterface + ".WirelessEnabled"); err != nil {
		s.publish(Snapshot{})
		return
	} else if enabled, ok := v.Value().(bool); ok {
		snapshot.WifiEnabled = enabled
	}

	s.mu.Lock()
	device := s.device
	s.mu.Unlock()
	if device == "" {
		s.publish(snapshot)
		return
	}

	wifi := conn.Object(nmName, device)
	activePath := dbus.ObjectPath("")
	if v, err := wifi.GetProperty(wirelessInterface + ".ActiveAccessPoint"); err == nil {
		if p, ok := v.Value().(dbus.ObjectPath); ok && p != "/" && p != "" {
			activePath = p
		}
	}

	if activePath != "" {
		if ap, err := s.accessPointDetails(conn, activePath, activePath, nil); err == nil {
			snapshot.Connected = true
			snapshot.SSID = ap.SSID
			snapshot.Strength = ap.Strength
		}
	}

	snapshot.Networks = s.visibleNetworks(conn, wifi, activePath)
	s.publish(snapshot)
}

func (s *Service) visibleNetworks(conn *dbus.Conn, wifi dbus.BusObject, activePath dbus.ObjectPath) []WifiNetwork {
	var paths []dbus.ObjectPath
	if err := wifi.Call(wirelessInterface+".GetAccessPoints", 0).Store(&paths); err != nil {
		s.log.Debug().Err(err).Msg("access point listing failed")
		return nil
	}

	known := s.knownSSIDsCached(conn)
	networks := make([]WifiNetwork, 0, len(paths))
	for _, path := range paths {
		net, err := s.accessPointDetails(conn, path, activePath, known)
		if err != nil || net.SSID == "" {
			continue
		}
		networks = append(networks, net)
	}
	return sortNetworks(dedupeNetworks(networks))
}

func (s *Service) accessPointDetails(conn *dbus.Conn, path, activePath dbus.ObjectPath, known map[string]struct{}) (WifiNetwork, error) {
	obj := conn.Object(nmName, path)
	var props map[string]dbus.Variant
	if err := obj.Call("org.freedesktop.DBus.Properties.GetAll", 0, accessPointInterface).Store(&props); err != nil {
		return WifiNetwork{}, err
	}

	net := WifiNetwork{
		SSID:     decodeSSID(variantBytes(props, "Ssid")),
		Strength: int(variantByte(props, "Strength")),
		Secured: apSecured(variantUint32(props, "Flags"),
			variantUint32(props, "WpaFlags"), variantUint32(props, "RsnFlags")),
		Active: path == activePath,
	}
	_, saved := known[net.SSID]
	net.Known = saved || net.Active
	return net, nil
}

// knownSSIDsCached reads NetworkManager's saved wireless profiles, cached
// for a short window since the settings tree is expensive to walk.
func (s *Service) knownSSIDsCached(conn *dbus.Conn) map[string]struct{} {
	s.knownMu.Lock()
	defer s.knownMu.Unlock()
	if time.Since(s.knownRefreshed) < knownSSIDCacheTTL {
		return s.knownSSIDs
	}

	var paths []dbus.ObjectPath
	obj := conn.Object(nmName, settingsPath)
	if err := obj.Call(settingsInterface+".ListConnections", 0).Store(&paths); err != nil {
		s.log.Debug().Err(err).Msg("saved connection listing failed")
		return s.knownSSIDs
	}

	ssids := make(map[string]struct{})
	for _, path := range paths {
		var settings map[string]map[string]dbus.Variant
		call := conn.Object(nmName, path).Call(connectionInterface+".GetSettings", 0)
		if call.Err != nil || call.Store(&settings) != nil {
			continue
		}
		wireless, ok := settings["802-11-wireless"]
		if !ok {
			continue
		}
		if raw, ok := wireless["ssid"].Value().([]byte); ok {
			if ssid := decodeSSID(raw); ssid != "" {
				ssids[ssid] = struct{}{}
			}
		}
	}
	s.knownSSIDs = ssids
	s.knownRefreshed = time.Now()
	return s.knownSSIDs
}

// decodeSSID turns NetworkManager's byte-array SSID into a string,
// dropping undecodable ones.
func decodeSSID(raw []byte) string {
	if len(raw) == 0 || !utf8.Valid(raw) {
		return ""
	}
	return string(raw)
}

// apSecured reports whether any of the access point's security flag sets
// is non-zero.
func apSecured(flags, wpaFlags, rsnFlags uint32) bool {
	return flags != 0 || wpaFlags != 0 || rsnFlags != 0
}

// dedupeNetworks merges access points that advertise the same SSID with
// the same security, keeping the strongest signal and sticky flags.
func dedupeNetworks(networks []WifiNetwork) []WifiNetwork {
	type key struct {
		ssid    string
		secured bool
	}
	merged := make(map[key]WifiNetwork)
	order := make([]key, 0, len(networks))
	for _, net := range networks {
		k := key{net.SSID, net.Secured}
		existing, ok := merged[k]
		if !ok {
			merged[k] = net
			order = append(order, k)
			continue
		}
		existing.Active = existing.Active || net.Active
		existing.Known = existing.Known || net.Known
		if net.Strength > existing.Strength {
			existing.Strength = net.Strength
		}
		merged[k] = existing
	}

	out := make([]WifiNetwork, 0, len(merged))
	for _, k := range order {
		out = append(out, merged[k])
	}
	return out
}

// sortNetworks orders the list for display: the active network first, then
// saved ones, then the rest by descending strength with SSID ties broken
// alphabetically.
func sortNetworks(networks []WifiNetwork) []WifiNetwork {
	group := func(n WifiNetwork) int {
		switch {
		case n.Active:
			return 0
		case n.Known:
			return 1
		default:
			return 2
		}
	}
	sort.Slice(networks, func(i, j int) bool {
		a, b := networks[i], networks[j]
		if ga, gb := group(a), group(b); ga != gb {
			return ga < gb
		}
		if a.Strength != b.Strength {
			return a.Strength > b.Strength
		}
		return a.SSID < b.SSID
	})
	return networks
}

func variantBytes(props map[string]dbus.Variant, key string) []byte {
	if v, ok := props[key]; ok {
		if b, ok := v.Value().([]byte); ok {
			return b
		}
	}
	return nil
}

func variantByte(props map[string]dbus.Variant, key string) byte {
	if v, ok := props[key]; ok {
		if b, ok := v.Value().(byte); ok {
			return b
		}
	}
	return 0
}

func variantUint32(props map[string]dbus.Variant, key string) uint32 {
	if v, ok := props[key]; ok {
		if u, ok := v.Value().(uint32); ok {
			return u
		}
	}
	return 0
}
