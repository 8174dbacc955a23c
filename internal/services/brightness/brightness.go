// Package brightness controls the backlight via sysfs and logind.
package brightness

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bnema/vibepanel/internal/mainloop"
	"github.com/bnema/vibepanel/internal/services"
)

const defaultBacklightDir = "/sys/class/backlight"

// Snapshot is the current backlight level.
type Snapshot struct {
	Available bool
	Percent   float64
	// sysfs device name, e.g. "intel_backlight".
	Device string
}

// Service reads the first backlight device and writes through logind's
// Session.SetBrightness, which works without root. External changes (fn
// keys handled by the compositor) arrive via fsnotify on the sysfs file.
type Service struct {
	mu      sync.Mutex
	station *services.Station[Snapshot]

	device        string
	brightnessDir string
	maxRaw        int

	connect func() (*dbus.Conn, error)
	conn    *dbus.Conn

	watcher *fsnotify.Watcher
	stop    chan struct{}
	log     zerolog.Logger
}

var instance = sync.OnceValue(func() *Service {
	return newService(defaultBacklightDir, dbus.SystemBus)
})

// Get returns the process-wide brightness service. Call from the UI
// thread.
func Get() *Service { return instance() }

func newService(backlightDir string, connect func() (*dbus.Conn, error)) *Service {
	s := &Service{
		station: services.NewStation(Snapshot{}, func(a, b Snapshot) bool { return a == b }),
		connect: connect,
		stop:    make(chan struct{}),
		log:     log.With().Str("service", "brightness").Logger(),
	}

	device, maxRaw, ok := findBacklight(backlightDir)
	if !ok {
		s.log.Debug().Msg("no backlight device, service disabled")
		return s
	}
	s.device = device
	s.brightnessDir = filepath.Join(backlightDir, device)
	s.maxRaw = maxRaw

	s.station.Publish(s.read())
	go s.watch()
	return s
}

// findBacklight picks the first device under dir with a readable
// max_brightness.
func findBacklight(dir string) (device string, maxRaw int, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, false
	}
	for _, entry := range entries {
		maxRaw, err := readIntFile(filepath.Join(dir, entry.Name(), "max_brightness"))
		if err != nil || maxRaw <= 0 {
			continue
		}
		return entry.Name(), maxRaw, true
	}
	return "", 0, false
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func (s *Service) read() Snapshot {
	raw, err := readIntFile(filepath.Join(s.brightnessDir, "brightness"))
	if err != nil {
		s.log.Warn().Err(err).Msg("brightness read failed")
		return Snapshot{Available: true, Device: s.device}
	}
	percent := 100 * float64(raw) / float64(s.maxRaw)
	return Snapshot{
		Available: true,
		Percent:   math.Round(percent*10) / 10,
		Device:    s.device,
	}
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
	s.mu.Lock()
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.mu.Unlock()
}

// SetPercent writes the backlight level through logind. The snapshot
// updates when the sysfs write lands and fsnotify reports it.
func (s *Service) SetPercent(percent float64) {
	if s.device == "" {
		return
	}
	percent = math.Max(0, math.Min(100, percent))
	raw := uint32(math.Round(percent / 100 * float64(s.maxRaw)))

	go func() {
		conn, err := s.sessionConn()
		if err != nil {
			s.log.Warn().Err(err).Msg("system bus unavailable for brightness write")
			return
		}
		obj := conn.Object("org.freedesktop.login1", "/org/freedesktop/login1/session/auto")
		call := obj.Call("org.freedesktop.login1.Session.SetBrightness", 0,
			"backlight", s.device, raw)
		if call.Err != nil {
			s.log.Warn().Err(call.Err).Float64("percent", percent).Msg("brightness write failed")
		}
	}()
}

func (s *Service) sessionConn() (*dbus.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.connect()
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

func (s *Service) watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warn().Err(err).Msg("fsnotify unavailable, external changes not tracked")
		return
	}
	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	if err := watcher.Add(s.brightnessDir); err != nil {
		s.log.Warn().Err(err).Str("dir", s.brightnessDir).Msg("backlight watch failed")
		return
	}

	for {
		select {
		case <-s.stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != "brightness" {
				continue
			}
			snapshot := s.read()
			mainloop.Post(func() {
				s.mu.Lock()
				defer s.mu.Unlock()
				s.station.Publish(snapshot)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Msg("backlight watch error")
		}
	}
}
