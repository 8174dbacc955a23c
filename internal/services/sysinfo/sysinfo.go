// Package sysinfo polls CPU, memory, load and temperature for the bar.
package sysinfo

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"

	"github.com/bnema/vibepanel/internal/mainloop"
	"github.com/bnema/vibepanel/internal/services"
)

const defaultInterval = 2 * time.Second

// Snapshot is one polling round of system stats.
type Snapshot struct {
	Available  bool
	CPUPercent float64
	MemPercent float64
	MemUsed    uint64
	MemTotal   uint64
	Load1      float64
	// Degrees Celsius from the hottest CPU/package sensor; NaN-free,
	// zero when no sensor matches.
	TempC float64
}

// probe gathers one round of readings; swappable for tests.
type probe func() Snapshot

// Service polls on a worker goroutine and posts snapshots to the UI
// thread.
type Service struct {
	mu      sync.Mutex
	station *services.Station[Snapshot]
	stop    chan struct{}
	log     zerolog.Logger
}

var instance = sync.OnceValue(func() *Service {
	return newService(gopsutilProbe, defaultInterval)
})

// Get returns the process-wide sysinfo service. Call from the UI thread.
func Get() *Service { return instance() }

func newService(read probe, interval time.Duration) *Service {
	s := &Service{
		station: services.NewStation(Snapshot{}, func(a, b Snapshot) bool { return a == b }),
		stop:    make(chan struct{}),
		log:     log.With().Str("service", "sysinfo").Logger(),
	}
	go s.run(read, interval)
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

func (s *Service) run(read probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.publish(read())
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.publish(read())
		}
	}
}

func (s *Service) publish(snapshot Snapshot) {
	mainloop.Post(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.station.Publish(snapshot)
	})
}

func gopsutilProbe() Snapshot {
	snapshot := Snapshot{Available: true}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snapshot.CPUPercent = round1(percents[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snapshot.MemPercent = round1(vm.UsedPercent)
		snapshot.MemUsed = vm.Used
		snapshot.MemTotal = vm.Total
	}
	if avg, err := load.Avg(); err == nil {
		snapshot.Load1 = avg.Load1
	}
	if temps, err := sensors.SensorsTemperatures(); err == nil {
		snapshot.TempC = hottestCPUTemp(temps)
	}
	return snapshot
}

// hottestCPUTemp picks the highest reading among CPU-ish sensors so a
// single hot core is not averaged away.
func hottestCPUTemp(temps []sensors.TemperatureStat) float64 {
	best := 0.0
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if !strings.Contains(key, "cpu") &&
			!strings.Contains(key, "coretemp") &&
			!strings.Contains(key, "k10temp") &&
			!strings.Contains(key, "package") {
			continue
		}
		if t.Temperature > best && !math.IsNaN(t.Temperature) {
			best = t.Temperature
		}
	}
	return round1(best)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
