// Package updates counts pending package updates for the bar.
package updates

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/vibepanel/internal/mainloop"
	"github.com/bnema/vibepanel/internal/services"
)

const (
	defaultCheckInterval = time.Hour
	checkTimeout         = 2 * time.Minute
)

// Snapshot is the update-check state. Err is a string so snapshots stay
// comparable; empty means the last check succeeded.
type Snapshot struct {
	Available      bool
	Checking       bool
	UpdateCount    int
	Err            string
	PackageManager string
}

// managerDef describes one supported package manager: how to detect it and
// how to count pending updates from its output and exit code.
type managerDef struct {
	name   string
	binary string
	args   []string
	count  func(output string, exitCode int) (int, error)
}

// Probe order is also preference order on systems with several managers
// installed.
var managerDefs = []managerDef{
	{
		name:   "pacman",
		binary: "checkupdates",
		args:   nil,
		// checkupdates exits 2 when there is nothing to do.
		count: func(output string, exitCode int) (int, error) {
			if exitCode == 2 {
				return 0, nil
			}
			if exitCode != 0 {
				return 0, &exitError{binary: "checkupdates", code: exitCode}
			}
			return countLines(output, func(string) bool { return true }), nil
		},
	},
	{
		name:   "dnf",
		binary: "dnf",
		args:   []string{"check-update", "-q"},
		// dnf exits 100 when updates are available.
		count: func(output string, exitCode int) (int, error) {
			switch exitCode {
			case 0:
				return 0, nil
			case 100:
				return countLines(output, func(line string) bool {
					return !strings.HasPrefix(line, "Obsoleting")
				}), nil
			default:
				return 0, &exitError{binary: "dnf", code: exitCode}
			}
		},
	},
	{
		name:   "apt",
		binary: "apt-get",
		args:   []string{"-s", "-o", "Debug::NoLocking=true", "upgrade"},
		count: func(output string, exitCode int) (int, error) {
			if exitCode != 0 {
				return 0, &exitError{binary: "apt-get", code: exitCode}
			}
			return countLines(output, func(line string) bool {
				return strings.HasPrefix(line, "Inst ")
			}), nil
		},
	},
}

type exitError struct {
	binary string
	code   int
}

func (e *exitError) Error() string {
	return e.binary + " exited with code " + strconv.Itoa(e.code)
}

func countLines(output string, keep func(string) bool) int {
	n := 0
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && keep(line) {
			n++
		}
	}
	return n
}

// runner executes a command and returns stdout plus the exit code;
// swappable for tests.
type runner func(ctx context.Context, binary string, args []string) (string, int, error)

func execRunner(ctx context.Context, binary string, args []string) (string, int, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), exitErr.ExitCode(), nil
		}
		return "", 0, err
	}
	return string(out), 0, nil
}

// Service probes the package manager once at construction and counts
// pending updates periodically. Check failures land in the snapshot, never
// in the panel's control flow.
type Service struct {
	mu      sync.Mutex
	station *services.Station[Snapshot]

	manager *managerDef
	run     runner

	intervalSecs atomic.Int64
	wake         chan struct{}
	stop         chan struct{}
	log          zerolog.Logger
}

var instance = sync.OnceValue(func() *Service {
	return newService(exec.LookPath, execRunner)
})

// Get returns the process-wide updates service. Call from the UI thread.
func Get() *Service { return instance() }

func newService(lookPath func(string) (string, error), run runner) *Service {
	s := &Service{
		station: services.NewStation(Snapshot{}, func(a, b Snapshot) bool { return a == b }),
		run:     run,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		log:     log.With().Str("service", "updates").Logger(),
	}
	s.intervalSecs.Store(int64(defaultCheckInterval / time.Second))

	s.manager = detectManager(lookPath)
	if s.manager == nil {
		s.log.Debug().Msg("no supported package manager, service disabled")
		return s
	}
	s.station.Publish(Snapshot{Available: true, PackageManager: s.manager.name})
	go s.loop()
	return s
}

// detectManager probes all candidates concurrently and returns the first
// present one in preference order.
func detectManager(lookPath func(string) (string, error)) *managerDef {
	found := make([]bool, len(managerDefs))
	var g errgroup.Group
	for i := range managerDefs {
		g.Go(func() error {
			_, err := lookPath(managerDefs[i].binary)
			found[i] = err == nil
			return nil
		})
	}
	_ = g.Wait()
	for i := range managerDefs {
		if found[i] {
			return &managerDefs[i]
		}
	}
	return nil
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

// SetCheckInterval changes the polling interval; takes effect for the
// next wait, without waiting out the old interval.
func (s *Service) SetCheckInterval(secs int64) {
	if secs <= 0 {
		return
	}
	s.intervalSecs.Store(secs)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// CheckNow triggers an immediate check.
func (s *Service) CheckNow() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) loop() {
	s.check()
	for {
		interval := time.Duration(s.intervalSecs.Load()) * time.Second
		timer := time.NewTimer(interval)
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			s.check()
		case <-s.wake:
			timer.Stop()
			s.check()
		}
	}
}

func (s *Service) check() {
	current := s.Snapshot()
	current.Checking = true
	s.publish(current)

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	next := Snapshot{Available: true, PackageManager: s.manager.name}
	output, exitCode, err := s.run(ctx, s.manager.binary, s.manager.args)
	if err != nil {
		s.log.Warn().Err(err).Msg("update check failed to run")
		next.Err = err.Error()
		next.UpdateCount = current.UpdateCount
	} else if count, cerr := s.manager.count(output, exitCode); cerr != nil {
		s.log.Warn().Err(cerr).Msg("update check failed")
		next.Err = cerr.Error()
		next.UpdateCount = current.UpdateCount
	} else {
		next.UpdateCount = count
	}
	s.publish(next)
}

func (s *Service) publish(snapshot Snapshot) {
	mainloop.Post(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.station.Publish(snapshot)
	})
}
