package compositor

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MangoWC exposes a fixed set of dwl-style tags rather than dynamic
// workspaces.
const mangoTagCount = 9

func mangoSocketPath() string {
	if path := os.Getenv("MANGO_SOCKET"); path != "" {
		return path
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return ""
	}
	path := filepath.Join(runtimeDir, "mango", "control.sock")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

type mangoOutputState struct {
	occupied uint32
	selected uint32
	urgent   uint32
	title    string
	appID    string
	selmon   bool
}

// MangoBackend reads MangoWC's dwl-style status stream from its control
// socket: one "<output> <kind> <payload>" line per field, with tag sets
// encoded as bitmasks. When the socket is absent the backend stays alive
// with nine empty tags so the rest of the panel still runs.
type MangoBackend struct {
	socketPath string
	// request is swappable for tests.
	request func(cmd string) error

	mu      sync.Mutex
	outputs map[string]*mangoOutputState

	onWorkspace WorkspaceCallback
	onWindow    WindowCallback

	started atomic.Bool
	stopped atomic.Bool
	done    chan struct{}
	log     zerolog.Logger
}

func NewMangoBackend() *MangoBackend {
	b := &MangoBackend{
		socketPath: mangoSocketPath(),
		outputs:    make(map[string]*mangoOutputState),
		done:       make(chan struct{}),
		log:        log.With().Str("backend", "mango").Logger(),
	}
	b.request = b.socketSend
	return b
}

func (b *MangoBackend) Name() string { return "MangoWC" }

func (b *MangoBackend) Start(onWorkspaceUpdate WorkspaceCallback, onWindowUpdate WindowCallback) {
	b.onWorkspace = onWorkspaceUpdate
	b.onWindow = onWindowUpdate

	if b.socketPath == "" {
		b.log.Warn().Msg("control socket not found, tags will stay empty")
		return
	}
	b.started.Store(true)
	go b.eventLoop()
}

func (b *MangoBackend) Stop() {
	if !b.stopped.CompareAndSwap(false, true) {
		return
	}
	if b.started.Load() {
		<-b.done
	}
}

func (b *MangoBackend) ListWorkspaces() []WorkspaceMeta {
	out := make([]WorkspaceMeta, 0, mangoTagCount)
	for tag := 1; tag <= mangoTagCount; tag++ {
		out = append(out, WorkspaceMeta{ID: tag, Name: strconv.Itoa(tag)})
	}
	return out
}

func (b *MangoBackend) WorkspaceSnapshot() WorkspaceSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buildSnapshotLocked()
}

func (b *MangoBackend) FocusedWindow() (WindowInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focusedInfoLocked()
}

func (b *MangoBackend) SwitchWorkspace(id int) {
	if b.stopped.Load() || id < 1 || id > mangoTagCount {
		return
	}
	if err := b.request(fmt.Sprintf("view %d", uint32(1)<<(id-1))); err != nil {
		b.log.Warn().Err(err).Int("tag", id).Msg("tag switch failed")
	}
}

func (b *MangoBackend) QuitCompositor() {
	if b.stopped.Load() {
		return
	}
	if err := b.request("quit"); err != nil {
		b.log.Warn().Err(err).Msg("quit command failed")
	}
}

func (b *MangoBackend) socketSend(cmd string) error {
	if b.socketPath == "" {
		return fmt.Errorf("mango control socket unavailable")
	}
	conn, err := net.DialTimeout("unix", b.socketPath, hyprCommandTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(hyprCommandTimeout))
	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	return nil
}

func (b *MangoBackend) eventLoop() {
	defer close(b.done)
	backoff := hyprReconnectInitial
	for !b.stopped.Load() {
		conn, err := net.DialTimeout("unix", b.socketPath, hyprCommandTimeout)
		if err != nil {
			b.log.Warn().Err(err).Dur("retry_in", backoff).Msg("status socket connect failed")
			if b.sleepInterruptible(backoff) {
				return
			}
			backoff = nextBackoff(backoff, hyprReconnectInitial, hyprReconnectMax, hyprReconnectFactor)
			continue
		}
		backoff = hyprReconnectInitial
		b.readStatus(conn)
		conn.Close()
	}
}

func (b *MangoBackend) readStatus(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		if b.stopped.Load() {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(hyprEventReadTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			if !b.stopped.Load() {
				b.log.Warn().Err(err).Msg("status stream closed, reconnecting")
			}
			return
		}
		if b.handleStatusLine(strings.TrimRight(line, "\n")) {
			b.publish()
		}
	}
}

func (b *MangoBackend) sleepInterruptible(d time.Duration) (stopped bool) {
	const step = 100 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		if b.stopped.Load() {
			return true
		}
		time.Sleep(step)
	}
	return b.stopped.Load()
}

// handleStatusLine applies one status line and reports whether observable
// state changed.
func (b *MangoBackend) handleStatusLine(line string) bool {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return false
	}
	output, kind := fields[0], fields[1]
	payload := ""
	if len(fields) == 3 {
		payload = fields[2]
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.outputs[output]
	if !ok {
		state = &mangoOutputState{}
		b.outputs[output] = state
	}

	switch kind {
	case "tags":
		// "<occupied> <selected> <clients> <urgent>" bitmasks.
		parts := strings.Fields(payload)
		if len(parts) < 4 {
			return false
		}
		occupied, err1 := strconv.ParseUint(parts[0], 10, 32)
		selected, err2 := strconv.ParseUint(parts[1], 10, 32)
		urgent, err3 := strconv.ParseUint(parts[3], 10, 32)
		if err1 != nil || err2 != nil || err3 != nil {
			return false
		}
		state.occupied = uint32(occupied)
		state.selected = uint32(selected)
		state.urgent = uint32(urgent)
		return true
	case "title":
		state.title = payload
		return true
	case "appid":
		state.appID = payload
		return true
	case "selmon":
		state.selmon = payload == "1"
		return true
	default:
		return false
	}
}

func (b *MangoBackend) buildSnapshotLocked() WorkspaceSnapshot {
	snapshot := NewWorkspaceSnapshot()
	for name, output := range b.outputs {
		state := NewPerOutputState()
		for tag := 1; tag <= mangoTagCount; tag++ {
			mask := uint32(1) << (tag - 1)
			if output.selected&mask != 0 {
				snapshot.Active[tag] = true
				state.Active[tag] = true
			}
			if output.occupied&mask != 0 {
				snapshot.Occupied[tag] = true
				state.Occupied[tag] = true
			}
			if output.urgent&mask != 0 && output.selected&mask == 0 {
				snapshot.Urgent[tag] = true
			}
		}
		snapshot.PerOutput[name] = state
	}
	return snapshot
}

func (b *MangoBackend) focusedInfoLocked() (WindowInfo, bool) {
	for name, output := range b.outputs {
		if !output.selmon {
			continue
		}
		info := WindowInfo{Title: output.title, AppID: output.appID, Output: name}
		if info.IsEmpty() {
			return WindowInfo{}, false
		}
		return info, true
	}
	return WindowInfo{}, false
}

func (b *MangoBackend) publish() {
	b.mu.Lock()
	snapshot := b.buildSnapshotLocked()
	focused, _ := b.focusedInfoLocked()
	wsCB := b.onWorkspace
	winCB := b.onWindow
	b.mu.Unlock()

	if wsCB != nil {
		wsCB(snapshot)
	}
	if winCB != nil {
		winCB(focused)
	}
}
