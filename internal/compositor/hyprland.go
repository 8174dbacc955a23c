package compositor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	hyprCommandTimeout   = 2 * time.Second
	hyprEventReadTimeout = time.Second
	hyprReconnectInitial = time.Second
	hyprReconnectMax     = 30 * time.Second
	hyprReconnectFactor  = 1.5

	// Hyprland creates workspaces lazily; the bar shows a fixed strip of
	// ten so switching to an empty one is always possible.
	hyprWorkspaceCount = 10
)

type hyprWorkspaceJSON struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Monitor string `json:"monitor"`
	Windows int    `json:"windows"`
}

type hyprMonitorJSON struct {
	Name            string `json:"name"`
	Focused         bool   `json:"focused"`
	ActiveWorkspace struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"activeWorkspace"`
}

type hyprActiveWindowJSON struct {
	Address   string `json:"address"`
	Class     string `json:"class"`
	Title     string `json:"title"`
	Workspace struct {
		ID int `json:"id"`
	} `json:"workspace"`
}

type hyprClientJSON struct {
	Address   string `json:"address"`
	Workspace struct {
		ID int `json:"id"`
	} `json:"workspace"`
}

// HyprlandBackend speaks Hyprland's two unix sockets: .socket.sock for
// request/reply commands and .socket2.sock for the line-oriented event
// stream. Topology events trigger a full re-query; the event payloads alone
// do not carry enough state to patch snapshots incrementally.
type HyprlandBackend struct {
	commandPath string
	eventPath   string
	// request is swappable for tests.
	request func(cmd string) ([]byte, error)

	mu       sync.Mutex
	snapshot WorkspaceSnapshot
	metas    map[int]WorkspaceMeta
	focused  WindowInfo
	hasFocus bool
	urgent   map[int]bool

	onWorkspace WorkspaceCallback
	onWindow    WindowCallback

	started atomic.Bool
	stopped atomic.Bool
	done    chan struct{}
	log     zerolog.Logger
}

func NewHyprlandBackend() *HyprlandBackend {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	signature := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	base := filepath.Join(runtimeDir, "hypr", signature)

	b := &HyprlandBackend{
		commandPath: filepath.Join(base, ".socket.sock"),
		eventPath:   filepath.Join(base, ".socket2.sock"),
		snapshot:    NewWorkspaceSnapshot(),
		metas:       make(map[int]WorkspaceMeta),
		urgent:      make(map[int]bool),
		done:        make(chan struct{}),
		log:         log.With().Str("backend", "hyprland").Logger(),
	}
	b.request = b.socketRequest
	return b
}

func (b *HyprlandBackend) Name() string { return "Hyprland" }

func (b *HyprlandBackend) Start(onWorkspaceUpdate WorkspaceCallback, onWindowUpdate WindowCallback) {
	b.onWorkspace = onWorkspaceUpdate
	b.onWindow = onWindowUpdate
	b.started.Store(true)

	if err := b.refreshAll(); err != nil {
		b.log.Warn().Err(err).Msg("initial state query failed")
	}
	go b.eventLoop()
}

func (b *HyprlandBackend) Stop() {
	if !b.stopped.CompareAndSwap(false, true) {
		return
	}
	if b.started.Load() {
		<-b.done
	}
}

func (b *HyprlandBackend) ListWorkspaces() []WorkspaceMeta {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]WorkspaceMeta, 0, len(b.metas))
	for _, meta := range b.metas {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *HyprlandBackend) WorkspaceSnapshot() WorkspaceSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot.Clone()
}

func (b *HyprlandBackend) FocusedWindow() (WindowInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focused, b.hasFocus
}

func (b *HyprlandBackend) SwitchWorkspace(id int) {
	if b.stopped.Load() {
		return
	}
	if _, err := b.request(fmt.Sprintf("dispatch workspace %d", id)); err != nil {
		b.log.Warn().Err(err).Int("workspace", id).Msg("workspace switch failed")
	}
}

func (b *HyprlandBackend) QuitCompositor() {
	if b.stopped.Load() {
		return
	}
	if _, err := b.request("dispatch exit"); err != nil {
		b.log.Warn().Err(err).Msg("exit dispatch failed")
	}
}

// socketRequest opens a fresh connection per command, as Hyprland expects.
func (b *HyprlandBackend) socketRequest(cmd string) ([]byte, error) {
	conn, err := net.DialTimeout("unix", b.commandPath, hyprCommandTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", b.commandPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(hyprCommandTimeout)
	_ = conn.SetDeadline(deadline)
	if _, err := conn.Write([]byte(cmd)); err != nil {
		return nil, fmt.Errorf("write %q: %w", cmd, err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("read reply for %q: %w", cmd, err)
	}
	return reply, nil
}

func (b *HyprlandBackend) eventLoop() {
	defer close(b.done)
	backoff := hyprReconnectInitial
	for !b.stopped.Load() {
		conn, err := net.DialTimeout("unix", b.eventPath, hyprCommandTimeout)
		if err != nil {
			b.log.Warn().Err(err).Dur("retry_in", backoff).Msg("event socket connect failed")
			if b.sleepInterruptible(backoff) {
				return
			}
			backoff = nextBackoff(backoff, hyprReconnectInitial, hyprReconnectMax, hyprReconnectFactor)
			continue
		}
		backoff = hyprReconnectInitial
		b.readEvents(conn)
		conn.Close()
	}
}

func (b *HyprlandBackend) readEvents(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		if b.stopped.Load() {
			return
		}
		// Short read deadline so a shutdown is noticed promptly.
		_ = conn.SetReadDeadline(time.Now().Add(hyprEventReadTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			if !b.stopped.Load() {
				b.log.Warn().Err(err).Msg("event stream closed, reconnecting")
			}
			return
		}
		b.handleEvent(strings.TrimRight(line, "\n"))
	}
}

func (b *HyprlandBackend) sleepInterruptible(d time.Duration) (stopped bool) {
	const step = 100 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		if b.stopped.Load() {
			return true
		}
		time.Sleep(step)
	}
	return b.stopped.Load()
}

func nextBackoff(cur, initial, max time.Duration, factor float64) time.Duration {
	next := time.Duration(float64(cur) * factor)
	if next < initial {
		next = initial
	}
	if next > max {
		next = max
	}
	return next
}

// handleEvent processes one "name>>payload" line from .socket2.sock.
func (b *HyprlandBackend) handleEvent(line string) {
	name, payload, found := strings.Cut(line, ">>")
	if !found {
		return
	}
	switch name {
	case "workspace", "createworkspace", "destroyworkspace", "moveworkspace",
		"focusedmon", "openwindow", "closewindow", "movewindow":
		if err := b.refreshAll(); err != nil {
			b.log.Warn().Err(err).Str("event", name).Msg("state refresh failed")
		}
	case "workspacev2":
		// "id,name"
		idStr, _, _ := strings.Cut(payload, ",")
		if id, err := strconv.Atoi(idStr); err == nil {
			b.clearUrgent(id)
		}
		if err := b.refreshAll(); err != nil {
			b.log.Warn().Err(err).Str("event", name).Msg("state refresh failed")
		}
	case "urgent":
		b.markUrgentByAddress(payload)
	case "activewindow":
		// "class,title"; the title itself may contain commas.
		class, title, _ := strings.Cut(payload, ",")
		b.setFocusedWindow(WindowInfo{Title: title, AppID: class})
	case "activewindowv2":
		// Address-only duplicate of activewindow; nothing extra to learn.
	}
}

func (b *HyprlandBackend) setFocusedWindow(win WindowInfo) {
	b.mu.Lock()
	if win.IsEmpty() {
		b.focused = WindowInfo{}
		b.hasFocus = false
	} else {
		b.focused = win
		b.hasFocus = true
	}
	cb := b.onWindow
	current := b.focused
	b.mu.Unlock()

	if cb != nil {
		cb(current)
	}
}

func (b *HyprlandBackend) clearUrgent(id int) {
	b.mu.Lock()
	delete(b.urgent, id)
	b.mu.Unlock()
}

// markUrgentByAddress resolves a window address to its workspace via
// `j/clients` and flags that workspace urgent.
func (b *HyprlandBackend) markUrgentByAddress(address string) {
	data, err := b.request("j/clients")
	if err != nil {
		b.log.Warn().Err(err).Msg("clients query for urgent event failed")
		return
	}
	var clients []hyprClientJSON
	if err := json.Unmarshal(data, &clients); err != nil {
		b.log.Warn().Err(err).Msg("clients reply parse failed")
		return
	}
	address = strings.TrimPrefix(address, "0x")
	for _, client := range clients {
		if strings.TrimPrefix(client.Address, "0x") == address {
			b.mu.Lock()
			b.urgent[client.Workspace.ID] = true
			b.mu.Unlock()
			if err := b.refreshAll(); err != nil {
				b.log.Warn().Err(err).Msg("state refresh after urgent failed")
			}
			return
		}
	}
}

// refreshAll re-queries workspaces, monitors and the active window, then
// publishes a fresh snapshot.
func (b *HyprlandBackend) refreshAll() error {
	wsData, err := b.request("j/workspaces")
	if err != nil {
		return err
	}
	var workspaces []hyprWorkspaceJSON
	if err := json.Unmarshal(wsData, &workspaces); err != nil {
		return fmt.Errorf("workspaces reply: %w", err)
	}

	monData, err := b.request("j/monitors")
	if err != nil {
		return err
	}
	var monitors []hyprMonitorJSON
	if err := json.Unmarshal(monData, &monitors); err != nil {
		return fmt.Errorf("monitors reply: %w", err)
	}

	var active hyprActiveWindowJSON
	winData, err := b.request("j/activewindow")
	if err == nil {
		// An empty object means no focused window; ignore parse errors from
		// Hyprland's occasional non-JSON "Invalid" reply.
		_ = json.Unmarshal(winData, &active)
	}

	snapshot := NewWorkspaceSnapshot()
	metas := make(map[int]WorkspaceMeta)
	for id := 1; id <= hyprWorkspaceCount; id++ {
		metas[id] = WorkspaceMeta{ID: id, Name: strconv.Itoa(id)}
	}
	for _, ws := range workspaces {
		metas[ws.ID] = WorkspaceMeta{ID: ws.ID, Name: ws.Name}
		if ws.Windows > 0 {
			snapshot.Occupied[ws.ID] = true
		}
		snapshot.WindowCounts[ws.ID] = uint(ws.Windows)

		state, ok := snapshot.PerOutput[ws.Monitor]
		if !ok {
			state = NewPerOutputState()
		}
		if ws.Windows > 0 {
			state.Occupied[ws.ID] = true
		}
		state.WindowCounts[ws.ID] = uint(ws.Windows)
		snapshot.PerOutput[ws.Monitor] = state
	}
	for _, mon := range monitors {
		snapshot.Active[mon.ActiveWorkspace.ID] = true
		state, ok := snapshot.PerOutput[mon.Name]
		if !ok {
			state = NewPerOutputState()
		}
		state.Active[mon.ActiveWorkspace.ID] = true
		snapshot.PerOutput[mon.Name] = state
	}

	b.mu.Lock()
	for id := range b.urgent {
		if snapshot.Active[id] {
			// Focusing a workspace clears its urgency.
			delete(b.urgent, id)
			continue
		}
		snapshot.Urgent[id] = true
	}
	b.snapshot = snapshot
	b.metas = metas

	if active.Address == "" && active.Class == "" && active.Title == "" {
		b.focused = WindowInfo{}
		b.hasFocus = false
	} else {
		b.focused = WindowInfo{
			Title:       active.Title,
			AppID:       active.Class,
			WorkspaceID: active.Workspace.ID,
		}
		b.hasFocus = true
	}
	wsCB := b.onWorkspace
	winCB := b.onWindow
	published := snapshot.Clone()
	focused := b.focused
	b.mu.Unlock()

	if wsCB != nil {
		wsCB(published)
	}
	if winCB != nil {
		winCB(focused)
	}
	return nil
}
