package compositor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
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
	niriCommandTimeout   = 2 * time.Second
	niriEventReadTimeout = time.Second
)

type niriWorkspaceJSON struct {
	ID        int     `json:"id"`
	Idx       int     `json:"idx"`
	Name      *string `json:"name"`
	Output    *string `json:"output"`
	IsActive  bool    `json:"is_active"`
	IsFocused bool    `json:"is_focused"`
	IsUrgent  bool    `json:"is_urgent"`
}

type niriWindowJSON struct {
	ID          int     `json:"id"`
	Title       *string `json:"title"`
	AppID       *string `json:"app_id"`
	WorkspaceID *int    `json:"workspace_id"`
	IsFocused   bool    `json:"is_focused"`
}

// NiriBackend speaks niri's IPC socket ($NIRI_SOCKET): newline-delimited
// JSON, one request or event per line. Unlike Hyprland, niri pushes full
// workspace/window lists in its events, so state is patched from the event
// stream without re-querying.
type NiriBackend struct {
	socketPath string
	// request is swappable for tests.
	request func(payload any) (json.RawMessage, error)

	mu         sync.Mutex
	workspaces map[int]niriWorkspaceJSON
	windows    map[int]niriWindowJSON
	focusedID  int
	hasFocus   bool

	onWorkspace WorkspaceCallback
	onWindow    WindowCallback

	started atomic.Bool
	stopped atomic.Bool
	done    chan struct{}
	log     zerolog.Logger
}

func NewNiriBackend() *NiriBackend {
	b := &NiriBackend{
		socketPath: os.Getenv("NIRI_SOCKET"),
		workspaces: make(map[int]niriWorkspaceJSON),
		windows:    make(map[int]niriWindowJSON),
		done:       make(chan struct{}),
		log:        log.With().Str("backend", "niri").Logger(),
	}
	b.request = b.socketRequest
	return b
}

func (b *NiriBackend) Name() string { return "Niri" }

func (b *NiriBackend) Start(onWorkspaceUpdate WorkspaceCallback, onWindowUpdate WindowCallback) {
	b.onWorkspace = onWorkspaceUpdate
	b.onWindow = onWindowUpdate
	b.started.Store(true)

	if err := b.refreshAll(); err != nil {
		b.log.Warn().Err(err).Msg("initial state query failed")
	}
	go b.eventLoop()
}

func (b *NiriBackend) Stop() {
	if !b.stopped.CompareAndSwap(false, true) {
		return
	}
	if b.started.Load() {
		<-b.done
	}
}

func (b *NiriBackend) ListWorkspaces() []WorkspaceMeta {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]WorkspaceMeta, 0, len(b.workspaces))
	for _, ws := range b.workspaces {
		out = append(out, niriMeta(ws))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func niriMeta(ws niriWorkspaceJSON) WorkspaceMeta {
	meta := WorkspaceMeta{ID: ws.ID, Name: strconv.Itoa(ws.Idx)}
	if ws.Name != nil && *ws.Name != "" {
		meta.Name = *ws.Name
	}
	if ws.Output != nil {
		meta.Output = *ws.Output
	}
	return meta
}

func (b *NiriBackend) WorkspaceSnapshot() WorkspaceSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buildSnapshotLocked()
}

func (b *NiriBackend) FocusedWindow() (WindowInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focusedInfoLocked()
}

func (b *NiriBackend) SwitchWorkspace(id int) {
	if b.stopped.Load() {
		return
	}
	action := map[string]any{
		"Action": map[string]any{
			"FocusWorkspace": map[string]any{
				"reference": map[string]any{"Id": id},
			},
		},
	}
	if _, err := b.request(action); err != nil {
		b.log.Warn().Err(err).Int("workspace", id).Msg("workspace switch failed")
	}
}

func (b *NiriBackend) QuitCompositor() {
	if b.stopped.Load() {
		return
	}
	action := map[string]any{
		"Action": map[string]any{
			"Quit": map[string]any{"skip_confirmation": true},
		},
	}
	if _, err := b.request(action); err != nil {
		b.log.Warn().Err(err).Msg("quit action failed")
	}
}

// socketRequest sends one JSON line and decodes the {"Ok": ...} / {"Err":
// ...} reply envelope, returning the Ok payload.
func (b *NiriBackend) socketRequest(payload any) (json.RawMessage, error) {
	conn, err := net.DialTimeout("unix", b.socketPath, niriCommandTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", b.socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(niriCommandTimeout))

	line, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	// Closing the write side tells niri the request is complete.
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}

	reply, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(reply) == 0 {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return parseNiriReply(reply)
}

func parseNiriReply(reply []byte) (json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(reply, &envelope); err != nil {
		return nil, fmt.Errorf("reply parse: %w", err)
	}
	if errMsg, ok := envelope["Err"]; ok {
		return nil, fmt.Errorf("niri error: %s", strings.Trim(string(errMsg), `"`))
	}
	return envelope["Ok"], nil
}

func (b *NiriBackend) refreshAll() error {
	wsOk, err := b.request("Workspaces")
	if err != nil {
		return err
	}
	var wsPayload map[string][]niriWorkspaceJSON
	if err := json.Unmarshal(wsOk, &wsPayload); err != nil {
		return fmt.Errorf("workspaces reply: %w", err)
	}

	winOk, err := b.request("Windows")
	if err != nil {
		return err
	}
	var winPayload map[string][]niriWindowJSON
	if err := json.Unmarshal(winOk, &winPayload); err != nil {
		return fmt.Errorf("windows reply: %w", err)
	}

	b.mu.Lock()
	b.setWorkspacesLocked(wsPayload["Workspaces"])
	b.setWindowsLocked(winPayload["Windows"])
	b.mu.Unlock()
	b.publish()
	return nil
}

func (b *NiriBackend) setWorkspacesLocked(list []niriWorkspaceJSON) {
	b.workspaces = make(map[int]niriWorkspaceJSON, len(list))
	for _, ws := range list {
		b.workspaces[ws.ID] = ws
	}
}

func (b *NiriBackend) setWindowsLocked(list []niriWindowJSON) {
	b.windows = make(map[int]niriWindowJSON, len(list))
	b.hasFocus = false
	for _, win := range list {
		b.windows[win.ID] = win
		if win.IsFocused {
			b.focusedID = win.ID
			b.hasFocus = true
		}
	}
}

func (b *NiriBackend) eventLoop() {
	defer close(b.done)
	backoff := hyprReconnectInitial
	for !b.stopped.Load() {
		conn, err := b.openEventStream()
		if err != nil {
			b.log.Warn().Err(err).Dur("retry_in", backoff).Msg("event stream connect failed")
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

func (b *NiriBackend) openEventStream() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", b.socketPath, niriCommandTimeout)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write([]byte("\"EventStream\"\n")); err != nil {
		conn.Close()
		return nil, err
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}
	return conn, nil
}

func (b *NiriBackend) readEvents(conn net.Conn) {
	reader := bufio.NewReader(conn)
	// First line is the Ok/Err acknowledgment for the EventStream request.
	_ = conn.SetReadDeadline(time.Now().Add(niriCommandTimeout))
	ack, err := reader.ReadBytes('\n')
	if err != nil {
		b.log.Warn().Err(err).Msg("event stream acknowledgment read failed")
		return
	}
	if _, err := parseNiriReply(ack); err != nil {
		b.log.Warn().Err(err).Msg("event stream request rejected")
		return
	}

	for {
		if b.stopped.Load() {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(niriEventReadTimeout))
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			if !b.stopped.Load() {
				b.log.Warn().Err(err).Msg("event stream closed, reconnecting")
			}
			return
		}
		b.handleEvent(line)
	}
}

func (b *NiriBackend) sleepInterruptible(d time.Duration) (stopped bool) {
	const step = 100 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		if b.stopped.Load() {
			return true
		}
		time.Sleep(step)
	}
	return b.stopped.Load()
}

// handleEvent applies one event line. Each event is a single-key object
// naming the variant.
func (b *NiriBackend) handleEvent(line []byte) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(line, &envelope); err != nil {
		b.log.Warn().Err(err).Msg("event parse failed")
		return
	}
	for variant, payload := range envelope {
		b.applyEvent(variant, payload)
	}
}

func (b *NiriBackend) applyEvent(variant string, payload json.RawMessage) {
	switch variant {
	case "WorkspacesChanged":
		var ev struct {
			Workspaces []niriWorkspaceJSON `json:"workspaces"`
		}
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		b.mu.Lock()
		b.setWorkspacesLocked(ev.Workspaces)
		b.mu.Unlock()
		b.publish()

	case "WorkspaceActivated":
		var ev struct {
			ID      int  `json:"id"`
			Focused bool `json:"focused"`
		}
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		b.mu.Lock()
		activated, ok := b.workspaces[ev.ID]
		if ok {
			// Activation is per output; only workspaces sharing the output
			// lose their active flag.
			for id, ws := range b.workspaces {
				sameOutput := equalOutput(ws.Output, activated.Output)
				if sameOutput {
					ws.IsActive = id == ev.ID
				}
				if ev.Focused {
					ws.IsFocused = id == ev.ID
				}
				b.workspaces[id] = ws
			}
			activated = b.workspaces[ev.ID]
			activated.IsUrgent = false
			b.workspaces[ev.ID] = activated
		}
		b.mu.Unlock()
		b.publish()

	case "WorkspaceUrgencyChanged":
		var ev struct {
			ID     int  `json:"id"`
			Urgent bool `json:"urgent"`
		}
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		b.mu.Lock()
		if ws, ok := b.workspaces[ev.ID]; ok {
			ws.IsUrgent = ev.Urgent
			b.workspaces[ev.ID] = ws
		}
		b.mu.Unlock()
		b.publish()

	case "WindowsChanged":
		var ev struct {
			Windows []niriWindowJSON `json:"windows"`
		}
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		b.mu.Lock()
		b.setWindowsLocked(ev.Windows)
		b.mu.Unlock()
		b.publish()

	case "WindowOpenedOrChanged":
		var ev struct {
			Window niriWindowJSON `json:"window"`
		}
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		b.mu.Lock()
		b.windows[ev.Window.ID] = ev.Window
		if ev.Window.IsFocused {
			b.focusedID = ev.Window.ID
			b.hasFocus = true
		}
		b.mu.Unlock()
		b.publish()

	case "WindowClosed":
		var ev struct {
			ID int `json:"id"`
		}
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		b.mu.Lock()
		delete(b.windows, ev.ID)
		if b.focusedID == ev.ID {
			b.hasFocus = false
		}
		b.mu.Unlock()
		b.publish()

	case "WindowFocusChanged":
		var ev struct {
			ID *int `json:"id"`
		}
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		b.mu.Lock()
		if ev.ID == nil {
			b.hasFocus = false
		} else {
			b.focusedID = *ev.ID
			b.hasFocus = true
		}
		b.mu.Unlock()
		b.publish()
	}
}

func equalOutput(a, b *string) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return *a == *b
	}
}

func (b *NiriBackend) buildSnapshotLocked() WorkspaceSnapshot {
	snapshot := NewWorkspaceSnapshot()
	counts := make(map[int]uint)
	for _, win := range b.windows {
		if win.WorkspaceID != nil {
			counts[*win.WorkspaceID]++
		}
	}
	for id, ws := range b.workspaces {
		output := ""
		if ws.Output != nil {
			output = *ws.Output
		}
		state, ok := snapshot.PerOutput[output]
		if !ok {
			state = NewPerOutputState()
		}
		if ws.IsActive {
			snapshot.Active[id] = true
			state.Active[id] = true
		}
		if ws.IsUrgent {
			snapshot.Urgent[id] = true
		}
		if n := counts[id]; n > 0 {
			snapshot.Occupied[id] = true
			snapshot.WindowCounts[id] = n
			state.Occupied[id] = true
			state.WindowCounts[id] = n
		}
		snapshot.PerOutput[output] = state
	}
	return snapshot
}

func (b *NiriBackend) focusedInfoLocked() (WindowInfo, bool) {
	if !b.hasFocus {
		return WindowInfo{}, false
	}
	win, ok := b.windows[b.focusedID]
	if !ok {
		return WindowInfo{}, false
	}
	info := WindowInfo{}
	if win.Title != nil {
		info.Title = *win.Title
	}
	if win.AppID != nil {
		info.AppID = *win.AppID
	}
	if win.WorkspaceID != nil {
		info.WorkspaceID = *win.WorkspaceID
		if ws, ok := b.workspaces[*win.WorkspaceID]; ok && ws.Output != nil {
			info.Output = *ws.Output
		}
	}
	return info, true
}

func (b *NiriBackend) publish() {
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
