// Package compositor abstracts Wayland compositor IPC behind a uniform
// workspace + focused-window model. One backend instance and one monitoring
// goroutine serve every subscriber through the manager singleton.
//
// Output name contract: per-output keys and WindowInfo.Output use the
// compositor's connector names (e.g. "eDP-1", "DP-1") so bar instances can
// filter per monitor. Backends without connector names must use a stable
// fallback of their own.
package compositor

import "maps"

// WorkspaceMeta is static metadata for a workspace/tag, independent of
// whether it is active or occupied.
type WorkspaceMeta struct {
	// Unique identifier (typically 1-based index).
	ID int
	// Display name.
	Name string
	// Output this workspace belongs to. Niri workspaces are per-monitor,
	// so it is set there; Hyprland and Mango workspaces are global, so it
	// is empty.
	Output string
}

// PerOutputState is workspace state specific to a single output, for
// compositors where state varies per monitor.
type PerOutputState struct {
	// Active workspace IDs on this output. Most compositors have exactly
	// one; Mango/DWL can view multiple tags at once.
	Active map[int]bool
	// Workspace IDs that have windows on this output.
	Occupied map[int]bool
	// Windows per workspace on this output.
	WindowCounts map[int]uint
}

func NewPerOutputState() PerOutputState {
	return PerOutputState{
		Active:       make(map[int]bool),
		Occupied:     make(map[int]bool),
		WindowCounts: make(map[int]uint),
	}
}

func (p PerOutputState) clone() PerOutputState {
	return PerOutputState{
		Active:       maps.Clone(p.Active),
		Occupied:     maps.Clone(p.Occupied),
		WindowCounts: maps.Clone(p.WindowCounts),
	}
}

func (p PerOutputState) equal(other PerOutputState) bool {
	return maps.Equal(p.Active, other.Active) &&
		maps.Equal(p.Occupied, other.Occupied) &&
		maps.Equal(p.WindowCounts, other.WindowCounts)
}

// WorkspaceSnapshot is a point-in-time value of workspace state across all
// workspaces, replaced atomically when the compositor signals changes.
type WorkspaceSnapshot struct {
	// Currently active workspace IDs.
	Active map[int]bool
	// Workspace IDs that have windows.
	Occupied map[int]bool
	// Workspace IDs marked urgent.
	Urgent map[int]bool
	// Windows per workspace; not all backends provide this.
	WindowCounts map[int]uint
	// Per-output state keyed by connector name.
	PerOutput map[string]PerOutputState
}

func NewWorkspaceSnapshot() WorkspaceSnapshot {
	return WorkspaceSnapshot{
		Active:       make(map[int]bool),
		Occupied:     make(map[int]bool),
		Urgent:       make(map[int]bool),
		WindowCounts: make(map[int]uint),
		PerOutput:    make(map[string]PerOutputState),
	}
}

// Clone deep-copies the snapshot so it can cross threads and outlive the
// event that produced it.
func (s WorkspaceSnapshot) Clone() WorkspaceSnapshot {
	out := WorkspaceSnapshot{
		Active:       maps.Clone(s.Active),
		Occupied:     maps.Clone(s.Occupied),
		Urgent:       maps.Clone(s.Urgent),
		WindowCounts: maps.Clone(s.WindowCounts),
		PerOutput:    make(map[string]PerOutputState, len(s.PerOutput)),
	}
	for name, state := range s.PerOutput {
		out.PerOutput[name] = state.clone()
	}
	return out
}

// Equal compares every observable field.
func (s WorkspaceSnapshot) Equal(other WorkspaceSnapshot) bool {
	if !maps.Equal(s.Active, other.Active) ||
		!maps.Equal(s.Occupied, other.Occupied) ||
		!maps.Equal(s.Urgent, other.Urgent) ||
		!maps.Equal(s.WindowCounts, other.WindowCounts) {
		return false
	}
	if len(s.PerOutput) != len(other.PerOutput) {
		return false
	}
	for name, state := range s.PerOutput {
		otherState, ok := other.PerOutput[name]
		if !ok || !state.equal(otherState) {
			return false
		}
	}
	return true
}

// WindowInfo describes the currently focused window. The zero value means
// "no focused window".
type WindowInfo struct {
	Title string
	// Application ID or class, e.g. "firefox", "org.gnome.Nautilus".
	AppID string
	// Workspace the window is on; 0 when unknown.
	WorkspaceID int
	// Output the window is on; empty when unknown.
	Output string
}

// IsEmpty reports whether the info carries no meaningful content.
func (w WindowInfo) IsEmpty() bool {
	return w.Title == "" && w.AppID == ""
}

// WorkspaceCallback receives workspace snapshots. Backends invoke it from
// their monitoring goroutine; it must be safe to call off the UI thread.
type WorkspaceCallback func(WorkspaceSnapshot)

// WindowCallback receives focused-window updates, the zero WindowInfo when
// no window is focused.
type WindowCallback func(WindowInfo)

// Backend is a concrete compositor integration.
//
// Lifecycle: uninitialised, then Start exactly once, then Stop. Start must
// pre-populate initial state before returning so WorkspaceSnapshot is
// valid immediately after. Stop is idempotent; operations after Stop are
// no-ops. Callbacks are invoked from the backend's monitoring goroutine.
type Backend interface {
	// Name identifies the backend for logs, e.g. "Hyprland".
	Name() string
	Start(onWorkspaceUpdate WorkspaceCallback, onWindowUpdate WindowCallback)
	Stop()

	ListWorkspaces() []WorkspaceMeta
	WorkspaceSnapshot() WorkspaceSnapshot
	// FocusedWindow returns the last known focused window and whether one
	// is known at all.
	FocusedWindow() (WindowInfo, bool)

	SwitchWorkspace(id int)
	QuitCompositor()
}
