// Package config implements the declarative TOML configuration model:
// typed tree, embedded defaults, XDG search chain, strict multi-error
// validation, and non-fatal warnings.
package config

import (
	"sort"
	"strconv"
	"strings"
)

// Valid values for enum-typed fields.
var (
	ValidBackends     = []string{"auto", "mango", "hyprland", "niri"}
	ValidThemeModes   = []string{"auto", "dark", "light"}
	ValidOSDPositions = []string{"top", "bottom"}
)

// Config is the root of the configuration tree. Immutable after load.
type Config struct {
	Bar       BarConfig       `mapstructure:"bar" json:"bar"`
	Widgets   WidgetsConfig   `mapstructure:"widgets" json:"widgets"`
	Icons     IconsConfig     `mapstructure:"icons" json:"icons"`
	Workspace WorkspaceConfig `mapstructure:"workspace" json:"workspace"`
	Theme     ThemeConfig     `mapstructure:"theme" json:"theme"`
	OSD       OSDConfig       `mapstructure:"osd" json:"osd"`
	Advanced  AdvancedConfig  `mapstructure:"advanced" json:"advanced"`
}

// BarConfig controls panel geometry and the notch cut-out.
type BarConfig struct {
	// Height of the bar in pixels.
	Size uint `mapstructure:"size" json:"size"`
	// Gap between widgets within a section.
	WidgetSpacing uint `mapstructure:"widget_spacing" json:"widget_spacing"`
	// Margin between the bar and the screen edges.
	OuterMargin uint `mapstructure:"outer_margin" json:"outer_margin"`
	// Margin between section edges and the first/last widget.
	SectionEdgeMargin uint `mapstructure:"section_edge_margin" json:"section_edge_margin"`
	// Reserve the centre region for a hardware notch.
	NotchEnabled bool `mapstructure:"notch_enabled" json:"notch_enabled"`
	// Width reserved for the notch; 0 means auto.
	NotchWidth   uint `mapstructure:"notch_width" json:"notch_width"`
	BorderRadius uint `mapstructure:"border_radius" json:"border_radius"`
	// Vertical gap between a widget and its popover.
	PopoverOffset uint `mapstructure:"popover_offset" json:"popover_offset"`
	// Connector names to show the bar on; empty means all outputs.
	Outputs []string `mapstructure:"outputs" json:"outputs"`
}

// EffectiveNotchWidth returns the configured notch width, or a default
// matching common notch hardware when set to 0.
func (b BarConfig) EffectiveNotchWidth() uint {
	if b.NotchWidth > 0 {
		return b.NotchWidth
	}
	return 200
}

// WidgetsConfig holds the three placement sections plus per-widget option
// tables. Any key under [widgets] that is not a known section lands in
// Configs, keyed by widget name.
type WidgetsConfig struct {
	Left         []WidgetPlacement `mapstructure:"left" json:"left"`
	Center       []WidgetPlacement `mapstructure:"center" json:"center"`
	Right        []WidgetPlacement `mapstructure:"right" json:"right"`
	BorderRadius uint              `mapstructure:"border_radius" json:"border_radius"`

	Configs map[string]WidgetOptions `mapstructure:",remain" json:"-"`
}

// WidgetOptions is a per-widget option table. Unknown keys are tolerated
// (collected in Options) so configs stay forward-compatible.
type WidgetOptions struct {
	Disabled bool    `mapstructure:"disabled" json:"disabled"`
	Color    *string `mapstructure:"color" json:"color,omitempty"`

	Options map[string]any `mapstructure:",remain" json:"-"`
}

// WidgetPlacement is one entry in a section: either a bare widget name
// (possibly with inline spacer syntax "spacer:<px>") or an inline table
// with a name and options.
type WidgetPlacement struct {
	Name    string         `mapstructure:"name" json:"name"`
	Options map[string]any `mapstructure:",remain" json:"-"`
}

// BaseName strips inline arguments, e.g. "spacer:12" -> "spacer".
func (p WidgetPlacement) BaseName() string {
	name, _, _ := strings.Cut(p.Name, ":")
	return name
}

// DefaultSpacerWidth is used when a spacer has no inline width or the
// inline width fails to parse.
const DefaultSpacerWidth = 8

// SpacerWidth parses the inline "spacer:<px>" syntax. Reports ok=false for
// non-spacer entries; a bare "spacer" yields the default width.
func (p WidgetPlacement) SpacerWidth() (px uint, ok bool) {
	if p.BaseName() != "spacer" {
		return 0, false
	}
	_, arg, found := strings.Cut(p.Name, ":")
	if !found {
		return DefaultSpacerWidth, true
	}
	n, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return DefaultSpacerWidth, true
	}
	return uint(n), true
}

// IconsConfig selects the icon font.
type IconsConfig struct {
	Theme  string `mapstructure:"theme" json:"theme"`
	Weight uint   `mapstructure:"weight" json:"weight"`
}

// WorkspaceConfig selects the compositor backend.
type WorkspaceConfig struct {
	// One of: auto, mango, hyprland, niri.
	Backend string `mapstructure:"backend" json:"backend"`
}

// ThemeConfig controls colors and opacity.
type ThemeConfig struct {
	// One of: auto, dark, light.
	Mode string `mapstructure:"mode" json:"mode"`
	// "gtk", "none", or a hex color like "#3584e4".
	Accent        string  `mapstructure:"accent" json:"accent"`
	BarOpacity    float64 `mapstructure:"bar_opacity" json:"bar_opacity"`
	WidgetOpacity float64 `mapstructure:"widget_opacity" json:"widget_opacity"`
	FontFamily    string  `mapstructure:"font_family" json:"font_family"`
}

// OSDConfig controls the on-screen display surface.
type OSDConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// One of: top, bottom.
	Position  string `mapstructure:"position" json:"position"`
	TimeoutMS uint   `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// AdvancedConfig carries escape hatches that rarely need touching.
type AdvancedConfig struct {
	// Compositor override; normally workspace.backend is authoritative.
	Compositor string `mapstructure:"compositor" json:"compositor"`
}

// BackendChoice resolves the compositor backend, honouring the advanced
// override when present.
func (c *Config) BackendChoice() string {
	if c.Advanced.Compositor != "" {
		return c.Advanced.Compositor
	}
	return c.Workspace.Backend
}

// Sections returns the three placement sections in left, center, right order.
func (w *WidgetsConfig) Sections() [][]WidgetPlacement {
	return [][]WidgetPlacement{w.Left, w.Center, w.Right}
}

// AllReferencedWidgets returns the base names of every widget placed in any
// section.
func (w *WidgetsConfig) AllReferencedWidgets() map[string]struct{} {
	referenced := make(map[string]struct{})
	for _, section := range w.Sections() {
		for _, placement := range section {
			referenced[placement.BaseName()] = struct{}{}
		}
	}
	return referenced
}

// UnreferencedConfigs lists widget option tables whose widget is not placed
// in any section, usually a typo.
func (w *WidgetsConfig) UnreferencedConfigs() []string {
	referenced := w.AllReferencedWidgets()
	var unused []string
	for name := range w.Configs {
		if _, ok := referenced[name]; !ok {
			unused = append(unused, name)
		}
	}
	sort.Strings(unused)
	return unused
}

// IsDisabled reports whether the named widget is disabled in its options
// table.
func (w *WidgetsConfig) IsDisabled(name string) bool {
	opts, ok := w.Configs[name]
	return ok && opts.Disabled
}

// GetOptions returns the option table for a widget, if present.
func (w *WidgetsConfig) GetOptions(name string) (WidgetOptions, bool) {
	opts, ok := w.Configs[name]
	return opts, ok
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
