package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return Default()
}

func TestValidateEnumFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad theme mode",
			mutate:  func(c *Config) { c.Theme.Mode = "ultra_dark" },
			wantErr: "theme.mode",
		},
		{
			name:    "bad backend",
			mutate:  func(c *Config) { c.Workspace.Backend = "gnome_shell" },
			wantErr: "workspace.backend",
		},
		{
			name:    "bad osd position",
			mutate:  func(c *Config) { c.OSD.Position = "middle" },
			wantErr: "osd.position",
		},
		{
			name:    "bad accent",
			mutate:  func(c *Config) { c.Theme.Accent = "reddish" },
			wantErr: "theme.accent",
		},
		{
			name:    "bar size zero",
			mutate:  func(c *Config) { c.Bar.Size = 0 },
			wantErr: "bar.size",
		},
		{
			name:    "osd timeout zero",
			mutate:  func(c *Config) { c.OSD.TimeoutMS = 0 },
			wantErr: "osd.timeout_ms",
		},
		{
			name:    "bar opacity out of range",
			mutate:  func(c *Config) { c.Theme.BarOpacity = 1.5 },
			wantErr: "theme.bar_opacity",
		},
		{
			name:    "widget opacity out of range",
			mutate:  func(c *Config) { c.Theme.WidgetOpacity = -0.1 },
			wantErr: "theme.widget_opacity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAcceptsHexAccents(t *testing.T) {
	for _, accent := range []string{"gtk", "none", "#fff", "#3584e4", "#ABCDEF"} {
		cfg := validConfig()
		cfg.Theme.Accent = accent
		assert.NoError(t, cfg.Validate(), "accent %q should validate", accent)
	}
}

func TestValidateNotchForbidsCenterWidgets(t *testing.T) {
	cfg := validConfig()
	cfg.Bar.NotchEnabled = true
	cfg.Widgets.Center = []WidgetPlacement{{Name: "clock"}}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "widgets.center")
	assert.Contains(t, err.Error(), "notch_enabled")
}

func TestValidateNotchWithEmptyCenterIsFine(t *testing.T) {
	cfg := validConfig()
	cfg.Bar.NotchEnabled = true
	cfg.Widgets.Center = nil

	assert.NoError(t, cfg.Validate())
}

func TestValidateReportsAllViolationsAtOnce(t *testing.T) {
	cfg := validConfig()
	cfg.Bar.Size = 0
	cfg.Theme.Mode = "bad_mode"
	cfg.OSD.TimeoutMS = 0
	cfg.Workspace.Backend = "weston"

	err := cfg.Validate()
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Violations, 4)

	msg := err.Error()
	for _, path := range []string{"bar.size", "theme.mode", "osd.timeout_ms", "workspace.backend"} {
		assert.Contains(t, msg, path)
	}
}

func TestWarningsForUnreferencedWidgetConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Widgets.Configs = map[string]WidgetOptions{
		"clokc": {}, // typo, never placed
	}

	warnings := cfg.Warnings()

	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "widgets.clokc")
}

func TestWarningsForUnknownOptionKey(t *testing.T) {
	cfg := validConfig()
	cfg.Widgets.Left = []WidgetPlacement{{Name: "clock"}}
	cfg.Widgets.Configs = map[string]WidgetOptions{
		"clock": {Options: map[string]any{"fromat": "%H:%M"}},
	}

	warnings := cfg.Warnings()

	found := false
	for _, w := range warnings {
		if w == "widgets.clock.fromat: unknown option (ignored)" {
			found = true
		}
	}
	assert.True(t, found, "expected unknown-option warning, got %v", warnings)
}

func TestWarningsForSpacerInCenter(t *testing.T) {
	cfg := validConfig()
	cfg.Bar.NotchEnabled = false
	cfg.Widgets.Center = []WidgetPlacement{{Name: "spacer:10"}}

	warnings := cfg.Warnings()

	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[len(warnings)-1], "spacer")
}

func TestUnknownOptionsNeverFailValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Widgets.Left = []WidgetPlacement{{Name: "clock"}}
	cfg.Widgets.Configs = map[string]WidgetOptions{
		"clock": {Options: map[string]any{"definitely_not_a_key": 1}},
	}

	assert.NoError(t, cfg.Validate())
}
