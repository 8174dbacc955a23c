package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadExplicitPathMissingIsErrorWithoutFallback(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadExplicitPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[bar]
size = 28
`)

	result, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, path, result.Source)
	assert.False(t, result.UsedDefaults)
	assert.Equal(t, uint(28), result.Config.Bar.Size)
}

func TestLoadMergesUserValuesOverDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[theme]
mode = "dark"
`)

	result, err := Load(path)
	require.NoError(t, err)

	defaults := Default()
	assert.Equal(t, "dark", result.Config.Theme.Mode, "user value wins")
	assert.Equal(t, defaults.Bar.Size, result.Config.Bar.Size, "untouched values come from defaults")
	assert.Equal(t, defaults.OSD.TimeoutMS, result.Config.OSD.TimeoutMS)
}

func TestLoadSearchChainPrefersXDGConfigHome(t *testing.T) {
	xdg := t.TempDir()
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "vibepanel"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".config", "vibepanel"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "vibepanel", "config.toml"),
		[]byte("[bar]\nsize = 31\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".config", "vibepanel", "config.toml"),
		[]byte("[bar]\nsize = 57\n"), 0o644))

	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	result, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint(31), result.Config.Bar.Size)
}

func TestLoadFallsBackToEmbeddedDefaultsWhenNoFileExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	result, err := Load("")

	require.NoError(t, err)
	assert.True(t, result.UsedDefaults)
	assert.Empty(t, result.Source)
	require.NoError(t, result.Config.Validate())
}

func TestLoadBrokenFileInChainIsHardError(t *testing.T) {
	xdg := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "vibepanel"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "vibepanel", "config.toml"),
		[]byte("not [valid toml"), 0o644))

	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, err := Load("")
	require.Error(t, err, "an existing but broken file must not silently fall back")
}

func TestLoadAggregatesAllValidationErrors(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[bar]
size = 0

[theme]
mode = "bad_mode"

[osd]
timeout_ms = 0
`)

	_, err := Load(path)

	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "bar.size")
	assert.Contains(t, msg, "theme.mode")
	assert.Contains(t, msg, "osd.timeout_ms")
}

func TestLoadParsesInlineWidgetTables(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[widgets]
left = ["workspaces", { name = "clock", format = "%H:%M:%S" }, "spacer:24"]
center = []
right = ["battery"]

[widgets.battery]
show_percent = true
`)

	result, err := Load(path)
	require.NoError(t, err)

	left := result.Config.Widgets.Left
	require.Len(t, left, 3)
	assert.Equal(t, "workspaces", left[0].Name)
	assert.Equal(t, "clock", left[1].Name)
	assert.Equal(t, "%H:%M:%S", left[1].Options["format"])

	px, ok := left[2].SpacerWidth()
	assert.True(t, ok)
	assert.Equal(t, uint(24), px)

	opts, ok := result.Config.Widgets.GetOptions("battery")
	require.True(t, ok)
	assert.Equal(t, true, opts.Options["show_percent"])
}

func TestEmbeddedDefaultParsesAndValidates(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.NotZero(t, cfg.Bar.Size)
	assert.NotZero(t, cfg.OSD.TimeoutMS)
	assert.NotEmpty(t, cfg.Widgets.Left)
}
