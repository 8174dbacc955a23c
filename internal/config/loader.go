package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ErrConfigNotFound is returned when an explicitly requested config file
// does not exist. Explicit paths never fall back.
var ErrConfigNotFound = errors.New("config file not found")

// LoadResult is the outcome of a successful load.
type LoadResult struct {
	Config *Config
	// Source is the path of the file that was loaded; empty when the
	// embedded defaults were used.
	Source string
	// UsedDefaults is true iff no config file existed anywhere and the
	// embedded document was used.
	UsedDefaults bool
}

// SearchPaths returns the XDG config lookup chain, in priority order.
func SearchPaths() []string {
	var paths []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "vibepanel", "config.toml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", "vibepanel", "config.toml"))
	}
	paths = append(paths, "config.toml")

	return paths
}

// Load finds and loads the configuration.
//
// With an explicit path the file must exist, parse, and validate; there is
// no fallback. Without one, the search chain is walked and the first
// existing file wins. A file that exists but fails to parse or validate is
// a hard error rather than a silent fallback. Only when no file exists at
// all is the embedded default document used.
func Load(explicit string) (*LoadResult, error) {
	if explicit != "" {
		cfg, err := loadFile(explicit)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: explicit}, nil
	}

	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: path}, nil
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("embedded default config: %w", err)
	}
	return &LoadResult{Config: cfg, UsedDefaults: true}, nil
}

// loadFile parses one TOML file, deep-merged over the embedded defaults so
// user files only need to state what they change.
func loadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader([]byte(DefaultTOML))); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	if err := v.MergeConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(placementHook())); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// placementHook lets a widget placement be written either as a bare string
// ("clock", "spacer:12") or as an inline table ({ name = "clock", ... }).
func placementHook() mapstructure.DecodeHookFuncType {
	placementType := reflect.TypeOf(WidgetPlacement{})
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != placementType {
			return data, nil
		}
		if from.Kind() == reflect.String {
			return map[string]any{"name": data}, nil
		}
		return data, nil
	}
}
