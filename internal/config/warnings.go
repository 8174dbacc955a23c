package config

import "fmt"

// publishedOptionKeys lists the option keys each built-in widget
// understands. Options for widgets absent from this table are not checked;
// unknown keys only ever warn, so third-party configs stay loadable.
var publishedOptionKeys = map[string][]string{
	"clock":        {"format", "calendar"},
	"cpu":          {"interval", "warning_threshold", "show_icon"},
	"memory":       {"interval", "warning_threshold", "show_icon"},
	"battery":      {"show_percent", "warning_threshold", "critical_threshold"},
	"updates":      {"check_interval", "hide_when_zero"},
	"media":        {"max_title_length", "show_artist"},
	"workspaces":   {"show_empty", "max_workspaces"},
	"window_title": {"max_length"},
	"osd":          {"position", "timeout_ms"},
}

// Warnings reports non-fatal configuration issues: likely typos and
// settings with no effect. Unlike Validate, none of these block startup.
func (c *Config) Warnings() []string {
	var warnings []string

	for _, name := range c.Widgets.UnreferencedConfigs() {
		warnings = append(warnings, fmt.Sprintf(
			"widgets.%s: config defined but widget not used in any section (possible typo?)", name))
	}

	for name, opts := range c.Widgets.Configs {
		known, ok := publishedOptionKeys[name]
		if !ok {
			continue
		}
		for key := range opts.Options {
			if !contains(known, key) {
				warnings = append(warnings, fmt.Sprintf(
					"widgets.%s.%s: unknown option (ignored)", name, key))
			}
		}
	}

	for _, placement := range c.Widgets.Center {
		if placement.BaseName() == "spacer" {
			warnings = append(warnings,
				"widgets.center: spacer widget has no effect in center section; "+
					"use spacer in left/right sections to push widgets toward the center")
			break
		}
	}

	return warnings
}
