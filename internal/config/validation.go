package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration strictly and reports every violation
// at once, each prefixed with the dotted path of the offending field.
func (c *Config) Validate() error {
	var violations []string

	if !contains(ValidBackends, c.Workspace.Backend) {
		violations = append(violations, fmt.Sprintf(
			"workspace.backend: invalid value %q, expected one of: %s",
			c.Workspace.Backend, strings.Join(ValidBackends, ", ")))
	}

	if !contains(ValidThemeModes, c.Theme.Mode) {
		violations = append(violations, fmt.Sprintf(
			"theme.mode: invalid value %q, expected one of: %s",
			c.Theme.Mode, strings.Join(ValidThemeModes, ", ")))
	}

	if accent := c.Theme.Accent; accent != "gtk" && accent != "none" && !isHexColor(accent) {
		violations = append(violations, fmt.Sprintf(
			"theme.accent: invalid value %q, expected 'gtk', 'none', or a hex color like '#3584e4'",
			accent))
	}

	if !contains(ValidOSDPositions, c.OSD.Position) {
		violations = append(violations, fmt.Sprintf(
			"osd.position: invalid value %q, expected one of: %s",
			c.OSD.Position, strings.Join(ValidOSDPositions, ", ")))
	}

	if c.Bar.Size == 0 {
		violations = append(violations, "bar.size: must be greater than 0")
	}
	if c.OSD.TimeoutMS == 0 {
		violations = append(violations, "osd.timeout_ms: must be greater than 0")
	}

	if c.Theme.BarOpacity < 0 || c.Theme.BarOpacity > 1 {
		violations = append(violations, fmt.Sprintf(
			"theme.bar_opacity: invalid value '%g', must be between 0.0 and 1.0",
			c.Theme.BarOpacity))
	}
	if c.Theme.WidgetOpacity < 0 || c.Theme.WidgetOpacity > 1 {
		violations = append(violations, fmt.Sprintf(
			"theme.widget_opacity: invalid value '%g', must be between 0.0 and 1.0",
			c.Theme.WidgetOpacity))
	}

	// The notch consumes the centre region.
	if c.Bar.NotchEnabled && len(c.Widgets.Center) > 0 {
		violations = append(violations,
			"widgets.center: cannot be used when notch_enabled=true; "+
				"use spacer widgets in left/right sections to place widgets near the notch")
	}

	if backend := c.BackendChoice(); backend != c.Workspace.Backend && !contains(ValidBackends, backend) {
		violations = append(violations, fmt.Sprintf(
			"advanced.compositor: invalid value %q, expected one of: %s",
			backend, strings.Join(ValidBackends, ", ")))
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// ValidationError aggregates every validation failure into one error.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(e.Violations, "\n  - ")
}

func isHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 3 && len(hex) != 6 {
		return false
	}
	for _, r := range hex {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
