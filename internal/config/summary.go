package config

import (
	"fmt"
	"strings"
)

// Summary renders a human-readable digest of the configuration, used by
// --check-config.
func (c *Config) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Bar:\n")
	fmt.Fprintf(&b, "  size: %dpx\n", c.Bar.Size)
	fmt.Fprintf(&b, "  notch: %v", c.Bar.NotchEnabled)
	if c.Bar.NotchEnabled {
		fmt.Fprintf(&b, " (width %dpx)", c.Bar.EffectiveNotchWidth())
	}
	b.WriteString("\n")
	if len(c.Bar.Outputs) > 0 {
		fmt.Fprintf(&b, "  outputs: %s\n", strings.Join(c.Bar.Outputs, ", "))
	} else {
		fmt.Fprintf(&b, "  outputs: all\n")
	}

	fmt.Fprintf(&b, "Widgets:\n")
	fmt.Fprintf(&b, "  left:   %s\n", placementNames(c.Widgets.Left))
	fmt.Fprintf(&b, "  center: %s\n", placementNames(c.Widgets.Center))
	fmt.Fprintf(&b, "  right:  %s\n", placementNames(c.Widgets.Right))

	fmt.Fprintf(&b, "Workspace backend: %s\n", c.BackendChoice())
	fmt.Fprintf(&b, "Theme: mode=%s accent=%s\n", c.Theme.Mode, c.Theme.Accent)
	fmt.Fprintf(&b, "OSD: enabled=%v position=%s timeout=%dms\n",
		c.OSD.Enabled, c.OSD.Position, c.OSD.TimeoutMS)

	return b.String()
}

func placementNames(placements []WidgetPlacement) string {
	if len(placements) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(placements))
	for _, p := range placements {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}
