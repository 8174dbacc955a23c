package battery

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultPowerSupplyDir = "/sys/class/power_supply"

// hasBattery reports whether any power supply under dir is a battery.
// Checked eagerly at construction so machines without one never touch
// D-Bus at all.
func hasBattery(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dir, entry.Name(), "type"))
		if err != nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(string(data)), "battery") {
			return true
		}
	}
	return false
}
