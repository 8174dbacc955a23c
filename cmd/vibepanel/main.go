package main

import (
	"runtime"

	"github.com/bnema/vibepanel/internal/cli/cmd"
)

func init() {
	// The glib main loop must stay on the thread that started it.
	runtime.LockOSThread()
}

// Build information set via ldflags
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	cmd.Execute()
}
