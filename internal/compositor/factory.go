package compositor

import (
	"os"

	"github.com/rs/zerolog/log"
)

// NewBackend builds the backend for choice ("hyprland", "niri", "mango" or
// "auto"). Unknown or undetectable compositors get the stub backend so the
// rest of the panel keeps working.
func NewBackend(choice string) Backend {
	switch choice {
	case "hyprland":
		return NewHyprlandBackend()
	case "niri":
		return NewNiriBackend()
	case "mango":
		return NewMangoBackend()
	case "auto", "":
		return detectBackend()
	default:
		log.Warn().Str("backend", choice).Msg("unknown compositor backend, using stub")
		return NewStubBackend()
	}
}

func detectBackend() Backend {
	if os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		log.Info().Msg("detected Hyprland session")
		return NewHyprlandBackend()
	}
	if os.Getenv("NIRI_SOCKET") != "" {
		log.Info().Msg("detected Niri session")
		return NewNiriBackend()
	}
	if mangoSocketPath() != "" {
		log.Info().Msg("detected MangoWC session")
		return NewMangoBackend()
	}
	log.Warn().Msg("no supported compositor detected, using stub backend")
	return NewStubBackend()
}
