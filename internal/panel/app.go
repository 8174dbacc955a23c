package panel

import (
	"github.com/rs/zerolog/log"

	"github.com/bnema/vibepanel/internal/compositor"
	"github.com/bnema/vibepanel/internal/config"
	"github.com/bnema/vibepanel/internal/services/battery"
	"github.com/bnema/vibepanel/internal/services/brightness"
	"github.com/bnema/vibepanel/internal/services/media"
	"github.com/bnema/vibepanel/internal/services/network"
	"github.com/bnema/vibepanel/internal/services/power"
	"github.com/bnema/vibepanel/internal/services/sysinfo"
	"github.com/bnema/vibepanel/internal/services/updates"
	"github.com/bnema/vibepanel/internal/services/window"
	"github.com/bnema/vibepanel/internal/services/workspace"
)

// App owns the service side of the panel: it starts the compositor
// manager and warms exactly the services the configured widgets need, so
// a bar without a battery widget never probes UPower.
type App struct {
	cfg     *config.Config
	closers []func()
}

// New initialises the compositor manager and the services referenced by
// cfg's widget placements. Call from the UI thread after logging is set
// up.
func New(cfg *config.Config) *App {
	a := &App{cfg: cfg}

	compositor.InitGlobal(cfg)
	a.closers = append(a.closers, func() { compositor.Global().Stop() })

	for name := range cfg.Widgets.AllReferencedWidgets() {
		if cfg.Widgets.IsDisabled(name) {
			continue
		}
		a.warmService(name)
	}
	return a
}

func (a *App) warmService(widget string) {
	switch widget {
	case "workspaces":
		workspace.Get()
	case "window_title":
		window.Get()
	case "battery":
		s := battery.Get()
		a.closers = append(a.closers, s.Close)
	case "media":
		s := media.Get()
		a.closers = append(a.closers, s.Close)
	case "cpu", "memory":
		s := sysinfo.Get()
		a.closers = append(a.closers, s.Close)
	case "updates":
		s := updates.Get()
		if opts, ok := a.cfg.Widgets.GetOptions("updates"); ok {
			if secs, ok := intOption(opts.Options, "check_interval"); ok {
				s.SetCheckInterval(secs)
			}
		}
		a.closers = append(a.closers, s.Close)
	case "quick_settings":
		// The quick settings pop-out reads several services lazily.
		b := brightness.Get()
		a.closers = append(a.closers, b.Close)
		p := power.Get()
		a.closers = append(a.closers, p.Close)
		n := network.Get()
		a.closers = append(a.closers, n.Close)
	case "clock", "spacer":
		// No backing service.
	default:
		log.Debug().Str("widget", widget).Msg("widget has no backing service")
	}
}

// intOption reads a numeric widget option. TOML integers arrive as int64,
// but hand-built option maps in tests may carry plain ints.
func intOption(options map[string]any, key string) (int64, bool) {
	switch v := options[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// Config the app was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Shutdown releases services in reverse construction order.
func (a *App) Shutdown() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	log.Debug().Msg("panel services stopped")
}
