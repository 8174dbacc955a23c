// Package cmd provides the Cobra CLI commands for vibepanel.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jwijenbergh/puregotk/v4/glib"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bnema/vibepanel/internal/config"
	"github.com/bnema/vibepanel/internal/logging"
	"github.com/bnema/vibepanel/internal/panel"
)

var (
	flagConfig             string
	flagCheckConfig        bool
	flagPrintExampleConfig bool
	flagVerbosity          int

	rootCmd = &cobra.Command{
		Use:   "vibepanel",
		Short: "A status bar substrate for Wayland compositors",
		Long: `Vibepanel is the service core of a Wayland status bar: it tracks
workspaces and windows on Hyprland, Niri and MangoWC, watches batteries,
media players, brightness and pending updates, and feeds all of it to bar
widgets through snapshot subscriptions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runPanel,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagConfig, "config", "c", "", "path to config.toml (skips the search chain)")
	flags.CountVarP(&flagVerbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug, -vvv trace)")

	rootCmd.Flags().BoolVar(&flagCheckConfig, "check-config", false, "validate the configuration and exit")
	rootCmd.Flags().BoolVar(&flagPrintExampleConfig, "print-example-config", false, "print the embedded default configuration and exit")
}

// SetVersionInfo wires the build metadata main sets via ldflags.
func SetVersionInfo(version, commit, date string) {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogging() {
	if flagVerbosity == 0 {
		log.Logger = logging.NewFromEnv()
		return
	}
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LevelForVerbosity(flagVerbosity)
	log.Logger = logging.New(cfg)
}

func runPanel(_ *cobra.Command, _ []string) error {
	if flagPrintExampleConfig {
		fmt.Print(config.DefaultTOML)
		return nil
	}
	if flagCheckConfig {
		return runCheckConfig()
	}

	setupLogging()

	result, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	cfg := result.Config
	if result.UsedDefaults {
		log.Info().Msg("no config file found, using built-in defaults")
	} else {
		log.Info().Str("path", result.Source).Msg("config loaded")
	}
	for _, warning := range cfg.Warnings() {
		log.Warn().Msg(warning)
	}

	app := panel.New(cfg)
	defer app.Shutdown()

	loop := glib.NewMainLoop(nil, false)

	ctx, cancel := context.WithCancel(logging.WithContext(context.Background(), log.Logger))
	defer cancel()
	watcher, err := config.NewWatcher(logging.WithComponent(ctx, "config-watcher"), result.Source, nil)
	if err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable")
	} else {
		defer watcher.Close()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		loop.Quit()
	}()

	log.Info().Str("backend", cfg.BackendChoice()).Msg("panel running")
	loop.Run()
	return nil
}

func runCheckConfig() error {
	result, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	cfg := result.Config
	if result.UsedDefaults {
		fmt.Println("No config file found; built-in defaults are valid.")
	} else {
		fmt.Printf("Config OK: %s\n", result.Source)
	}
	for _, warning := range cfg.Warnings() {
		fmt.Printf("warning: %s\n", warning)
	}
	fmt.Print(cfg.Summary())
	return nil
}
