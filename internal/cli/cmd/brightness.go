package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bnema/vibepanel/internal/services/brightness"
)

var brightnessCmd = &cobra.Command{
	Use:   "brightness",
	Short: "Read or set the backlight",
}

var brightnessGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current backlight percentage",
	RunE: func(_ *cobra.Command, _ []string) error {
		snap, err := brightness.Current()
		if err != nil {
			return err
		}
		fmt.Printf("%.0f%% (%s)\n", snap.Percent, snap.Device)
		return nil
	},
}

var brightnessSetCmd = &cobra.Command{
	Use:   "set <percent>",
	Short: "Set the backlight percentage via logind",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		percent, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("percent must be a number, got %q", args[0])
		}
		return brightness.Set(percent)
	},
}

// defaultBrightnessStep is used when inc/dec get no explicit delta.
const defaultBrightnessStep = 5.0

func parseBrightnessStep(args []string) (float64, error) {
	if len(args) == 0 {
		return defaultBrightnessStep, nil
	}
	step, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("delta must be a number, got %q", args[0])
	}
	return step, nil
}

var brightnessIncCmd = &cobra.Command{
	Use:   "inc [delta]",
	Short: "Raise the backlight by delta percentage points (default 5)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		step, err := parseBrightnessStep(args)
		if err != nil {
			return err
		}
		snap, err := brightness.Adjust(step)
		if err != nil {
			return err
		}
		fmt.Printf("%.0f%% (%s)\n", snap.Percent, snap.Device)
		return nil
	},
}

var brightnessDecCmd = &cobra.Command{
	Use:   "dec [delta]",
	Short: "Lower the backlight by delta percentage points (default 5)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		step, err := parseBrightnessStep(args)
		if err != nil {
			return err
		}
		snap, err := brightness.Adjust(-step)
		if err != nil {
			return err
		}
		fmt.Printf("%.0f%% (%s)\n", snap.Percent, snap.Device)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(brightnessCmd)
	brightnessCmd.AddCommand(brightnessGetCmd)
	brightnessCmd.AddCommand(brightnessSetCmd)
	brightnessCmd.AddCommand(brightnessIncCmd)
	brightnessCmd.AddCommand(brightnessDecCmd)
}
