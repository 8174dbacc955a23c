package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/vibepanel/internal/services/media"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Control the active MPRIS player",
}

var mediaPlayPauseCmd = &cobra.Command{
	Use:   "play-pause",
	Short: "Toggle playback",
	RunE: func(_ *cobra.Command, _ []string) error {
		return media.Command("PlayPause")
	},
}

var mediaNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to the next track",
	RunE: func(_ *cobra.Command, _ []string) error {
		return media.Command("Next")
	},
}

var mediaPreviousCmd = &cobra.Command{
	Use:   "previous",
	Short: "Go back one track",
	RunE: func(_ *cobra.Command, _ []string) error {
		return media.Command("Previous")
	},
}

var mediaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active player and track",
	RunE: func(_ *cobra.Command, _ []string) error {
		snap, err := media.Status()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", snap.Player, snap.Status)
		if snap.Title != "" {
			fmt.Printf("%s - %s\n", snap.Artist, snap.Title)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mediaCmd)
	mediaCmd.AddCommand(mediaPlayPauseCmd)
	mediaCmd.AddCommand(mediaNextCmd)
	mediaCmd.AddCommand(mediaPreviousCmd)
	mediaCmd.AddCommand(mediaStatusCmd)
}
