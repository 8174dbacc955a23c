package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/vibepanel/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print a summary",
	Long: `Load the configuration (honouring --config), report every validation
error at once, print non-fatal warnings and a summary of the effective
settings. Exits non-zero when the configuration is invalid.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runCheckConfig()
	},
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print the embedded default configuration",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Print(config.DefaultTOML)
	},
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the configuration JSON schema",
	RunE: func(_ *cobra.Command, _ []string) error {
		data, err := config.JSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Print the config search chain in priority order",
	Run: func(_ *cobra.Command, _ []string) {
		for _, path := range config.SearchPaths() {
			fmt.Println(path)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configExampleCmd)
	configCmd.AddCommand(configSchemaCmd)
	configCmd.AddCommand(configPathsCmd)
}
