package cmd

import (
	"fmt"

	"github.com/brogergvhs/noveld/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective settings; subcommands manage profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, source, err := config.LoadMerged(config.Options{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
		})
		if err != nil {
			return err
		}

		label, err := config.CurrentLabel()
		if err != nil {
			label = "(none)"
		}

		fmt.Printf("Profiles:       %s\n", config.ConfigsDir())
		fmt.Printf("Active profile: %s\n", label)
		fmt.Printf("Loaded from:    %s\n\n", source)
		cfg.Print()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
