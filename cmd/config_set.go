package cmd

import (
	"fmt"

	"github.com/brogergvhs/noveld/internal/config"

	"github.com/spf13/cobra"
)

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one key of the active config (e.g. `set concurrency 5`)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.SetValue(args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Printf("Updated %s in %s\n", args[0], path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
}
