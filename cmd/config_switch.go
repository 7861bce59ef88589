package cmd

import (
	"fmt"

	"github.com/brogergvhs/noveld/internal/config"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var configSwitchCmd = &cobra.Command{
	Use:   "switch [label]",
	Short: "Switch to a different configuration profile, creating it if needed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := config.ListConfigs()
		if err != nil {
			return err
		}

		label := ""
		switch {
		case len(args) == 1:
			label = args[0]
			if !hasLabel(list, label) {
				path, err := config.CreateConfig(label)
				if err != nil {
					return err
				}
				fmt.Println("Created:", path)
			}
		case len(list) == 0:
			return fmt.Errorf("no configs available, run `noveld config init` first")
		default:
			if label, err = pickConfig(list); err != nil {
				return err
			}
		}

		if err := config.SwitchConfig(label); err != nil {
			return err
		}

		fmt.Println("Switched to:", label)
		return nil
	},
}

func pickConfig(list []config.ConfigInfo) (string, error) {
	cursor := 0
	items := make([]string, len(list))
	for i, c := range list {
		items[i] = c.Label
		if c.Active {
			items[i] += "  (active)"
			cursor = i
		}
	}

	sel := promptui.Select{
		Label:     "Select config",
		Items:     items,
		CursorPos: cursor,
	}

	idx, _, err := sel.Run()
	if err != nil {
		return "", fmt.Errorf("selection cancelled")
	}
	return list[idx].Label, nil
}

func hasLabel(list []config.ConfigInfo, label string) bool {
	for _, c := range list {
		if c.Label == label {
			return true
		}
	}
	return false
}

func init() {
	configCmd.AddCommand(configSwitchCmd)
}
