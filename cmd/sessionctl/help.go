package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var helpRefresh bool

var toolHelpCmd = &cobra.Command{
	Use:   "tool-help <tool>",
	Short: "Show a tool's cached help text, re-running its help command with --refresh",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := client().Help(args[0], helpRefresh)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

func init() {
	toolHelpCmd.Flags().BoolVar(&helpRefresh, "refresh", false, "re-run the tool's help command instead of using the cached copy")
}
