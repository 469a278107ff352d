package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	views, err := client().List()
	if err != nil {
		return err
	}

	if listJSON {
		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(views) == 0 {
		fmt.Println("No sessions")
		return nil
	}
	for _, v := range views {
		active := " "
		if v.Active {
			active = "*"
		}
		fmt.Printf("%s %s\t%s\t%s\t%s\tqueue=%d\n", active, v.ID, v.Tool, v.Mode, v.Workdir, v.QueueLen)
	}
	return nil
}
