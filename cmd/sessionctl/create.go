package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var createJSON bool

var createCmd = &cobra.Command{
	Use:   "create <tool> <workdir>",
	Short: "Create a session for tool in workdir",
	Args:  cobra.ExactArgs(2),
	RunE:  runCreate,
}

func init() {
	createCmd.Flags().BoolVar(&createJSON, "json", false, "output as JSON")
}

func runCreate(cmd *cobra.Command, args []string) error {
	view, err := client().Create(args[0], args[1])
	if err != nil {
		return err
	}
	if createJSON {
		data, _ := json.MarshalIndent(view, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("%s\t%s\t%s\n", view.ID, view.Tool, view.Workdir)
	return nil
}
