package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show detailed session information",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output as JSON")
}

func runInfo(cmd *cobra.Command, args []string) error {
	view, err := client().Info(args[0])
	if err != nil {
		return err
	}

	if infoJSON {
		data, _ := json.MarshalIndent(view, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("ID:      %s\n", view.ID)
	fmt.Printf("Tool:    %s\n", view.Tool)
	fmt.Printf("Mode:    %s\n", view.Mode)
	fmt.Printf("Workdir: %s\n", view.Workdir)
	if view.Name != "" {
		fmt.Printf("Name:    %s\n", view.Name)
	}
	if view.ResumeToken != "" {
		fmt.Printf("Resume:  %s\n", view.ResumeToken)
	}
	if view.Summary != "" {
		fmt.Printf("Summary: %s\n", view.Summary)
	}
	fmt.Printf("Queue:   %d\n", view.QueueLen)
	fmt.Printf("Active:  %v\n", view.Active)
	return nil
}
