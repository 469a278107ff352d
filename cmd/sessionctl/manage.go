package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setActiveCmd = &cobra.Command{
	Use:   "set-active <id>",
	Short: "Make a session the default target for RPC prompts without a session_id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().SetActive(args[0])
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Give a session a display name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Rename(args[0], args[1])
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Tear down a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Close(args[0])
	},
}

var sendRawCmd = &cobra.Command{
	Use:   "send-raw <id> <sequence>",
	Short: "Write a literal escape-interpreted keystroke sequence to an interactive session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().SendRaw(args[0], args[1])
	},
}

var submitImage string

var submitCmd = &cobra.Command{
	Use:   "submit <id> <prompt>",
	Short: "Enqueue a prompt for a session and wait for its output",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := client().Submit(args[0], args[1], submitImage)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitImage, "image", "", "path to an image to attach to the prompt")
}
