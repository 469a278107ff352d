// Command sessionctl is the thin CLI front-end that talks to a running
// sessiond over its control channel: a cobra command tree, each
// subcommand a connect-per-request control-channel client call.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/LKosoj/sessionctl/internal/control"
)

var socketPath string

var rootCmd = &cobra.Command{
	Use:   "sessionctl",
	Short: "Manage sessiond-controlled CLI tool sessions",
	Long: `sessionctl drives a running sessiond over its Unix-domain control channel.

Quick start:
  sessionctl create codex ~/proj      # Start a session for a tool in a workdir
  sessionctl list                     # List all sessions
  sessionctl submit <id> "hello"      # Send a prompt and wait for output
  sessionctl info <id>                # Show session detail
  sessionctl close <id>               # Tear a session down`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "/tmp/sessiond.sock", "path to sessiond's control-channel socket")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(setActiveCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(sendRawCmd)
	rootCmd.AddCommand(toolHelpCmd)
}

func client() *control.Client {
	return &control.Client{SocketPath: socketPath}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
