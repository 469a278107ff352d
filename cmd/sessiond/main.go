// Command sessiond is the controller's long-running process: it loads a
// tool configuration document, recovers persisted sessions, and serves
// the RPC Bridge and the control channel until told to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LKosoj/sessionctl/internal/config"
	"github.com/LKosoj/sessionctl/internal/control"
	"github.com/LKosoj/sessionctl/internal/core"
	"github.com/LKosoj/sessionctl/internal/rpc"
	"github.com/LKosoj/sessionctl/internal/session"
	"github.com/LKosoj/sessionctl/internal/toolhelp"
)

var configPath string
var socketPath string

var rootCmd = &cobra.Command{
	Use:   "sessiond",
	Short: "Multi-tenant controller for interactive and headless CLI tool sessions",
	RunE:  runDaemon,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "sessiond.yaml", "path to the tool configuration document")
	rootCmd.Flags().StringVar(&socketPath, "socket", "/tmp/sessiond.sock", "path to the control-channel Unix socket")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	statePath := cfg.Defaults.StatePath
	if statePath == "" {
		statePath = "sessions.json"
	}
	mgr, err := session.NewManager(statePath)
	if err != nil {
		return fmt.Errorf("load session state: %w", err)
	}

	toolhelpPath := cfg.Defaults.ToolhelpPath
	if toolhelpPath == "" {
		toolhelpPath = "toolhelp.json"
	}
	th, err := toolhelp.Load(toolhelpPath)
	if err != nil {
		return fmt.Errorf("load tool-help cache: %w", err)
	}

	c := core.New(cfg, mgr, th)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrlServer := &control.Server{SocketPath: socketPath, Handler: c}
	go func() {
		if err := ctrlServer.ListenAndServe(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "control channel stopped: %v\n", err)
		}
	}()

	var bridge *rpc.Bridge
	if cfg.RPC.Enabled {
		bridge = &rpc.Bridge{
			Addr:     fmt.Sprintf("%s:%d", cfg.RPC.Host, cfg.RPC.Port),
			Token:    cfg.RPC.Token,
			Dispatch: c.Dispatch,
		}
		go func() {
			if err := bridge.ListenAndServe(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "rpc bridge stopped: %v\n", err)
			}
		}()
		fmt.Printf("rpc bridge listening on %s\n", bridge.Addr)
	}

	fmt.Printf("sessiond ready, control socket %s\n", socketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("shutting down...")
	cancel()
	if bridge != nil {
		bridge.Close() //nolint:errcheck
	}
	ctrlServer.Close() //nolint:errcheck
	c.Shutdown()
	return nil
}
