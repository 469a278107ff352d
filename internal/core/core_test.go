package core

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LKosoj/sessionctl/internal/config"
	"github.com/LKosoj/sessionctl/internal/session"
	"github.com/LKosoj/sessionctl/internal/toolhelp"
)

func newTestCore(t *testing.T, tools map[string]config.ToolConfig) *Core {
	t.Helper()
	mgr, err := session.NewManager(filepath.Join(t.TempDir(), "sessions.json"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	th, err := toolhelp.Load(filepath.Join(t.TempDir(), "toolhelp.json"))
	if err != nil {
		t.Fatalf("toolhelp.Load: %v", err)
	}
	cfg := &config.Config{
		Tools: tools,
		Defaults: config.Defaults{
			Workdir:            t.TempDir(),
			HeadlessTimeoutSec: 5,
			IdleTimeoutSec:     5,
			Output: config.OutputDefaults{
				InlineLimit:  200,
				HeadChars:    50,
				TailChars:    50,
				ArtifactsDir: filepath.Join(t.TempDir(), "artifacts"),
			},
		},
		Queue: config.QueueConfig{MaxPerSession: 10},
	}
	return New(cfg, mgr, th)
}

func TestCore_DispatchHeadlessEcho(t *testing.T) {
	c := newTestCore(t, map[string]config.ToolConfig{
		"echo": {
			Name:        "echo",
			Mode:        config.ModeHeadless,
			CmdTemplate: []string{"/bin/sh", "-c", "echo {prompt}"},
		},
	})
	defer c.Shutdown()

	view, err := c.Create(context.Background(), "echo", t.TempDir())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := c.Submit(context.Background(), view.ID, "hello", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("expected output to contain %q, got %q", "hello", out)
	}

	info, err := c.Info(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Summary == "" {
		t.Fatalf("expected a summary to be recorded after a successful prompt")
	}
}

func TestCore_DispatchLongOutputProducesArtifact(t *testing.T) {
	c := newTestCore(t, map[string]config.ToolConfig{
		"big": {
			Name:        "big",
			Mode:        config.ModeHeadless,
			CmdTemplate: []string{"/bin/sh", "-c", "yes x | head -c 5000"},
		},
	})
	defer c.Shutdown()

	view, err := c.Create(context.Background(), "big", t.TempDir())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := c.Submit(context.Background(), view.ID, "go", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !strings.Contains(out, "full output:") {
		t.Fatalf("expected a preview pointing at an artifact file, got %q", out)
	}
}

func TestCore_DispatchUnknownSession(t *testing.T) {
	c := newTestCore(t, nil)
	defer c.Shutdown()

	if _, err := c.Submit(context.Background(), "does-not-exist", "hi", ""); err == nil {
		t.Fatal("expected an error for an unknown session id")
	}
}

func TestCore_CreateUnknownTool(t *testing.T) {
	c := newTestCore(t, nil)
	defer c.Shutdown()

	if _, err := c.Create(context.Background(), "nope", t.TempDir()); err == nil {
		t.Fatal("expected an error for an unconfigured tool")
	}
}

func TestCore_DispatchContextCancelled(t *testing.T) {
	c := newTestCore(t, map[string]config.ToolConfig{
		"slow": {
			Name:        "slow",
			Mode:        config.ModeHeadless,
			CmdTemplate: []string{"/bin/sh", "-c", "sleep 30"},
		},
	})
	defer c.Shutdown()

	view, err := c.Create(context.Background(), "slow", t.TempDir())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Submit(ctx, view.ID, "go", ""); err == nil {
		t.Fatal("expected the dispatch to be cancelled")
	}
}

func TestCore_HelpCachesAndRefreshes(t *testing.T) {
	c := newTestCore(t, map[string]config.ToolConfig{
		"echo": {
			Name:            "echo",
			Mode:            config.ModeHeadless,
			CmdTemplate:     []string{"/bin/sh", "-c", "echo {prompt}"},
			HelpCmdTemplate: []string{"/bin/echo", "usage: echo [text]"},
		},
	})
	defer c.Shutdown()

	text, err := c.Help(context.Background(), "echo", false)
	if err != nil {
		t.Fatalf("Help: %v", err)
	}
	if !strings.Contains(text, "usage: echo") {
		t.Fatalf("unexpected help text: %q", text)
	}

	cached, err := c.Help(context.Background(), "echo", false)
	if err != nil {
		t.Fatalf("Help (cached): %v", err)
	}
	if cached != text {
		t.Fatalf("expected cached help to match first fetch, got %q vs %q", cached, text)
	}
}

func TestCore_HelpUnconfiguredTool(t *testing.T) {
	c := newTestCore(t, map[string]config.ToolConfig{
		"nohelp": {Name: "nohelp", Mode: config.ModeHeadless, CmdTemplate: []string{"/bin/echo", "hi"}},
	})
	defer c.Shutdown()

	if _, err := c.Help(context.Background(), "nohelp", false); err == nil {
		t.Fatal("expected an error for a tool with no help_cmd configured")
	}
}
