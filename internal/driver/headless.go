package driver

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"

	"github.com/LKosoj/sessionctl/internal/sessionerr"
)

// Result is what a completed headless run produced.
type Result struct {
	Output   string
	ExitCode int
}

// HeadlessDriver runs a tool as a one-shot subprocess per prompt: spawn,
// stream stdout/stderr into a buffer, wait for exit. Grounded on the
// daemon's spawn/capture/stop flow (internal/daemon/server.go's
// handleCreate/captureOutput/handleStop), adapted from "keep the process
// alive for later reads" to "run to completion and return the result".
type HeadlessDriver struct {
	Workdir string
	Env     []string
}

// Run executes argv (already expanded, e.g. by BuildArgs), escalating
// SIGINT -> SIGTERM -> SIGKILL if ctx is cancelled before the process
// exits on its own, matching handleStop's escalation.
func (d *HeadlessDriver) Run(ctx context.Context, argv []string, stdin string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, sessionerr.New(sessionerr.Validation, "empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = d.Workdir
	cmd.Env = d.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if stdin != "" {
		cmd.Stdin = bytes.NewReader([]byte(stdin))
	}

	if err := cmd.Start(); err != nil {
		return Result{}, sessionerr.Wrap(sessionerr.SpawnError, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return resultFromWait(out.String(), err)
	case <-ctx.Done():
		escalateStop(cmd, done)
		return Result{Output: out.String()}, sessionerr.Wrap(sessionerr.Cancelled, ctx.Err())
	}
}

func resultFromWait(output string, err error) (Result, error) {
	if err == nil {
		return Result{Output: output, ExitCode: 0}, nil
	}
	var exitErr *exec.ExitError
	if ee, ok := err.(*exec.ExitError); ok {
		exitErr = ee
		return Result{Output: output, ExitCode: exitErr.ExitCode()}, nil
	}
	return Result{Output: output}, sessionerr.Wrap(sessionerr.SpawnError, err)
}

// escalateStop sends SIGINT, then SIGTERM, then SIGKILL to the process
// group, waiting briefly between each, matching handleStop's escalation.
func escalateStop(cmd *exec.Cmd, done <-chan error) {
	pgid := cmd.Process.Pid
	signalGroup := func(sig syscall.Signal) {
		syscall.Kill(-pgid, sig) //nolint:errcheck
	}

	signalGroup(syscall.SIGINT)
	if waitBriefly(done, 3*time.Second) {
		return
	}
	signalGroup(syscall.SIGTERM)
	if waitBriefly(done, 2*time.Second) {
		return
	}
	signalGroup(syscall.SIGKILL)
	<-done
}

func waitBriefly(done <-chan error, d time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
