package driver

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/LKosoj/sessionctl/internal/ansi"
	"github.com/LKosoj/sessionctl/internal/escape"
	"github.com/LKosoj/sessionctl/internal/sessionerr"
	"github.com/LKosoj/sessionctl/internal/streammatch"
)

// InteractiveDriver wraps a single long-lived interactive CLI subprocess
// over a pty, driving it through the lifecycle:
// Spawning -> Ready -> Writing -> AwaitingPrompt -> (Ready | Closed | Failed).
// Grounded on the daemon's spawn/capture loop (internal/daemon
// server.go's handleCreate/captureOutput), adapted from a persistent
// multi-reader session store into a single-consumer driver whose output
// is routed by the Session Manager instead of served directly.
type InteractiveDriver struct {
	cmd       *exec.Cmd
	ptmx      *os.File
	matcher   *streammatch.Matcher
	responder *ansi.TerminalResponder
	clearDet  *ansi.ScreenClearDetector

	mu      sync.Mutex
	state   State
	lastErr error

	cols, rows int

	// Output is invoked with each chunk read from the pty, in order, once
	// it has passed the terminal-query responder and the screen-clear
	// detector. internal/core supplies this to hand the bytes to the
	// Output Pipeline's flusher; the stream matcher is fed by the read
	// loop itself, not through Output.
	Output func([]byte)

	// OnScreenClear fires whenever the subprocess clears the screen or
	// switches to the alternate buffer, so a live viewer can drop
	// whatever it had buffered for display instead of showing a stale
	// pre-clear screen underneath the new one.
	OnScreenClear func()

	readDone chan struct{}
	readErr  error
}

// Spawn starts the subprocess with argv under workdir/env and begins the
// pty read loop. It blocks until either the prompt regex reports Ready or
// readyTimeout elapses, mirroring the Spawning -> Ready transition.
func Spawn(ctx context.Context, argv []string, workdir string, env []string, promptRegex, resumeRegex string, activityTokens []string, cols, rows int, readyTimeout time.Duration) (*InteractiveDriver, error) {
	if len(argv) == 0 {
		return nil, sessionerr.New(sessionerr.Validation, "empty command")
	}
	if cols <= 0 {
		cols = 200
	}
	if rows <= 0 {
		rows = 50
	}

	matcher, err := streammatch.New(promptRegex, resumeRegex, activityTokens, cols)
	if err != nil {
		return nil, sessionerr.Wrap(sessionerr.Validation, err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workdir
	cmd.Env = env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return nil, sessionerr.Wrap(sessionerr.SpawnError, err)
	}

	d := &InteractiveDriver{
		cmd:       cmd,
		ptmx:      ptmx,
		matcher:   matcher,
		responder: ansi.NewTerminalResponder(ptmx, cols, rows),
		clearDet:  ansi.NewScreenClearDetector(),
		state:     StateSpawning,
		cols:      cols,
		rows:      rows,
		readDone:  make(chan struct{}),
	}

	go d.readLoop()

	if err := d.awaitReady(ctx, readyTimeout); err != nil {
		d.fail(err)
		return d, err
	}
	d.setState(StateReady)
	return d, nil
}

func (d *InteractiveDriver) readLoop() {
	defer close(d.readDone)
	buf := make([]byte, 32*1024)
	for {
		n, err := d.ptmx.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			chunk = d.responder.Process(chunk)

			result := d.clearDet.Process(chunk)
			if result.ClearFound && d.OnScreenClear != nil {
				d.OnScreenClear()
			}
			chunk = result.DataAfter

			d.matcher.Observe(chunk)
			if d.Output != nil && len(chunk) > 0 {
				d.Output(chunk)
			}
		}
		if err != nil {
			d.readErr = err
			return
		}
	}
}

// awaitReady polls the matcher until Ready or ctx/timeout expires. A short
// poll interval is acceptable here: readiness detection does not need to
// be byte-exact, only prompt-line exact.
func (d *InteractiveDriver) awaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-deadline:
			return sessionerr.New(sessionerr.Timeout, "tool did not become ready within %s", timeout)
		case <-ctx.Done():
			return sessionerr.Wrap(sessionerr.Cancelled, ctx.Err())
		case <-d.readDone:
			return sessionerr.New(sessionerr.SpawnError, "subprocess exited before becoming ready")
		}
		if d.pollReady() {
			return nil
		}
	}
}

func (d *InteractiveDriver) pollReady() bool {
	// readLoop appends to the matcher concurrently; Observe with an empty
	// chunk just re-reads its already-latched Ready flag under the
	// matcher's own lock without mutating the buffer.
	return d.matcher.Observe(nil).Ready
}

// ResumeToken returns the resume/session/thread id the matcher has
// latched from the subprocess's output so far, or "" if the tool hasn't
// printed one (or is configured without a resume regex).
func (d *InteractiveDriver) ResumeToken() string {
	return d.matcher.Observe(nil).ResumeToken
}

// Submit writes prompt to the subprocess's stdin and blocks until the
// prompt regex reports Ready again (AwaitingPrompt -> Ready) or ctx is
// cancelled, returning everything observed since the write.
func (d *InteractiveDriver) Submit(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if err := d.transition(StateWriting); err != nil {
		return "", err
	}
	d.matcher.Reset()

	if _, err := d.ptmx.WriteString(prompt + "\n"); err != nil {
		d.fail(err)
		return "", sessionerr.Wrap(sessionerr.SessionDown, err)
	}

	if err := d.transition(StateAwaitingPrompt); err != nil {
		return "", err
	}

	if err := d.awaitReady(ctx, timeout); err != nil {
		d.fail(err)
		return "", err
	}

	out := d.matcher.CleanView()
	if err := d.transition(StateReady); err != nil {
		return out, err
	}
	return out, nil
}

// SendRaw interprets escape sequences in raw (per internal/escape) and
// writes the result directly to the subprocess's stdin, bypassing the
// prompt/Ready protocol entirely — used for steering a TUI tool with
// literal keystrokes (Ctrl+C, arrow keys) rather than a line of text.
func (d *InteractiveDriver) SendRaw(raw string) error {
	interpreted, err := escape.Interpret(raw)
	if err != nil {
		return sessionerr.Wrap(sessionerr.Validation, err)
	}
	_, err = d.ptmx.WriteString(interpreted)
	if err != nil {
		return sessionerr.Wrap(sessionerr.SessionDown, err)
	}
	return nil
}

// Resize adjusts the pty window size, forwarded to the terminal responder
// so subsequent DSR cursor-position queries answer with the new bounds.
func (d *InteractiveDriver) Resize(cols, rows int) error {
	d.mu.Lock()
	d.cols, d.rows = cols, rows
	d.mu.Unlock()
	d.responder.SetSize(cols, rows)
	return pty.Setsize(d.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// Interrupt sends SIGINT to the subprocess's process group, used when a
// scheduler-level prompt timeout or a user-issued cancel fires while the
// driver is in Writing or AwaitingPrompt.
func (d *InteractiveDriver) Interrupt() error {
	if d.cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-d.cmd.Process.Pid, syscall.SIGINT)
}

// Close terminates the subprocess (SIGTERM, escalating to SIGKILL) and
// releases the pty, transitioning to Closed from any non-terminal state.
func (d *InteractiveDriver) Close() error {
	d.mu.Lock()
	prev := d.state
	d.state = StateClosed
	d.mu.Unlock()
	if prev == StateClosed {
		return nil
	}

	if d.cmd.Process != nil {
		syscall.Kill(-d.cmd.Process.Pid, syscall.SIGTERM) //nolint:errcheck
		select {
		case <-d.readDone:
		case <-time.After(3 * time.Second):
			syscall.Kill(-d.cmd.Process.Pid, syscall.SIGKILL) //nolint:errcheck
			<-d.readDone
		}
	}
	return d.ptmx.Close()
}

// State reports the driver's current lifecycle node.
func (d *InteractiveDriver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *InteractiveDriver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *InteractiveDriver) transition(to State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !canTransition(d.state, to) {
		return sessionerr.New(sessionerr.SessionDown, "invalid transition %s -> %s", d.state, to)
	}
	d.state = to
	return nil
}

func (d *InteractiveDriver) fail(err error) {
	d.mu.Lock()
	if d.state != StateClosed {
		d.state = StateFailed
		d.lastErr = err
	}
	d.mu.Unlock()
}

// LastError returns the error that drove the driver into the Failed
// state, if any.
func (d *InteractiveDriver) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}
