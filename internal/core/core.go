// Package core wires the Session Manager, Scheduler, and Drivers into the
// two front doors the rest of the controller talks to: control.Handler
// (sessionctl's management calls) and rpc.Dispatch (the length-delimited
// prompt bridge). It owns the one long-lived piece of state neither
// internal/session nor internal/scheduler know about on their own: which
// dispatcher and, for interactive tools, which live subprocess belongs to
// which session.
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LKosoj/sessionctl/internal/config"
	"github.com/LKosoj/sessionctl/internal/control"
	"github.com/LKosoj/sessionctl/internal/driver"
	"github.com/LKosoj/sessionctl/internal/output"
	"github.com/LKosoj/sessionctl/internal/scheduler"
	"github.com/LKosoj/sessionctl/internal/session"
	"github.com/LKosoj/sessionctl/internal/sessionerr"
	"github.com/LKosoj/sessionctl/internal/toolhelp"
)

const (
	defaultReadyTimeout = 30 * time.Second
	defaultCols         = 200
	defaultRows         = 50
)

// Core implements control.Handler and supplies rpc.Dispatch, backed by a
// session.Manager for identity/persistence and one scheduler.Dispatcher
// plus (for interactive tools) one driver.InteractiveDriver per live
// session.
type Core struct {
	Config   *config.Config
	Sessions *session.Manager
	ToolHelp *toolhelp.Cache

	mu       sync.Mutex
	runtimes map[string]*runtime
}

type runtime struct {
	dispatcher  *scheduler.Dispatcher
	interactive *driver.InteractiveDriver
	flusher     *output.Flusher
	stop        context.CancelFunc
}

// New builds a Core ready to accept Handler/Dispatch calls. Sessions
// recovered from disk at startup do not get a runtime until first use:
// an interactive session's subprocess is gone once sessiond restarts, so
// its driver is spawned lazily on the next Submit.
func New(cfg *config.Config, mgr *session.Manager, th *toolhelp.Cache) *Core {
	return &Core{Config: cfg, Sessions: mgr, ToolHelp: th, runtimes: map[string]*runtime{}}
}

// Shutdown stops every session's dispatcher and, for interactive tools,
// terminates the live subprocess. Session state itself is left on disk
// for the next sessiond to recover (with queues cleared).
func (c *Core) Shutdown() {
	c.mu.Lock()
	runtimes := c.runtimes
	c.runtimes = map[string]*runtime{}
	c.mu.Unlock()

	for _, rt := range runtimes {
		rt.stop()
		if rt.interactive != nil {
			rt.interactive.Close() //nolint:errcheck
		}
	}
}

func (c *Core) toolConfig(tool string) (config.ToolConfig, error) {
	tc, ok := c.Config.Tools[tool]
	if !ok {
		return config.ToolConfig{}, sessionerr.New(sessionerr.Validation, "unknown tool %q", tool)
	}
	return tc, nil
}

func envFor(tc config.ToolConfig) []string {
	if len(tc.Env) == 0 {
		return nil
	}
	env := make([]string, 0, len(tc.Env))
	for k, v := range tc.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// runtimeFor returns the live runtime for sess, spawning one (and, for an
// interactive tool, the subprocess behind it) if this is the first call
// since either session creation or a sessiond restart.
func (c *Core) runtimeFor(ctx context.Context, sess *session.Session) (*runtime, error) {
	c.mu.Lock()
	rt, ok := c.runtimes[sess.ID]
	c.mu.Unlock()
	if ok {
		return rt, nil
	}

	tc, err := c.toolConfig(sess.Tool)
	if err != nil {
		return nil, err
	}

	rt = &runtime{}
	if sess.Mode == config.ModeInteractive {
		argv, err := c.interactiveArgv(tc, sess.ResumeToken)
		if err != nil {
			return nil, err
		}
		d, err := driver.Spawn(ctx, argv, sess.Workdir, envFor(tc), tc.PromptRegex, tc.ResumeRegex,
			tc.ActivityTokens, defaultCols, defaultRows, defaultReadyTimeout)
		if err != nil {
			return nil, err
		}
		rt.interactive = d

		od := c.Config.Defaults.Output
		flushDelay := time.Duration(od.FlushDelayMs) * time.Millisecond
		rt.flusher = output.NewFlusher(od.InlineLimit, flushDelay, func(text string) {
			output.AppendLive(od.ArtifactsDir, sess.ID, text) //nolint:errcheck
		})
		d.Output = rt.flusher.Append
	}
	rt.dispatcher = scheduler.NewDispatcher(&sessionRunner{core: c, sess: sess, tc: tc, rt: rt}, c.Config.Queue.MaxPerSession)

	runCtx, cancel := context.WithCancel(context.Background())
	rt.stop = cancel
	go rt.dispatcher.Run(runCtx)

	c.mu.Lock()
	c.runtimes[sess.ID] = rt
	c.mu.Unlock()

	return rt, nil
}

func (c *Core) interactiveArgv(tc config.ToolConfig, resume string) ([]string, error) {
	template := tc.InteractiveCmdTemplate
	if resume != "" && len(tc.ResumeCmdTemplate) > 0 {
		template = tc.ResumeCmdTemplate
	}
	if len(template) == 0 {
		return nil, sessionerr.New(sessionerr.Validation, "tool %q has no interactive_cmd", tc.Name)
	}
	args, _ := driver.BuildArgs(template, "", resume, "")
	return args, nil
}

// sessionRunner adapts one session's tool configuration and (for
// interactive tools) its live driver into the scheduler.Runner a
// Dispatcher drives.
type sessionRunner struct {
	core *Core
	sess *session.Session
	tc   config.ToolConfig
	rt   *runtime
}

func (r *sessionRunner) RunPrompt(ctx context.Context, text, imagePath string) (string, error) {
	if r.rt.interactive != nil {
		out, err := r.rt.interactive.Submit(ctx, text, idleTimeout(r.core.Config))
		if token := r.rt.interactive.ResumeToken(); token != "" {
			r.core.Sessions.SetResume(r.sess.ID, token) //nolint:errcheck
		}
		return out, err
	}

	template := r.tc.CmdTemplate
	if r.sess.ResumeToken != "" && len(r.tc.ResumeCmdTemplate) > 0 {
		template = r.tc.ResumeCmdTemplate
	}
	argv, usesStdin := driver.BuildArgs(template, text, r.sess.ResumeToken, imagePath)

	stdin := ""
	if usesStdin {
		stdin = text
	}
	hd := &driver.HeadlessDriver{Workdir: r.sess.Workdir, Env: envFor(r.tc)}
	result, err := hd.Run(ctx, argv, stdin)
	return result.Output, err
}

func (r *sessionRunner) Interrupt() error {
	if r.rt.interactive != nil {
		return r.rt.interactive.Interrupt()
	}
	// Headless runs observe ctx cancellation directly inside Run's own
	// select, so there is nothing further to interrupt here.
	return nil
}

// headlessRunner adapts driver.HeadlessDriver.Run's Result-returning
// signature to toolhelp.Runner's narrower string-returning one, so
// internal/toolhelp does not need to import internal/driver.
type headlessRunner struct {
	hd *driver.HeadlessDriver
}

func (r headlessRunner) Run(ctx context.Context, argv []string, stdin string) (string, error) {
	res, err := r.hd.Run(ctx, argv, stdin)
	return res.Output, err
}

func idleTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Defaults.IdleTimeoutSec) * time.Second
}

func headlessTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Defaults.HeadlessTimeoutSec) * time.Second
}

func timeoutFor(sess *session.Session, cfg *config.Config) time.Duration {
	if sess.Mode == config.ModeInteractive {
		return idleTimeout(cfg)
	}
	return headlessTimeout(cfg)
}

// --- control.Handler ---

func (c *Core) Create(ctx context.Context, tool, workdir string) (control.SessionView, error) {
	if _, err := c.toolConfig(tool); err != nil {
		return control.SessionView{}, err
	}
	tc := c.Config.Tools[tool]
	sess, err := c.Sessions.Create(tool, workdir, tc.Mode)
	if err != nil {
		return control.SessionView{}, err
	}
	return c.toView(sess), nil
}

func (c *Core) List(ctx context.Context) ([]control.SessionView, error) {
	sessions := c.Sessions.List()
	views := make([]control.SessionView, 0, len(sessions))
	active, _ := c.Sessions.Active()
	for _, s := range sessions {
		v := c.toView(s)
		v.Active = active != nil && active.ID == s.ID
		views = append(views, v)
	}
	return views, nil
}

func (c *Core) Info(ctx context.Context, sessionID string) (control.SessionView, error) {
	sess, ok := c.Sessions.Get(sessionID)
	if !ok {
		return control.SessionView{}, sessionerr.New(sessionerr.NotFound, "session %q not found", sessionID)
	}
	v := c.toView(sess)
	active, _ := c.Sessions.Active()
	v.Active = active != nil && active.ID == sess.ID
	return v, nil
}

func (c *Core) SetActive(ctx context.Context, sessionID string) error {
	return c.Sessions.SetActive(sessionID)
}

func (c *Core) Rename(ctx context.Context, sessionID, name string) error {
	return c.Sessions.Rename(sessionID, name)
}

func (c *Core) Close(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	rt, ok := c.runtimes[sessionID]
	delete(c.runtimes, sessionID)
	c.mu.Unlock()
	if ok {
		rt.stop()
		if rt.flusher != nil {
			rt.flusher.Flush()
		}
		if rt.interactive != nil {
			rt.interactive.Close() //nolint:errcheck
		}
	}
	return c.Sessions.Close(sessionID)
}

func (c *Core) Submit(ctx context.Context, sessionID, text, imagePath string) (string, error) {
	return c.dispatch(ctx, sessionID, text, imagePath)
}

func (c *Core) SendRaw(ctx context.Context, sessionID, raw string) error {
	sess, ok := c.Sessions.Get(sessionID)
	if !ok {
		return sessionerr.New(sessionerr.NotFound, "session %q not found", sessionID)
	}
	rt, err := c.runtimeFor(ctx, sess)
	if err != nil {
		return err
	}
	if rt.interactive == nil {
		return sessionerr.New(sessionerr.Validation, "session %q is headless, raw input is not supported", sessionID)
	}
	return rt.interactive.SendRaw(raw)
}

// Help returns tool's cached help text, refreshing it first when refresh
// is set or nothing has been cached for tool yet.
func (c *Core) Help(ctx context.Context, tool string, refresh bool) (string, error) {
	tc, err := c.toolConfig(tool)
	if err != nil {
		return "", err
	}
	if !refresh {
		if e, ok := c.ToolHelp.Get(tool); ok {
			return e.Content, nil
		}
	}
	argv, _ := driver.BuildArgs(tc.HelpCmdTemplate, "", "", "")
	if len(argv) == 0 {
		return "", sessionerr.New(sessionerr.Validation, "tool %q has no help_cmd configured", tool)
	}
	hd := &driver.HeadlessDriver{Workdir: c.Config.Defaults.Workdir, Env: envFor(tc)}
	return toolhelp.Refresh(ctx, c.ToolHelp, headlessRunner{hd}, tool, argv)
}

// Dispatch adapts Core to rpc.Dispatch: a prompt targets session_id when
// it names an extant session, otherwise falls back to whichever session
// is currently active, otherwise fails.
func (c *Core) Dispatch(ctx context.Context, prompt, sessionID string) (string, error) {
	if sessionID != "" {
		if _, ok := c.Sessions.Get(sessionID); ok {
			return c.dispatch(ctx, sessionID, prompt, "")
		}
	}
	active, ok := c.Sessions.Active()
	if !ok {
		return "", sessionerr.New(sessionerr.NotFound, "no session to target")
	}
	return c.dispatch(ctx, active.ID, prompt, "")
}

func (c *Core) dispatch(ctx context.Context, sessionID, text, imagePath string) (string, error) {
	sess, ok := c.Sessions.Get(sessionID)
	if !ok {
		return "", sessionerr.New(sessionerr.NotFound, "session %q not found", sessionID)
	}

	rt, err := c.runtimeFor(ctx, sess)
	if err != nil {
		return "", err
	}

	traceID := fmt.Sprintf("%s-%d", sessionID, time.Now().UnixNano())
	deadline := timeoutFor(sess, c.Config)
	prompt := session.PendingPrompt{TraceID: traceID, Text: text, ImagePath: imagePath, QueuedAt: time.Now(), Deadline: deadline}
	if err := c.Sessions.Enqueue(sessionID, prompt); err != nil {
		return "", err
	}

	resultCh := make(chan scheduler.Result, 1)
	job := scheduler.Job{Text: text, ImagePath: imagePath, Timeout: prompt.Deadline, Result: resultCh}
	if err := rt.dispatcher.Submit(job); err != nil {
		c.Sessions.Dequeue(sessionID) //nolint:errcheck
		return "", err
	}

	started := time.Now()
	c.Sessions.SetBusy(sessionID, true)
	defer c.Sessions.SetBusy(sessionID, false)

	select {
	case res := <-resultCh:
		c.Sessions.Dequeue(sessionID) //nolint:errcheck
		c.Sessions.RecordCompletion(sessionID, len(res.Output), time.Since(started).Milliseconds())
		if rt.flusher != nil {
			rt.flusher.Flush()
		}
		if res.Err != nil {
			return "", res.Err
		}

		// The summary hook must land before the artifact even though it
		// runs off the same raw text: a slow or failing summariser must
		// never hold back the artifact a caller is waiting on.
		summary, sumErr := summarize(res.Output)
		if sumErr != nil {
			summary = ""
		}
		c.Sessions.SetSummary(sessionID, summary) //nolint:errcheck

		delivered, err := c.deliver(sess, res.Output)
		if err != nil {
			return "", err
		}
		return delivered, nil
	case <-ctx.Done():
		return "", sessionerr.Wrap(sessionerr.Cancelled, ctx.Err())
	}
}

// deliver applies the output pipeline's size decision to one prompt's raw
// output: short output ships as-is, long output ships as a head/tail
// preview with a pointer to an HTML artifact holding the full
// ANSI-rendered transcript.
func (c *Core) deliver(sess *session.Session, raw string) (string, error) {
	od := c.Config.Defaults.Output
	decision := output.Decide(raw, defaultCols, od.InlineLimit, od.HeadChars, od.TailChars)
	if decision.Inline {
		return decision.Text, nil
	}

	filename := output.ArtifactFilename(sess.ID, int(time.Now().UnixNano()%1_000_000))
	path, err := output.WriteArtifact(od.ArtifactsDir, filename, decision.ArtifactHTML)
	if err != nil {
		return "", sessionerr.Wrap(sessionerr.Persistence, err)
	}
	return decision.Text + "\n[full output: " + path + "]", nil
}

// summarize produces the short summary the pipeline must emit ahead of
// any HTML artifact. It cannot itself fail today, but returns an error to
// keep that contract visible at the call site: a future external
// summariser plugged in here must not block artifact delivery on failure.
func summarize(raw string) (string, error) {
	const maxSummary = 200
	runes := []rune(raw)
	if len(runes) <= maxSummary {
		return raw, nil
	}
	return string(runes[:maxSummary]), nil
}

func (c *Core) toView(s *session.Session) control.SessionView {
	v := control.SessionView{
		ID:              s.ID,
		Tool:            s.Tool,
		Workdir:         s.Workdir,
		Name:            s.Name,
		Mode:            s.Mode,
		ResumeToken:     s.ResumeToken,
		Summary:         s.Summary,
		QueueLen:        len(s.Queue),
		Busy:            s.Busy,
		LastOutputBytes: s.LastOutputBytes,
		ElapsedMsLast:   s.ElapsedMsLast,
	}
	c.mu.Lock()
	rt, ok := c.runtimes[s.ID]
	c.mu.Unlock()
	if ok && rt.interactive != nil {
		v.DriverState = string(rt.interactive.State())
	}
	return v
}
