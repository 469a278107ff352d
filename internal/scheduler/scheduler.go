// Package scheduler implements the per-session dispatcher: a FIFO
// queue with a single in-flight prompt per session, cross-session
// parallelism (one dispatcher goroutine each), timeout-driven interrupt
// escalation, and QueueFull backpressure. Grounded on the
// one-goroutine-per-connection/one-goroutine-per-session shape in its
// daemon accept loop, generalized from "one reader goroutine" into "one
// dispatcher goroutine owning a channel-backed FIFO".
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LKosoj/sessionctl/internal/sessionerr"
)

// Runner executes one prompt against a session's subprocess. Both the
// headless and interactive drivers satisfy it: a headless runner spawns
// fresh per call, an interactive runner writes to and reads from an
// already-running subprocess.
type Runner interface {
	RunPrompt(ctx context.Context, text, imagePath string) (output string, err error)
	Interrupt() error
}

// Job is one unit of dispatch work submitted to a session's Dispatcher.
// Timeout is the prompt's own deadline, carried over from
// session.PendingPrompt.Deadline rather than recomputed here — a deadline
// of exactly 0 is a legitimate value and fails the job without ever
// calling the runner.
type Job struct {
	Text      string
	ImagePath string
	Timeout   time.Duration
	Result    chan<- Result
}

// Result is delivered on Job.Result exactly once.
type Result struct {
	Output string
	Err    error
}

// Dispatcher serializes prompts for exactly one session: at most one Job
// is ever in flight, later ones wait in a bounded FIFO queue.
type Dispatcher struct {
	runner   Runner
	queue    chan Job
	maxQueue int

	mu      sync.Mutex
	pending int
	cancel  context.CancelFunc
}

// NewDispatcher builds a Dispatcher bound to runner, accepting at most
// maxQueue queued jobs beyond the one currently running before returning
// QueueFull.
func NewDispatcher(runner Runner, maxQueue int) *Dispatcher {
	if maxQueue <= 0 {
		maxQueue = 50
	}
	return &Dispatcher{
		runner:   runner,
		queue:    make(chan Job, maxQueue),
		maxQueue: maxQueue,
	}
}

// Submit enqueues a job for dispatch, returning QueueFull immediately if
// the session's backlog is already at capacity rather than blocking the
// caller.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.Lock()
	if d.pending >= d.maxQueue {
		d.mu.Unlock()
		return sessionerr.New(sessionerr.QueueFull, "session queue is full (%d pending)", d.pending)
	}
	d.pending++
	d.mu.Unlock()

	select {
	case d.queue <- job:
		return nil
	default:
		d.mu.Lock()
		d.pending--
		d.mu.Unlock()
		return sessionerr.New(sessionerr.QueueFull, "session queue is full")
	}
}

// Run is the dispatcher's single goroutine: it drains the FIFO queue one
// job at a time, running each to completion or timeout before starting
// the next, and exits when ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drainWithError(sessionerr.Wrap(sessionerr.Cancelled, ctx.Err()))
			return
		case job := <-d.queue:
			d.execute(ctx, job)
		}
	}
}

func (d *Dispatcher) execute(parent context.Context, job Job) {
	d.mu.Lock()
	d.pending--
	d.mu.Unlock()

	if job.Timeout <= 0 {
		if job.Result != nil {
			job.Result <- Result{Err: sessionerr.New(sessionerr.Timeout, "prompt deadline is zero")}
		}
		return
	}

	jobCtx, cancel := context.WithTimeout(parent, job.Timeout)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	output, err := d.runner.RunPrompt(jobCtx, job.Text, job.ImagePath)
	switch {
	case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		err = sessionerr.New(sessionerr.Timeout, "prompt timed out")
	case jobCtx.Err() != nil && sessionerr.KindOf(err) != sessionerr.Cancelled:
		err = sessionerr.Wrap(sessionerr.Cancelled, jobCtx.Err())
	}
	if jobCtx.Err() != nil {
		d.runner.Interrupt() //nolint:errcheck
	}

	if job.Result != nil {
		job.Result <- Result{Output: output, Err: err}
	}
}

// Cancel interrupts whichever job is currently running, if any, causing
// its RunPrompt call to observe context cancellation and its Result to
// carry a Cancelled error.
func (d *Dispatcher) Cancel() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Pending reports how many jobs are queued behind the one in flight.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// drainWithError fails every job still sitting in the queue when the
// dispatcher shuts down, so no caller blocks forever waiting on Result.
func (d *Dispatcher) drainWithError(err error) {
	for {
		select {
		case job := <-d.queue:
			if job.Result != nil {
				job.Result <- Result{Err: err}
			}
		default:
			return
		}
	}
}
