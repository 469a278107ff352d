package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/LKosoj/sessionctl/internal/sessionerr"
)

type fakeRunner struct {
	mu          sync.Mutex
	delay       time.Duration
	interrupted int
	calls       []string
}

func (f *fakeRunner) RunPrompt(ctx context.Context, text, imagePath string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	select {
	case <-time.After(f.delay):
		return "echo:" + text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeRunner) Interrupt() error {
	f.mu.Lock()
	f.interrupted++
	f.mu.Unlock()
	return nil
}

func TestDispatcher_RunsJobsInFIFOOrder(t *testing.T) {
	runner := &fakeRunner{delay: 5 * time.Millisecond}
	d := NewDispatcher(runner, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	results := make([]chan Result, 3)
	for i, text := range []string{"a", "b", "c"} {
		ch := make(chan Result, 1)
		results[i] = ch
		if err := d.Submit(Job{Text: text, Timeout: time.Second, Result: ch}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	for i, want := range []string{"echo:a", "echo:b", "echo:c"} {
		select {
		case r := <-results[i]:
			if r.Err != nil {
				t.Fatalf("unexpected error: %v", r.Err)
			}
			if r.Output != want {
				t.Fatalf("expected %q, got %q", want, r.Output)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 3 || runner.calls[0] != "a" || runner.calls[2] != "c" {
		t.Fatalf("expected calls in FIFO order, got %v", runner.calls)
	}
}

func TestDispatcher_QueueFullBackpressure(t *testing.T) {
	runner := &fakeRunner{delay: 200 * time.Millisecond}
	d := NewDispatcher(runner, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	ch1 := make(chan Result, 1)
	if err := d.Submit(Job{Text: "first", Timeout: time.Second, Result: ch1}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	// Give the dispatcher a moment to pick up "first" so it is in flight.
	time.Sleep(20 * time.Millisecond)

	ch2 := make(chan Result, 1)
	if err := d.Submit(Job{Text: "second", Timeout: time.Second, Result: ch2}); err != nil {
		t.Fatalf("second Submit (should fill the one queue slot): %v", err)
	}

	ch3 := make(chan Result, 1)
	err := d.Submit(Job{Text: "third", Timeout: time.Second, Result: ch3})
	if err == nil {
		t.Fatalf("expected QueueFull error for third job")
	}
	if sessionerr.KindOf(err) != sessionerr.QueueFull {
		t.Fatalf("expected QueueFull kind, got %v", sessionerr.KindOf(err))
	}
}

func TestDispatcher_TimeoutEscalatesToInterrupt(t *testing.T) {
	runner := &fakeRunner{delay: time.Second}
	d := NewDispatcher(runner, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	ch := make(chan Result, 1)
	if err := d.Submit(Job{Text: "slow", Timeout: 30 * time.Millisecond, Result: ch}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case r := <-ch:
		if r.Err == nil {
			t.Fatalf("expected timeout error")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for result")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.interrupted == 0 {
		t.Fatalf("expected Interrupt to be called after timeout")
	}
}

func TestDispatcher_ZeroDeadlineFailsWithoutCallingRunner(t *testing.T) {
	runner := &fakeRunner{delay: time.Millisecond}
	d := NewDispatcher(runner, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	ch := make(chan Result, 1)
	if err := d.Submit(Job{Text: "no-deadline", Timeout: 0, Result: ch}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case r := <-ch:
		if r.Err == nil {
			t.Fatalf("expected a zero-deadline job to fail")
		}
		if sessionerr.KindOf(r.Err) != sessionerr.Timeout {
			t.Fatalf("expected Timeout kind, got %v", sessionerr.KindOf(r.Err))
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for result")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 0 {
		t.Fatalf("expected runner never to be called for a zero-deadline job, got %v", runner.calls)
	}
}

func TestDispatcher_SingleInFlight(t *testing.T) {
	runner := &fakeRunner{delay: 40 * time.Millisecond}
	d := NewDispatcher(runner, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	ch1 := make(chan Result, 1)
	ch2 := make(chan Result, 1)
	d.Submit(Job{Text: "a", Timeout: time.Second, Result: ch1}) //nolint:errcheck
	d.Submit(Job{Text: "b", Timeout: time.Second, Result: ch2}) //nolint:errcheck

	<-ch1
	time.Sleep(5 * time.Millisecond)
	if d.Pending() != 0 {
		t.Fatalf("expected zero pending once first job completed and second dequeued")
	}
	<-ch2
}
