package output

import (
	"sync"
	"time"
)

// Flusher coalesces appended output chunks for one destination (a chat
// message, an RPC response buffer, whatever the caller's Send delivers to)
// and debounces how often Send actually fires: a pending flush may be
// rescheduled once, and the second scheduling commits.
type Flusher struct {
	mu          sync.Mutex
	buf         []byte
	inlineLimit int
	flushDelay  time.Duration
	lastAppend  time.Time
	timer       *time.Timer
	rescheduled bool

	// Send delivers the buffered content so far; it is called with the
	// Flusher's lock released so Send may itself call back into Append.
	Send func(text string)
}

// NewFlusher builds a Flusher that calls send on each scheduled or forced
// flush.
func NewFlusher(inlineLimit int, flushDelay time.Duration, send func(text string)) *Flusher {
	return &Flusher{inlineLimit: inlineLimit, flushDelay: flushDelay, Send: send}
}

// Append adds chunk to the buffered tail. If the buffer is still under
// inlineLimit and the last append was within flushDelay, the chunk is
// coalesced and no flush is scheduled; otherwise a flush timer is
// (re)armed, allowed to be rescheduled at most once before it commits.
func (f *Flusher) Append(chunk []byte) {
	f.mu.Lock()
	now := time.Now()
	withinWindow := !f.lastAppend.IsZero() && now.Sub(f.lastAppend) <= f.flushDelay
	f.buf = append(f.buf, chunk...)
	f.lastAppend = now

	coalesce := withinWindow && len(f.buf) <= f.inlineLimit
	if coalesce {
		f.mu.Unlock()
		return
	}
	f.arm()
	f.mu.Unlock()
}

// arm schedules a flush, honoring the "rescheduled at most once" rule:
// the first reschedule of a pending timer restarts its delay, the second
// leaves the pending timer to fire at its existing deadline instead of
// pushing the deadline out again.
func (f *Flusher) arm() {
	if f.timer != nil {
		if f.rescheduled {
			// second scheduling commits: let the existing timer fire on
			// its own, don't push it out further.
			return
		}
		if f.timer.Stop() {
			f.rescheduled = true
			f.timer = time.AfterFunc(f.flushDelay, f.fire)
			return
		}
	}
	f.rescheduled = false
	f.timer = time.AfterFunc(f.flushDelay, f.fire)
}

func (f *Flusher) fire() {
	f.mu.Lock()
	text := string(f.buf)
	f.buf = nil
	f.timer = nil
	f.rescheduled = false
	f.mu.Unlock()

	if text != "" && f.Send != nil {
		f.Send(text)
	}
}

// Flush forces any buffered content out immediately, used when a prompt
// completes and nothing further will be coalesced into it.
func (f *Flusher) Flush() {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	text := string(f.buf)
	f.buf = nil
	f.rescheduled = false
	f.mu.Unlock()

	if text != "" && f.Send != nil {
		f.Send(text)
	}
}
