// Package streammatch implements the Stream Matcher: it watches a
// subprocess's raw output as it arrives, keeps a bounded rolling buffer,
// and runs the tool's readiness/resume-token/activity regexes against an
// ANSI-stripped clean view of that buffer, grounded on the daemon's
// wait-for-pattern loop generalized from a one-shot wait into a
// continuous observer, and on original_source/utils.py's
// detect_prompt_regex/detect_resume_regex heuristics.
package streammatch

import (
	"regexp"
	"strings"
	"sync"

	"github.com/LKosoj/sessionctl/internal/vterm"
)

// bufferLimit bounds memory use for long-lived interactive sessions; only
// the tail of the output is relevant to readiness/activity detection.
const bufferLimit = 64 * 1024

// activityByteThreshold is the net-output volume that counts as activity
// on its own, independent of any activity-token match.
const activityByteThreshold = 128

// Events reports what Observe found in the buffer after appending a chunk.
type Events struct {
	// Ready is true once the prompt regex has matched the clean view.
	Ready bool
	// ResumeToken is the first capture group of the resume regex, if it
	// matched and the tool configures one.
	ResumeToken string
	// Activity is true if any configured activity token appeared in the
	// chunk just observed, used to reset an idle timer without requiring
	// a full prompt match.
	Activity bool
}

// Matcher accumulates raw subprocess output and evaluates regexes over its
// ANSI-stripped clean view. The Session Driver's read loop is its only
// writer in practice, but readiness is also polled from other goroutines,
// so every access goes through mu rather than leaning on a single-writer
// contract.
type Matcher struct {
	mu sync.Mutex

	raw strings.Builder

	promptRe *regexp.Regexp
	resumeRe *regexp.Regexp
	activity []string
	cols     int

	ready       bool
	resumeToken string
	sinceTick   int
}

// New builds a Matcher for a tool's configured prompt regex, resume regex,
// and activity tokens. Empty patterns are permitted: a tool with no
// configured prompt regex never reports Ready via regex match (the Session
// Driver falls back to its own idle-based heuristic).
func New(promptPattern, resumePattern string, activityTokens []string, cols int) (*Matcher, error) {
	m := &Matcher{activity: activityTokens, cols: cols}
	if promptPattern != "" {
		re, err := regexp.Compile(promptPattern)
		if err != nil {
			return nil, err
		}
		m.promptRe = re
	}
	if resumePattern != "" {
		re, err := regexp.Compile(resumePattern)
		if err != nil {
			return nil, err
		}
		m.resumeRe = re
	}
	if cols <= 0 {
		m.cols = 200
	}
	return m, nil
}

// Observe appends chunk to the rolling buffer and re-evaluates every
// configured regex against the current clean view. Ready latches: once the
// prompt regex matches, Events keeps reporting Ready true on every
// subsequent call, since a readiness marker does not un-happen when later
// output scrolls it out of view. ResumeToken instead tracks the latest
// match, replacing a previous capture when the tool prints a new one (a
// conversation/thread id can change across turns).
func (m *Matcher) Observe(chunk []byte) Events {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.raw.Write(chunk)
	m.truncate()

	clean := vterm.Strip(m.raw.String(), m.cols)

	ev := Events{}
	if !m.ready && m.promptRe != nil && m.promptRe.MatchString(clean) {
		m.ready = true
	}
	ev.Ready = m.ready

	if m.resumeRe != nil {
		if match := m.resumeRe.FindStringSubmatch(clean); match != nil {
			token := match[0]
			if len(match) > 1 {
				token = match[1]
			}
			m.resumeToken = token
		}
	}
	ev.ResumeToken = m.resumeToken

	cleanChunk := vterm.Strip(string(chunk), m.cols)
	tokenHit := false
	for _, tok := range m.activity {
		if tok != "" && strings.Contains(cleanChunk, tok) {
			tokenHit = true
			break
		}
	}
	m.sinceTick += len(chunk)
	if tokenHit || m.sinceTick >= activityByteThreshold {
		ev.Activity = true
		m.sinceTick = 0
	}

	return ev
}

// CleanView returns the full ANSI-stripped text currently held in the
// rolling buffer, the same view Observe matches regexes against.
func (m *Matcher) CleanView() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return vterm.Strip(m.raw.String(), m.cols)
}

// Reset clears latched state and the rolling buffer, used when a session
// transitions from AwaitingPrompt back to Writing for the next prompt.
func (m *Matcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw.Reset()
	m.ready = false
	m.resumeToken = ""
	m.sinceTick = 0
}

func (m *Matcher) truncate() {
	if m.raw.Len() <= bufferLimit {
		return
	}
	s := m.raw.String()
	overflow := len(s) - bufferLimit
	m.raw.Reset()
	m.raw.WriteString(s[overflow:])
}
