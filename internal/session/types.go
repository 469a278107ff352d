// Package session implements the Session Manager: a registry of
// sessions keyed by (tool, workdir), single-writer JSON persistence with
// write-temp+fsync+rename durability, legacy key-format migration, and
// the active-session pointer used when an RPC or CLI call omits a
// session_id. Grounded on original_source/state.py's load_state/
// save_state/set_active_state family and original_source/session.py's
// SessionManager.
package session

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// PendingPrompt is one queued unit of work for a session.
type PendingPrompt struct {
	TraceID   string        `json:"trace_id"`
	Text      string        `json:"text"`
	ImagePath string        `json:"image_path,omitempty"`
	Dest      Dest          `json:"dest"`
	QueuedAt  time.Time     `json:"queued_at"`
	Deadline  time.Duration `json:"deadline_ns"`
}

// Dest identifies where a prompt's output should be delivered once it
// completes; the chat transport is a non-goal, but the RPC bridge and any
// future transport both need a destination tag to route the result.
type Dest struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// Session is one managed (tool, workdir) conversation. Busy,
// LastOutputBytes, and ElapsedMsLast are runtime observability fields,
// not persisted: they describe the live dispatcher, not the durable
// conversation state, and reset to their zero value on every restart.
type Session struct {
	ID              string          `json:"id"`
	Tool            string          `json:"tool"`
	Workdir         string          `json:"workdir"`
	Name            string          `json:"name"`
	ResumeToken     string          `json:"resume_token,omitempty"`
	Summary         string          `json:"summary,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Queue           []PendingPrompt `json:"queue"`
	Busy            bool            `json:"-"`
	Mode            string          `json:"mode"`
	LastOutputBytes int             `json:"-"`
	ElapsedMsLast   int64           `json:"-"`
}

// Fingerprint is the (tool, workdir) identity a session is registered
// under. String derives the session ID directly: two fingerprints with
// the same tool and workdir always produce the same ID, so Create can
// detect a duplicate registration by ID lookup alone.
type Fingerprint struct {
	Tool    string
	Workdir string
}

// String returns the deterministic session ID for this fingerprint: the
// first 8 bytes of sha256("tool\x00workdir"), hex-encoded. The NUL
// separator keeps a tool named "a" + workdir "/b/c" from colliding with
// tool "a/b" + workdir "/c".
func (f Fingerprint) String() string {
	sum := sha256.Sum256([]byte(f.Tool + "\x00" + f.Workdir))
	return fmt.Sprintf("%x", sum[:8])
}
