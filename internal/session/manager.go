package session

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LKosoj/sessionctl/internal/sessionerr"
)

// Manager is the in-process registry of sessions, mirroring
// original_source/session.py's SessionManager but replacing its
// dict-of-dataclasses with a mutex-guarded map and its silent
// except-Exception persistence with returned errors the caller decides
// how to handle.
type Manager struct {
	mu       sync.Mutex
	store    *store
	sessions map[string]*Session
	activeID string

	// OnChange fires after any mutating operation commits, mirroring
	// SessionManager.on_session_change; nil is a valid no-op default.
	OnChange func()
}

// NewManager loads any previously persisted sessions from path (migrating
// legacy entries as needed) and returns a ready registry.
func NewManager(path string) (*Manager, error) {
	st := newStore(path)
	doc, err := st.load()
	if err != nil {
		return nil, err
	}

	m := &Manager{store: st, sessions: map[string]*Session{}}
	for id, ds := range doc.Sessions {
		m.sessions[id] = &Session{
			ID:          id,
			Tool:        ds.Tool,
			Workdir:     ds.Workdir,
			Name:        ds.Name,
			ResumeToken: ds.ResumeToken,
			Summary:     ds.Summary,
			UpdatedAt:   ds.UpdatedAt,
			Mode:        ds.Mode,
			// Restart recovery starts every recovered session with an
			// empty queue: prompts in flight at the moment of a crash
			// or restart are not silently replayed against a subprocess
			// that no longer exists.
			Queue: nil,
			Busy:  false,
		}
	}
	if doc.Active != nil {
		if _, ok := m.sessions[doc.Active.SessionID]; ok {
			m.activeID = doc.Active.SessionID
		}
	}
	return m, nil
}

// Create registers a new session for (tool, workdir) and makes it active.
// The session ID is the deterministic fingerprint of (tool, workdir), so
// a second Create for the same pair never mints a second session — it
// fails with AlreadyExist instead, and the caller that wants a fresh
// conversation in the same tool+workdir has to Close the existing one
// first.
func (m *Manager) Create(tool, workdir, mode string) (*Session, error) {
	if tool == "" {
		return nil, sessionerr.New(sessionerr.Validation, "tool name is required")
	}
	info, err := os.Stat(workdir)
	if err != nil || !info.IsDir() {
		return nil, sessionerr.New(sessionerr.Validation, "workdir %q is not a usable directory", workdir)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := Fingerprint{Tool: tool, Workdir: workdir}.String()
	if _, exists := m.sessions[id]; exists {
		return nil, sessionerr.New(sessionerr.AlreadyExist, "session for tool %q in %q already exists", tool, workdir)
	}

	s := &Session{
		ID:        id,
		Tool:      tool,
		Workdir:   workdir,
		Name:      tool + "@" + workdir,
		Mode:      mode,
		UpdatedAt: now(),
	}
	m.sessions[s.ID] = s
	m.activeID = s.ID

	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	m.fireChange()
	return s, nil
}

// Get looks up a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Active returns the currently active session, if any.
func (m *Manager) Active() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == "" {
		return nil, false
	}
	s, ok := m.sessions[m.activeID]
	return s, ok
}

// SetActive makes id the active session.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return sessionerr.New(sessionerr.NotFound, "session %q not found", id)
	}
	m.activeID = id
	if err := m.persistLocked(); err != nil {
		return err
	}
	m.fireChange()
	return nil
}

// Rename sets a session's display name.
func (m *Manager) Rename(id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return sessionerr.New(sessionerr.NotFound, "session %q not found", id)
	}
	s.Name = name
	s.UpdatedAt = now()
	if err := m.persistLocked(); err != nil {
		return err
	}
	m.fireChange()
	return nil
}

// SetResume updates a session's resume token, called by internal/core
// after an interactive prompt once the Stream Matcher has extracted one.
func (m *Manager) SetResume(id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return sessionerr.New(sessionerr.NotFound, "session %q not found", id)
	}
	s.ResumeToken = token
	s.UpdatedAt = now()
	return m.persistLocked()
}

// SetSummary updates a session's last-output summary, used by CLI/RPC
// listings to show recent activity without replaying full output.
func (m *Manager) SetSummary(id, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return sessionerr.New(sessionerr.NotFound, "session %q not found", id)
	}
	s.Summary = summary
	s.UpdatedAt = now()
	return m.persistLocked()
}

// SetBusy records whether a session currently has a prompt in flight.
// Unlike SetResume/SetSummary this is purely in-memory observability
// state and never triggers persistence.
func (m *Manager) SetBusy(id string, busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Busy = busy
	}
}

// RecordCompletion updates a session's last-prompt observability
// counters after a dispatch finishes, in-memory only like SetBusy.
func (m *Manager) RecordCompletion(id string, outputBytes int, elapsedMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastOutputBytes = outputBytes
		s.ElapsedMsLast = elapsedMs
	}
}

// Close removes a session from the registry. It does not stop any
// subprocess driver; internal/core owns driver lifecycle and calls Close
// only after its driver has been torn down.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return sessionerr.New(sessionerr.NotFound, "session %q not found", id)
	}
	delete(m.sessions, id)
	if m.activeID == id {
		m.activeID = ""
	}
	if err := m.persistLocked(); err != nil {
		return err
	}
	m.fireChange()
	return nil
}

// List returns a snapshot of all sessions, sorted by nothing in
// particular; the CLI/RPC layer sorts however its own presentation
// wants.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Enqueue appends a prompt to a session's FIFO queue and persists it.
// Queued prompts do not survive a restart: NewManager starts every
// recovered session with an empty queue.
func (m *Manager) Enqueue(id string, prompt PendingPrompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return sessionerr.New(sessionerr.NotFound, "session %q not found", id)
	}
	if prompt.TraceID == "" {
		prompt.TraceID = uuid.NewString()
	}
	if prompt.QueuedAt.IsZero() {
		prompt.QueuedAt = now()
	}
	s.Queue = append(s.Queue, prompt)
	return m.persistLocked()
}

// Dequeue pops the head of a session's queue, called by internal/core
// once a dispatched prompt's result arrives or its dispatch is refused.
func (m *Manager) Dequeue(id string) (PendingPrompt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return PendingPrompt{}, false, sessionerr.New(sessionerr.NotFound, "session %q not found", id)
	}
	if len(s.Queue) == 0 {
		return PendingPrompt{}, false, nil
	}
	head := s.Queue[0]
	s.Queue = s.Queue[1:]
	if err := m.persistLocked(); err != nil {
		return PendingPrompt{}, false, err
	}
	return head, true, nil
}

func (m *Manager) persistLocked() error {
	doc := &document{Sessions: map[string]diskSession{}}
	for id, s := range m.sessions {
		doc.Sessions[id] = diskSession{
			Tool:        s.Tool,
			Workdir:     s.Workdir,
			Name:        s.Name,
			ResumeToken: s.ResumeToken,
			Summary:     s.Summary,
			UpdatedAt:   s.UpdatedAt,
			Queue:       s.Queue,
			Mode:        s.Mode,
		}
	}
	if m.activeID != "" {
		doc.Active = &activePointer{SessionID: m.activeID, UpdatedAt: now()}
	}
	return m.store.save(doc)
}

func (m *Manager) fireChange() {
	if m.OnChange != nil {
		m.OnChange()
	}
}

func now() time.Time { return time.Now() }
