package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/LKosoj/sessionctl/internal/atomicfile"
	"github.com/LKosoj/sessionctl/internal/sessionerr"
)

// document is the on-disk shape of the state file: a "_sessions" map
// keyed by session ID, an "_active" pointer, and (only ever read, never
// written) legacy top-level "{tool}::{workdir}" entries from before
// per-session IDs existed.
type document struct {
	Sessions map[string]diskSession `json:"_sessions"`
	Active   *activePointer         `json:"_active,omitempty"`
}

type diskSession struct {
	Tool        string          `json:"tool"`
	Workdir     string          `json:"workdir"`
	Name        string          `json:"name"`
	ResumeToken string          `json:"resume_token,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Queue       []PendingPrompt `json:"queue"`
	Mode        string          `json:"mode"`
}

type activePointer struct {
	SessionID string    `json:"session_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// store owns exclusive access to one state file across processes via
// internal/atomicfile's advisory lock and serializes access within this
// process via the caller's own mutex (Manager holds it, not store).
type store struct {
	path string
}

func newStore(path string) *store {
	return &store{path: path}
}

// load reads the state file. When it has no "_sessions" entries, legacy
// "{tool}::{workdir}" top-level entries are migrated into "_sessions": a
// legacy entry is keyed by the fingerprint ID of its own tool/workdir and
// is treated exactly like a native one from then on, per
// original_source/state.py's load_state fallback. load itself never
// writes; the migrated document reaches disk on the next save.
func (s *store) load() (*document, error) {
	fl, err := atomicfile.Lock(s.path)
	if err != nil {
		return nil, sessionerr.Wrap(sessionerr.Persistence, err)
	}
	defer fl.Unlock() //nolint:errcheck

	data, err := atomicfile.ReadOrEmpty(s.path)
	if err != nil {
		return nil, sessionerr.Wrap(sessionerr.Persistence, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &document{Sessions: map[string]diskSession{}}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, sessionerr.Wrap(sessionerr.Persistence, err)
	}

	doc := &document{Sessions: map[string]diskSession{}}
	if sessionsRaw, ok := raw["_sessions"]; ok {
		if err := json.Unmarshal(sessionsRaw, &doc.Sessions); err != nil {
			return nil, sessionerr.Wrap(sessionerr.Persistence, err)
		}
	}
	if activeRaw, ok := raw["_active"]; ok {
		var active activePointer
		if err := json.Unmarshal(activeRaw, &active); err == nil {
			doc.Active = &active
		}
	}

	if len(doc.Sessions) == 0 {
		migrated := map[string]diskSession{}
		for key, val := range raw {
			if key == "_sessions" || key == "_active" {
				continue
			}
			var ds diskSession
			if err := json.Unmarshal(val, &ds); err != nil {
				continue
			}
			// A legacy entry already carries its own tool/workdir, so its
			// fingerprint ID is the same one Create would mint for that
			// pair today — migration is idempotent without a counter.
			migrated[Fingerprint{Tool: ds.Tool, Workdir: ds.Workdir}.String()] = ds
		}
		doc.Sessions = migrated
	}

	return doc, nil
}

// save writes doc to the state file via internal/atomicfile's
// write-temp+fsync+rename primitive, the durability sequence mandated for
// the persisted state file: a reader must never observe a half-written
// document, including across a crash between write and rename.
func (s *store) save(doc *document) error {
	fl, err := atomicfile.Lock(s.path)
	if err != nil {
		return sessionerr.Wrap(sessionerr.Persistence, err)
	}
	defer fl.Unlock() //nolint:errcheck

	out := map[string]interface{}{"_sessions": doc.Sessions}
	if doc.Active != nil {
		out["_active"] = doc.Active
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return sessionerr.Wrap(sessionerr.Persistence, err)
	}

	if err := atomicfile.WriteAtomic(s.path, data); err != nil {
		return sessionerr.Wrap(sessionerr.Persistence, err)
	}
	return nil
}
