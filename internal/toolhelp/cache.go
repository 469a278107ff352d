// Package toolhelp implements the Tool-Help Cache: a small persisted map
// from tool name to the most recent output of that tool's help_cmd
// invocation, so sessionctl can show a tool's --help text without
// re-running it on every request. It reuses internal/atomicfile's
// write-temp+fsync+rename and advisory-lock primitives rather than
// duplicating the Session Manager's persistence path for what is, on
// disk, the same kind of single JSON document guarded against
// concurrent writers.
package toolhelp

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/LKosoj/sessionctl/internal/atomicfile"
	"github.com/LKosoj/sessionctl/internal/sessionerr"
)

// Entry is one tool's cached help text.
type Entry struct {
	Tool      string    `json:"tool"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cache is the in-memory view of the tool-help document, backed by path.
type Cache struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

// Load reads path (creating an empty cache if it does not yet exist).
func Load(path string) (*Cache, error) {
	fl, err := atomicfile.Lock(path)
	if err != nil {
		return nil, sessionerr.Wrap(sessionerr.Persistence, err)
	}
	defer fl.Unlock() //nolint:errcheck

	data, err := atomicfile.ReadOrEmpty(path)
	if err != nil {
		return nil, sessionerr.Wrap(sessionerr.Persistence, err)
	}

	entries := map[string]Entry{}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, sessionerr.Wrap(sessionerr.Persistence, err)
		}
	}
	return &Cache{path: path, entries: entries}, nil
}

// Get returns the cached help text for tool, if any.
func (c *Cache) Get(tool string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[tool]
	return e, ok
}

// Set records content as tool's help text as of now and persists the
// whole document, matching the schema's "updated whenever the caller
// requests help_cmd_template output" rule.
func (c *Cache) Set(tool, content string) error {
	c.mu.Lock()
	if c.entries == nil {
		c.entries = map[string]Entry{}
	}
	c.entries[tool] = Entry{Tool: tool, Content: content, UpdatedAt: time.Now()}
	snapshot := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.Unlock()

	return c.persist(snapshot)
}

func (c *Cache) persist(entries map[string]Entry) error {
	fl, err := atomicfile.Lock(c.path)
	if err != nil {
		return sessionerr.Wrap(sessionerr.Persistence, err)
	}
	defer fl.Unlock() //nolint:errcheck

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return sessionerr.Wrap(sessionerr.Persistence, err)
	}
	if err := atomicfile.WriteAtomic(c.path, data); err != nil {
		return sessionerr.Wrap(sessionerr.Persistence, err)
	}
	return nil
}
