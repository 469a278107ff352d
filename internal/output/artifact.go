package output

import (
	"os"
	"path/filepath"
)

// WriteArtifact writes html to dir/filename, creating dir if needed, and
// returns the resulting path. Ported from original_source/utils.py's
// make_html_file, which uses tempfile.mkstemp to name the file; here the
// caller supplies an already collision-resistant name via
// ArtifactFilename instead, since the artifact needs a stable name a
// session can be told about, not a randomized one.
func WriteArtifact(dir, filename, html string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// LiveLogPath returns the path of the append-only raw-output log a
// session's Flusher writes flushed chunks to while its subprocess runs.
func LiveLogPath(dir, sessionID string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, sessionID+"-live.log")
}

// AppendLive appends text to sessionID's live log, creating dir and the
// file as needed. It is the Flusher destination for one interactive
// session: every coalesced flush lands here in order, giving a tail-able
// record of a long-running subprocess's output independent of whatever
// the in-flight prompt eventually returns.
func AppendLive(dir, sessionID, text string) error {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(LiveLogPath(dir, sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(text)
	return err
}
