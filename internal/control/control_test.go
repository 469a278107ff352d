package control

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

type fakeHandler struct {
	sessions map[string]SessionView
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{sessions: map[string]SessionView{}}
}

func (h *fakeHandler) Create(ctx context.Context, tool, workdir string) (SessionView, error) {
	v := SessionView{ID: "s1", Tool: tool, Workdir: workdir, Active: true}
	h.sessions["s1"] = v
	return v, nil
}

func (h *fakeHandler) List(ctx context.Context) ([]SessionView, error) {
	var out []SessionView
	for _, v := range h.sessions {
		out = append(out, v)
	}
	return out, nil
}

func (h *fakeHandler) Info(ctx context.Context, sessionID string) (SessionView, error) {
	v, ok := h.sessions[sessionID]
	if !ok {
		return SessionView{}, errors.New("not found")
	}
	return v, nil
}

func (h *fakeHandler) SetActive(ctx context.Context, sessionID string) error {
	if _, ok := h.sessions[sessionID]; !ok {
		return errors.New("not found")
	}
	return nil
}

func (h *fakeHandler) Rename(ctx context.Context, sessionID, name string) error {
	v, ok := h.sessions[sessionID]
	if !ok {
		return errors.New("not found")
	}
	v.Name = name
	h.sessions[sessionID] = v
	return nil
}

func (h *fakeHandler) Close(ctx context.Context, sessionID string) error {
	if _, ok := h.sessions[sessionID]; !ok {
		return errors.New("not found")
	}
	delete(h.sessions, sessionID)
	return nil
}

func (h *fakeHandler) Submit(ctx context.Context, sessionID, text, imagePath string) (string, error) {
	if _, ok := h.sessions[sessionID]; !ok {
		return "", errors.New("not found")
	}
	return "echo: " + text, nil
}

func (h *fakeHandler) SendRaw(ctx context.Context, sessionID, raw string) error {
	if _, ok := h.sessions[sessionID]; !ok {
		return errors.New("not found")
	}
	return nil
}

func (h *fakeHandler) Help(ctx context.Context, tool string, refresh bool) (string, error) {
	return "usage: " + tool, nil
}

func startTestServer(t *testing.T, h Handler) *Client {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "control.sock")
	srv := &Server{SocketPath: sockPath, Handler: h}

	ctx, cancel := context.WithCancel(context.Background())
	go srv.ListenAndServe(ctx) //nolint:errcheck
	t.Cleanup(cancel)

	// give the listener a moment to bind
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c := &Client{SocketPath: sockPath, Timeout: 100 * time.Millisecond}
		if _, err := c.List(); err == nil {
			return c
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not become ready")
	return nil
}

func TestControl_CreateListInfoSubmitClose(t *testing.T) {
	h := newFakeHandler()
	c := startTestServer(t, h)

	view, err := c.Create("codex", "/tmp/proj")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if view.ID != "s1" {
		t.Fatalf("unexpected session id: %q", view.ID)
	}

	list, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one session, got %d", len(list))
	}

	info, err := c.Info("s1")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Tool != "codex" {
		t.Fatalf("unexpected tool: %q", info.Tool)
	}

	output, err := c.Submit("s1", "hello", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if output != "echo: hello" {
		t.Fatalf("unexpected output: %q", output)
	}

	if err := c.Rename("s1", "renamed"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := c.SetActive("s1"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := c.Close("s1"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := c.Info("s1"); err == nil {
		t.Fatalf("expected error looking up closed session")
	}
}

func TestControl_Help(t *testing.T) {
	h := newFakeHandler()
	c := startTestServer(t, h)

	text, err := c.Help("codex", false)
	if err != nil {
		t.Fatalf("Help: %v", err)
	}
	if text != "usage: codex" {
		t.Fatalf("unexpected help text: %q", text)
	}
}

func TestControl_UnknownActionRejected(t *testing.T) {
	h := newFakeHandler()
	c := startTestServer(t, h)

	resp, err := c.send(Request{Action: "bogus"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected failure for unknown action")
	}
	if resp.Error != "unknown_action" {
		t.Fatalf("expected unknown_action error, got %q", resp.Error)
	}
}
