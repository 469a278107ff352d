package streammatch

import "testing"

func TestMatcher_ReadyLatchesOnPromptMatch(t *testing.T) {
	m, err := New(`>\s*$`, "", nil, 80)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ev := m.Observe([]byte("thinking...\n"))
	if ev.Ready {
		t.Fatalf("expected not ready before prompt appears")
	}

	ev = m.Observe([]byte("> "))
	if !ev.Ready {
		t.Fatalf("expected ready after prompt line")
	}

	ev = m.Observe([]byte("more output that does not match\n"))
	if !ev.Ready {
		t.Fatalf("expected Ready to latch true even once scrolled out of view")
	}
}

func TestMatcher_ResumeTokenCapturesFirstGroup(t *testing.T) {
	m, err := New("", `session=([a-f0-9-]+)`, nil, 80)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ev := m.Observe([]byte("starting up\nsession=abc-123\nready\n"))
	if ev.ResumeToken != "abc-123" {
		t.Fatalf("expected resume token %q, got %q", "abc-123", ev.ResumeToken)
	}
}

func TestMatcher_ResumeTokenReplacesOnLaterMatch(t *testing.T) {
	m, err := New("", `session=([a-f0-9-]+)`, nil, 80)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m.Observe([]byte("session=abc-123\n"))
	ev := m.Observe([]byte("session=def-456\n"))
	if ev.ResumeToken != "def-456" {
		t.Fatalf("expected resume token to be replaced by the latest match, got %q", ev.ResumeToken)
	}
}

func TestMatcher_ActivityFiresOnByteThresholdWithoutToken(t *testing.T) {
	m, err := New("", "", []string{"[tool_call]"}, 80)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	padding := make([]byte, 127)
	for i := range padding {
		padding[i] = 'x'
	}
	ev := m.Observe(padding)
	if ev.Activity {
		t.Fatalf("expected no activity below the byte threshold")
	}
	ev = m.Observe([]byte("y"))
	if !ev.Activity {
		t.Fatalf("expected activity once cumulative bytes cross the threshold")
	}
}

func TestMatcher_ActivityTokenDetectedPerChunk(t *testing.T) {
	m, err := New("", "", []string{"[tool_call]"}, 80)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ev := m.Observe([]byte("plain text\n"))
	if ev.Activity {
		t.Fatalf("expected no activity for unrelated chunk")
	}

	ev = m.Observe([]byte("running [tool_call] search\n"))
	if !ev.Activity {
		t.Fatalf("expected activity token to be detected")
	}
}

func TestMatcher_StripsANSIBeforeMatching(t *testing.T) {
	m, err := New(`^ready$`, "", nil, 80)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ev := m.Observe([]byte("\x1b[32mready\x1b[0m"))
	if !ev.Ready {
		t.Fatalf("expected ANSI-colored prompt to still match after stripping")
	}
}

func TestMatcher_Reset(t *testing.T) {
	m, err := New(`^ready$`, "", nil, 80)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Observe([]byte("ready"))
	m.Reset()
	ev := m.Observe([]byte("not ready yet"))
	if ev.Ready {
		t.Fatalf("expected Ready to be cleared after Reset")
	}
}

func TestDetectResumeRegex(t *testing.T) {
	pattern, ok := DetectResumeRegex(`{"thread_id": "abc123"}`)
	if !ok {
		t.Fatalf("expected a resume regex to be detected")
	}
	if pattern == "" {
		t.Fatalf("expected non-empty pattern")
	}
}

func TestDetectResumeRegex_NoMatch(t *testing.T) {
	if _, ok := DetectResumeRegex("nothing interesting here"); ok {
		t.Fatalf("expected no resume regex to be detected")
	}
}

func TestDetectPromptRegex_RepeatingShortLine(t *testing.T) {
	lines := []string{"some output", "more output", "codex> ", "codex> "}
	pattern, ok := DetectPromptRegex(lines)
	if !ok {
		t.Fatalf("expected a prompt regex to be detected")
	}
	if pattern == "" {
		t.Fatalf("expected non-empty pattern")
	}
}

func TestDetectPromptRegex_RejectsLongLine(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	lines := []string{long, long}
	if _, ok := DetectPromptRegex(lines); ok {
		t.Fatalf("expected long repeating line to be rejected")
	}
}

func TestDetectPromptRegex_RequiresRepetition(t *testing.T) {
	lines := []string{"first", "second", "third"}
	if _, ok := DetectPromptRegex(lines); ok {
		t.Fatalf("expected no match without repetition")
	}
}
