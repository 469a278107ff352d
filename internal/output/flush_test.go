package output

import (
	"sync"
	"testing"
	"time"
)

func TestFlusher_CoalescesRapidAppends(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	f := NewFlusher(1000, 50*time.Millisecond, func(text string) {
		mu.Lock()
		sent = append(sent, text)
		mu.Unlock()
	})

	f.Append([]byte("a"))
	f.Append([]byte("b"))
	f.Append([]byte("c"))

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one coalesced flush, got %d: %v", len(sent), sent)
	}
	if sent[0] != "abc" {
		t.Fatalf("expected coalesced text %q, got %q", "abc", sent[0])
	}
}

func TestFlusher_FlushForcesImmediateSend(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	f := NewFlusher(1000, time.Hour, func(text string) {
		mu.Lock()
		sent = append(sent, text)
		mu.Unlock()
	})

	f.Append([]byte("hello"))
	f.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 1 || sent[0] != "hello" {
		t.Fatalf("expected forced flush to send %q, got %v", "hello", sent)
	}
}

func TestFlusher_ExceedingInlineLimitSchedulesFlush(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	f := NewFlusher(4, 30*time.Millisecond, func(text string) {
		mu.Lock()
		sent = append(sent, text)
		mu.Unlock()
	})

	f.Append([]byte("this is definitely over four chars"))

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 1 {
		t.Fatalf("expected one flush once scheduled, got %d", len(sent))
	}
}
