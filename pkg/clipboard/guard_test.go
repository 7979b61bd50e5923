package clipboard

import (
	"sync"
	"testing"
	"time"
)

// fakeClipboard is an in-memory Clipboard that counts clears.
type fakeClipboard struct {
	mu     sync.Mutex
	text   string
	clears int
}

func (f *fakeClipboard) WriteText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	return nil
}

func (f *fakeClipboard) ReadText() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, nil
}

func (f *fakeClipboard) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = ""
	f.clears++
	return nil
}

func (f *fakeClipboard) snapshot() (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.clears
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for clear schedule")
	}
}

func TestCopyClearsAfterTTL(t *testing.T) {
	clip := &fakeClipboard{}
	g := NewGuard(clip, 20*time.Millisecond)

	done, err := g.Copy([]byte("s3cr3t"))
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	if text, _ := clip.snapshot(); text != "s3cr3t" {
		t.Fatalf("expected secret on clipboard, got %q", text)
	}

	waitDone(t, done)

	text, clears := clip.snapshot()
	if text != "" {
		t.Errorf("expected cleared clipboard, got %q", text)
	}
	if clears != 1 {
		t.Errorf("expected exactly one clear, got %d", clears)
	}
}

func TestRearmSupersedes(t *testing.T) {
	clip := &fakeClipboard{}
	g := NewGuard(clip, 50*time.Millisecond)

	first, err := g.Copy([]byte("first"))
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	second, err := g.Copy([]byte("second"))
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	// The superseded schedule completes immediately without clearing.
	waitDone(t, first)
	if text, clears := clip.snapshot(); text != "second" || clears != 0 {
		t.Fatalf("superseded schedule touched clipboard: text=%q clears=%d", text, clears)
	}

	// Exactly one clearing event, at the second copy's deadline.
	waitDone(t, second)
	text, clears := clip.snapshot()
	if text != "" {
		t.Errorf("expected cleared clipboard, got %q", text)
	}
	if clears != 1 {
		t.Errorf("expected exactly one clear, got %d", clears)
	}
}

func TestManualOverwriteIsPreserved(t *testing.T) {
	clip := &fakeClipboard{}
	g := NewGuard(clip, 20*time.Millisecond)

	done, err := g.Copy([]byte("s3cr3t"))
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	// The user copies something else before the deadline.
	if err := clip.WriteText("user content"); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}

	waitDone(t, done)

	text, clears := clip.snapshot()
	if text != "user content" {
		t.Errorf("user clipboard content clobbered: got %q", text)
	}
	if clears != 0 {
		t.Errorf("expected no clears, got %d", clears)
	}
}

func TestClearNow(t *testing.T) {
	clip := &fakeClipboard{}
	g := NewGuard(clip, time.Hour)

	done, err := g.Copy([]byte("s3cr3t"))
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	if err := g.ClearNow(); err != nil {
		t.Fatalf("ClearNow failed: %v", err)
	}

	// The pending schedule is cancelled, not left to fire an hour later.
	waitDone(t, done)

	text, clears := clip.snapshot()
	if text != "" {
		t.Errorf("expected cleared clipboard, got %q", text)
	}
	if clears != 1 {
		t.Errorf("expected exactly one clear, got %d", clears)
	}
}

func TestDefaultTTL(t *testing.T) {
	g := NewGuard(&fakeClipboard{}, 0)
	if g.TTL() != DefaultTTL {
		t.Errorf("expected DefaultTTL, got %v", g.TTL())
	}
}
