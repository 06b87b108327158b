package transcribe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRecognizer struct {
	mu      sync.Mutex
	active  int32
	maxSeen int32
	delay   time.Duration
	err     error
}

func (f *fakeRecognizer) Transcribe(ctx context.Context, path, language string) (string, error) {
	cur := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	f.mu.Lock()
	if cur > f.maxSeen {
		f.maxSeen = cur
	}
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	return "transcript of " + path + " (" + language + ")", nil
}

func (f *fakeRecognizer) Close() error { return nil }

func TestEngineRejectsUnknownLanguage(t *testing.T) {
	e := NewEngine(&fakeRecognizer{}, 1, []string{"en", "vi"})
	_, err := e.Transcribe(context.Background(), "lesson.mp4", "xx")
	var te *TranscriptionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "unsupported language") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEngineDefaultLanguage(t *testing.T) {
	e := NewEngine(&fakeRecognizer{}, 1, nil)
	text, err := e.Transcribe(context.Background(), "lesson.mp4", "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !strings.Contains(text, "(en)") {
		t.Fatalf("default language not applied: %q", text)
	}
}

func TestEngineSerializesWorkers(t *testing.T) {
	rec := &fakeRecognizer{delay: 20 * time.Millisecond}
	e := NewEngine(rec, 2, []string{"en"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Transcribe(context.Background(), "a.mp4", "en"); err != nil {
				t.Errorf("Transcribe: %v", err)
			}
		}()
	}
	wg.Wait()

	if rec.maxSeen > 2 {
		t.Fatalf("pool leaked: %d concurrent recognizer calls", rec.maxSeen)
	}
}

func TestEngineContextCancelledWaitingForSlot(t *testing.T) {
	rec := &fakeRecognizer{delay: 200 * time.Millisecond}
	e := NewEngine(rec, 1, []string{"en"})

	go func() { _, _ = e.Transcribe(context.Background(), "busy.mp4", "en") }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Transcribe(ctx, "queued.mp4", "en")
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestEngineWrapsRecognizerFailure(t *testing.T) {
	rec := &fakeRecognizer{err: errors.New("corrupt media")}
	e := NewEngine(rec, 1, []string{"en"})
	_, err := e.Transcribe(context.Background(), "bad.mp4", "en")
	var te *TranscriptionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	if te.Path != "bad.mp4" {
		t.Fatalf("unexpected path in error: %q", te.Path)
	}
}
