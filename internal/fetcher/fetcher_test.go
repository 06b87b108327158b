package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFetchSanitizedHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fake video bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f, err := New(dir, 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p, err := f.Fetch(context.Background(), srv.URL+"/lesson.mp4", "intro  to  go")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if filepath.Dir(p) != dir {
		t.Fatalf("artifact outside scratch dir: %s", p)
	}
	if filepath.Base(p) != "intro_to_go.mp4" {
		t.Fatalf("unexpected artifact name: %s", filepath.Base(p))
	}
	body, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(body) != "fake video bytes" {
		t.Fatalf("unexpected artifact content: %q", body)
	}

	if err := Reclaim(p); err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("artifact still present after reclaim")
	}
}

func TestFetchMissingHintGeneratesName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	f, err := New(t.TempDir(), 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p1, err := f.Fetch(context.Background(), srv.URL+"/a.webm", "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	p2, err := f.Fetch(context.Background(), srv.URL+"/a.webm", "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("generated names collided: %s", p1)
	}
	if !strings.HasSuffix(p1, ".webm") {
		t.Fatalf("extension not preserved: %s", p1)
	}
}

func TestFetchBadStatusLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f, err := New(dir, 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = f.Fetch(context.Background(), srv.URL+"/missing.mp4", "missing")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty scratch dir, found %d entries", len(entries))
	}
}

func TestFetchTruncatedBodyRemovesPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1024")
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f, err := New(dir, 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/trunc.mp4", "trunc"); err == nil {
		t.Fatalf("expected error for truncated body")
	}
	if _, err := os.Stat(filepath.Join(dir, "trunc.mp4")); !os.IsNotExist(err) {
		t.Fatalf("partial file not cleaned up")
	}
}

func TestReclaimMissingPath(t *testing.T) {
	if err := Reclaim(filepath.Join(t.TempDir(), "never-existed.mp4")); err != nil {
		t.Fatalf("Reclaim on missing path: %v", err)
	}
}

func TestSweepOlderThan(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.mp4")
	fresh := filepath.Join(dir, "fresh.mp4")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	n, err := SweepOlderThan(dir, time.Hour)
	if err != nil {
		t.Fatalf("SweepOlderThan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reclaimed, got %d", n)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale file survived sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file removed by sweep")
	}
}

func TestSweepMissingDir(t *testing.T) {
	n, err := SweepOlderThan(filepath.Join(t.TempDir(), "nope"), time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("expected no-op for missing dir, got n=%d err=%v", n, err)
	}
}
