package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// defaultExt is applied when the URL path carries no usable extension.
const defaultExt = ".mp4"

// FetchError wraps a network, HTTP status, or disk failure during fetch.
// The fetcher never retries; callers choosing to retry wrap the call.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads remote media into a scratch directory. It is
// stateless and safe for concurrent use across distinct artifacts.
type Fetcher struct {
	Dir    string
	Client *http.Client
}

// New creates a Fetcher, creating the scratch directory if missing. The
// timeout bounds total fetch duration per call.
func New(dir string, timeout time.Duration) (*Fetcher, error) {
	if dir == "" {
		dir = "downloads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Fetcher{Dir: dir, Client: &http.Client{Timeout: timeout}}, nil
}

// Fetch streams the resource at url to a local scratch file and returns
// its path. The file name derives from nameHint with whitespace replaced;
// an absent hint falls back to a generated identifier so concurrent
// fetches never collide. On any failure the partial file is removed.
func (f *Fetcher) Fetch(ctx context.Context, url, nameHint string) (string, error) {
	dest := filepath.Join(f.Dir, artifactName(url, nameHint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	// Stream in fixed-size chunks so artifact size is bounded by disk,
	// not process memory.
	buf := make([]byte, 8192)
	_, err = io.CopyBuffer(out, resp.Body, buf)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", &FetchError{URL: url, Err: err}
	}
	return dest, nil
}

// artifactName sanitizes the hint into a safe file name, preserving a
// recognizable extension from the URL path.
func artifactName(url, nameHint string) string {
	ext := strings.ToLower(path.Ext(strings.SplitN(path.Base(url), "?", 2)[0]))
	switch ext {
	case ".mp4", ".mp3", ".wav", ".ogg", ".opus", ".m4a", ".webm", ".mkv", ".mov":
	default:
		ext = defaultExt
	}
	name := strings.Join(strings.Fields(nameHint), "_")
	if name == "" {
		name = uuid.NewString()
	}
	return name + ext
}

// Reclaim deletes a scratch artifact. Calling it on a path that no longer
// exists is a no-op, never an error, so it can run unconditionally on
// success and failure paths alike.
func Reclaim(p string) error {
	err := os.Remove(p)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// SweepOlderThan removes scratch files whose modification time is older
// than age and returns how many were reclaimed. Orphans accumulate when a
// process dies between fetch and reclaim.
func SweepOlderThan(dir string, age time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := time.Now().Add(-age)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
