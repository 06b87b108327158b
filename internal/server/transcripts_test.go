package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/quanghia/lectura/internal/fetcher"
	"github.com/quanghia/lectura/internal/transcribe"
)

type fakeRecognizer struct {
	text  string
	err   error
	paths []string
}

func (f *fakeRecognizer) Transcribe(_ context.Context, path, _ string) (string, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeRecognizer) Close() error { return nil }

func newTranscriptsTest(t *testing.T, rec *fakeRecognizer, origin http.HandlerFunc) (*TranscriptsHandler, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(origin)
	t.Cleanup(srv.Close)
	f, err := fetcher.New(t.TempDir(), 5*time.Second)
	if err != nil {
		t.Fatalf("fetcher: %v", err)
	}
	return &TranscriptsHandler{
		Fetcher: f,
		Engine:  transcribe.NewEngine(rec, 1, []string{"en", "vi"}),
	}, srv
}

func postTranscript(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/transcripts", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCreateTranscriptReclaimsArtifact(t *testing.T) {
	recog := &fakeRecognizer{text: "welcome to lecture one"}
	h, srv := newTranscriptsTest(t, recog, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("fake video bytes"))
	})

	c, rec := postTranscript(`{"video_url":"` + srv.URL + `/lec1.mp4","filename_hint":"lecture one","language":"en"}`)
	if err := h.create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp TranscriptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Transcript != "welcome to lecture one" || resp.Language != "en" || resp.Cached {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(recog.paths) != 1 {
		t.Fatalf("recognizer called %d times", len(recog.paths))
	}
	if _, err := os.Stat(recog.paths[0]); !os.IsNotExist(err) {
		t.Fatalf("artifact %s not reclaimed", recog.paths[0])
	}
}

func TestCreateTranscriptReclaimsOnModelFailure(t *testing.T) {
	recog := &fakeRecognizer{err: errors.New("model exploded")}
	h, srv := newTranscriptsTest(t, recog, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("bytes"))
	})

	c, _ := postTranscript(`{"video_url":"` + srv.URL + `/lec1.mp4"}`)
	err := h.create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %v", err)
	}
	if len(recog.paths) != 1 {
		t.Fatalf("recognizer called %d times", len(recog.paths))
	}
	if _, statErr := os.Stat(recog.paths[0]); !os.IsNotExist(statErr) {
		t.Fatalf("artifact %s not reclaimed after failure", recog.paths[0])
	}
}

func TestCreateTranscriptUnsupportedLanguage(t *testing.T) {
	h, srv := newTranscriptsTest(t, &fakeRecognizer{text: "x"}, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("bytes"))
	})

	c, _ := postTranscript(`{"video_url":"` + srv.URL + `/lec1.mp4","language":"xx"}`)
	err := h.create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %v", err)
	}
}

func TestCreateTranscriptFetchFailure(t *testing.T) {
	recog := &fakeRecognizer{text: "x"}
	h, srv := newTranscriptsTest(t, recog, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	c, _ := postTranscript(`{"video_url":"` + srv.URL + `/gone.mp4"}`)
	err := h.create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadGateway {
		t.Fatalf("want 502, got %v", err)
	}
	if len(recog.paths) != 0 {
		t.Fatal("recognizer must not run when the fetch fails")
	}
}

func TestCreateTranscriptRequiresURL(t *testing.T) {
	h, _ := newTranscriptsTest(t, &fakeRecognizer{}, func(http.ResponseWriter, *http.Request) {})

	c, _ := postTranscript(`{"filename_hint":"lecture"}`)
	err := h.create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %v", err)
	}
}

func TestTranscriptsHealth(t *testing.T) {
	h, _ := newTranscriptsTest(t, &fakeRecognizer{}, func(http.ResponseWriter, *http.Request) {})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/transcripts/health", nil)
	rec := httptest.NewRecorder()
	if err := h.health(e.NewContext(req, rec)); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	h.Fetcher.Dir = "/nonexistent/scratch"
	rec = httptest.NewRecorder()
	if err := h.health(e.NewContext(req, rec)); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
