package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultLanguage is assumed when a request carries no language code.
const DefaultLanguage = "en"

// ErrUnsupportedLanguage marks a language code outside the configured set.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Recognizer converts a local media file into text. Implementations own
// audio decoding, segmentation and stitching; the engine treats them as
// opaque.
type Recognizer interface {
	Transcribe(ctx context.Context, path, language string) (string, error)
	Close() error
}

// TranscriptionError wraps unreadable media, an unsupported language, or
// a model failure.
type TranscriptionError struct {
	Path string
	Err  error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcribe %s: %v", e.Path, e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lectura_transcriptions_total",
		Help: "Transcription jobs by outcome.",
	}, []string{"status"})
	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lectura_transcription_duration_seconds",
		Help:    "Wall time of transcription jobs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// Engine serializes access to a shared recognizer. The underlying model
// holds the compute device, so concurrency is bounded by a fixed number
// of worker slots rather than left to contend.
type Engine struct {
	rec       Recognizer
	slots     chan struct{}
	languages map[string]struct{}
}

// NewEngine wraps a recognizer with poolSize worker slots and the set of
// accepted language codes.
func NewEngine(rec Recognizer, poolSize int, languages []string) *Engine {
	if poolSize <= 0 {
		poolSize = 1
	}
	langs := make(map[string]struct{}, len(languages))
	for _, l := range languages {
		langs[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}
	if len(langs) == 0 {
		langs[DefaultLanguage] = struct{}{}
	}
	return &Engine{
		rec:       rec,
		slots:     make(chan struct{}, poolSize),
		languages: langs,
	}
}

// Transcribe runs the recognizer over a local artifact. It blocks until a
// worker slot is free or ctx is done.
func (e *Engine) Transcribe(ctx context.Context, path, language string) (string, error) {
	if language == "" {
		language = DefaultLanguage
	}
	language = strings.ToLower(language)
	if _, ok := e.languages[language]; !ok {
		return "", &TranscriptionError{Path: path, Err: fmt.Errorf("%w %q", ErrUnsupportedLanguage, language)}
	}

	select {
	case e.slots <- struct{}{}:
		defer func() { <-e.slots }()
	case <-ctx.Done():
		return "", &TranscriptionError{Path: path, Err: ctx.Err()}
	}

	start := time.Now()
	text, err := e.rec.Transcribe(ctx, path, language)
	jobDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		jobsTotal.WithLabelValues("error").Inc()
		return "", &TranscriptionError{Path: path, Err: err}
	}
	jobsTotal.WithLabelValues("ok").Inc()
	return text, nil
}

// Languages returns the accepted language codes, for health reporting.
func (e *Engine) Languages() []string {
	out := make([]string, 0, len(e.languages))
	for l := range e.languages {
		out = append(out, l)
	}
	return out
}

// Close releases the underlying recognizer.
func (e *Engine) Close() error { return e.rec.Close() }
