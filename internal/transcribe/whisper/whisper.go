package whisper

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Config selects the whisper.cpp model and runtime knobs.
type Config struct {
	ModelsDir string
	Model     string // model file name, e.g. "ggml-base.en.bin"
	Threads   uint   // 0 = library default
}

// Model wraps a loaded whisper.cpp model. Loading is expensive (seconds),
// so one Model is constructed per process and shared behind the engine's
// worker pool. The bindings own audio windowing and segment stitching.
type Model struct {
	model   whisper.Model
	threads uint
	logger  *log.Logger
}

// New loads the configured model from disk.
func New(cfg Config) (*Model, error) {
	if cfg.ModelsDir == "" {
		return nil, fmt.Errorf("whisper models dir not configured")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("whisper model not configured")
	}
	logger := log.New(log.Writer(), "[STT] ", log.LstdFlags)

	path := filepath.Join(cfg.ModelsDir, cfg.Model)
	logger.Printf("loading whisper model %s", path)
	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}
	logger.Printf("whisper model loaded (multilingual=%v)", model.IsMultilingual())

	return &Model{model: model, threads: cfg.Threads, logger: logger}, nil
}

// Transcribe decodes the media file to 16 kHz mono samples and runs the
// model over them, returning the stitched transcript.
func (m *Model) Transcribe(ctx context.Context, path, language string) (string, error) {
	samples, err := decodeSamples(path)
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := m.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper context: %w", err)
	}
	if language != "" {
		if err := wctx.SetLanguage(language); err != nil {
			return "", fmt.Errorf("set language %q: %w", language, err)
		}
	}
	if m.threads > 0 {
		wctx.SetThreads(m.threads)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var text strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read segment: %w", err)
		}
		text.WriteString(segment.Text)
	}
	return strings.TrimSpace(text.String()), nil
}

// Close releases the model and its device memory.
func (m *Model) Close() error { return m.model.Close() }
