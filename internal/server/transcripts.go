package server

import (
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/quanghia/lectura/internal/fetcher"
	"github.com/quanghia/lectura/internal/transcribe"
)

// TranscriptsHandler serves the lecture transcription API. Each request
// runs the fetch -> transcribe -> reclaim pipeline; the scratch artifact
// is removed on success and failure paths alike.
type TranscriptsHandler struct {
	Fetcher *fetcher.Fetcher
	Engine  *transcribe.Engine
	Cache   *transcribe.Cache
}

func (h *TranscriptsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("/health", h.health)
}

func (h *TranscriptsHandler) create(c echo.Context) error {
	var req CreateTranscriptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.VideoURL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "video_url required")
	}
	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = transcribe.DefaultLanguage
	}
	ctx := c.Request().Context()
	start := time.Now()

	if text, ok, err := h.Cache.Get(ctx, req.VideoURL, language); err != nil {
		log.Printf("[STT] transcript cache read failed: %v", err)
	} else if ok {
		return c.JSON(http.StatusOK, TranscriptResponse{
			Transcript: text,
			Language:   language,
			Cached:     true,
			DurationMS: time.Since(start).Milliseconds(),
		})
	}

	path, err := h.Fetcher.Fetch(ctx, req.VideoURL, req.FilenameHint)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	defer func() {
		if err := fetcher.Reclaim(path); err != nil {
			log.Printf("[STT] reclaim %s failed: %v", path, err)
		}
	}()

	text, err := h.Engine.Transcribe(ctx, path, language)
	if err != nil {
		if errors.Is(err, transcribe.ErrUnsupportedLanguage) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.Cache.Put(ctx, req.VideoURL, language, text); err != nil {
		log.Printf("[STT] transcript cache write failed: %v", err)
	}

	return c.JSON(http.StatusOK, TranscriptResponse{
		Transcript: text,
		Language:   language,
		Cached:     false,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

func (h *TranscriptsHandler) health(c echo.Context) error {
	if _, err := os.Stat(h.Fetcher.Dir); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"languages": h.Engine.Languages(),
		"cache":     h.Cache != nil,
	})
}
