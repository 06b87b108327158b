package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/quanghia/lectura/config"
	"github.com/quanghia/lectura/internal/fetcher"
	"github.com/quanghia/lectura/internal/store"
	"github.com/quanghia/lectura/internal/transcribe"
	"github.com/quanghia/lectura/internal/transcribe/whisper"
	"github.com/quanghia/lectura/provider"
)

// newEcho builds an echo instance with the shared middleware stack:
// recovery, CORS, a unified JSON error envelope, and /metrics.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))
	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

// RunChat starts the chat message API.
func RunChat(cfg *config.Config) error {
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return err
	}
	if err := cfg.Responder.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	responder, err := provider.NewResponder(provider.OpenAI, cfg.Responder)
	if err != nil {
		return err
	}

	e := newEcho()
	ch := &ChatHandler{Store: st, Responder: responder, ContextWindow: defaultContextWindow}
	ch.Register(e.Group("/api/chat"))

	addr := cfg.General.ChatListen
	log.Printf("[CHAT] listening on %s", addr)
	return e.Start(addr)
}

// RunTranscriber starts the lecture transcription API.
func RunTranscriber(cfg *config.Config) error {
	if err := cfg.Transcriber.Validate(); err != nil {
		return err
	}

	f, err := fetcher.New(cfg.Fetcher.Dir, cfg.Fetcher.Timeout)
	if err != nil {
		return err
	}
	model, err := whisper.New(whisper.Config{
		ModelsDir: cfg.Transcriber.ModelsDir,
		Model:     cfg.Transcriber.Model,
		Threads:   cfg.Transcriber.Threads,
	})
	if err != nil {
		return err
	}
	engine := transcribe.NewEngine(model, cfg.Transcriber.PoolSize, cfg.Transcriber.Languages)
	defer engine.Close()

	var cache *transcribe.Cache
	var rdb *redis.Client
	if cfg.Storage.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:        cfg.Storage.Redis.Addr(),
			Password:    cfg.Storage.Redis.Password,
			DB:          cfg.Storage.Redis.DB,
			DialTimeout: cfg.Storage.Redis.Timeout,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
		cache = transcribe.NewCache(rdb, cfg.Transcriber.CacheTTL)
	}

	janitor := &Janitor{
		Dir:      cfg.Fetcher.Dir,
		MaxAge:   cfg.Transcriber.SweepMaxAge,
		CronSpec: cfg.Transcriber.SweepCron,
		Rdb:      rdb,
		Stop:     make(chan struct{}),
	}
	janitor.Start()
	defer close(janitor.Stop)

	e := newEcho()
	th := &TranscriptsHandler{Fetcher: f, Engine: engine, Cache: cache}
	th.Register(e.Group("/api/transcripts"))

	addr := cfg.General.TranscriberListen
	log.Printf("[STT] listening on %s", addr)
	return e.Start(addr)
}

const defaultContextWindow = 10

// shortTimeout bounds health probes so a wedged dependency cannot hang
// the endpoint.
func shortTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*time.Second)
}
