package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blink-crossfade/internal/audio"
	"blink-crossfade/internal/catalog"
	"blink-crossfade/internal/orchestrator"
	"blink-crossfade/internal/platform/config"
	"blink-crossfade/internal/platform/logger"
	"blink-crossfade/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	jumpEvery := config.GetEnvInt("JUMP_EVERY", 0)
	seed := config.GetEnvUint64("SEED", 0)
	defaults := orchestrator.SessionConfig{
		CatalogSize:      config.GetEnvInt("CATALOG_SIZE", orchestrator.DefaultCatalogSize),
		ClipPattern:      config.GetEnv("CLIP_PATTERN", catalog.DefaultPattern),
		AudioName:        config.GetEnv("AUDIO_NAME", orchestrator.DefaultAudioName),
		AudioDuration:    config.GetEnvMillis("AUDIO_DURATION_MS", orchestrator.DefaultAudioDuration),
		Fade:             config.GetEnvMillis("AUDIO_FADE_MS", audio.DefaultFade),
		VideoLoadLatency: config.GetEnvMillis("VIDEO_LOAD_LATENCY_MS", orchestrator.DefaultVideoLoadLatency),
		JumpEvery:        &jumpEvery,
		Seed:             &seed,
	}

	log := logger.New(logLevel, logFormat)

	met := metrics.New()
	repo := orchestrator.NewInMemoryRepository()
	svc := orchestrator.NewService(repo, defaults, met, log)
	h := orchestrator.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(svc.ActiveSessionCount()) }).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"catalog_size", defaults.CatalogSize,
		"audio_duration", defaults.AudioDuration,
		"fade", defaults.Fade,
		"jump_every", jumpEvery,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	svc.Close()

	log.Info("server stopped")
}
