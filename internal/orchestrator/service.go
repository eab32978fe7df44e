package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"blink-crossfade/internal/audio"
	"blink-crossfade/internal/catalog"
	"blink-crossfade/internal/sim"
	"blink-crossfade/internal/timing"

	"github.com/google/uuid"
)

// Defaults applied when neither the request nor the service config sets a field.
const (
	DefaultCatalogSize      = 5
	DefaultAudioName        = "background"
	DefaultAudioDuration    = 60 * time.Second
	DefaultVideoLoadLatency = 40 * time.Millisecond
)

// Service creates playback sessions and routes detector and render-loop
// signals to them. Sessions run on their own goroutines until ended or
// until the service is closed.
type Service struct {
	repo          Repository
	defaults      SessionConfig
	rec           Recorder
	log           *slog.Logger
	newPrimitives func(SessionConfig) Primitives

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService returns a Service backed by repo. Zero fields of defaults fall
// back to the package defaults. rec may be nil to disable metric recording.
func NewService(repo Repository, defaults SessionConfig, rec Recorder, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		repo:          repo,
		defaults:      mergeConfig(defaults, builtinDefaults()),
		rec:           rec,
		log:           log,
		newPrimitives: simPrimitives,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SetPrimitives replaces the factory used to build session primitives.
func (s *Service) SetPrimitives(f func(SessionConfig) Primitives) {
	s.newPrimitives = f
}

// CreateSession builds and starts a session. Invalid configuration (for
// example a non-positive catalog size) is returned as an error.
func (s *Service) CreateSession(cfg SessionConfig) (SessionID, error) {
	cfg = mergeConfig(cfg, s.defaults)

	cat, err := catalog.New(cfg.CatalogSize, cfg.ClipPattern)
	if err != nil {
		return "", fmt.Errorf("build catalog: %w", err)
	}

	id := SessionID(uuid.NewString())
	log := s.log.With(slog.String("session_id", string(id)))
	sess := NewSession(id, cfg, cat, s.newPrimitives(cfg), s.rec, log)
	if err := s.repo.Add(sess); err != nil {
		sess.Close()
		return "", err
	}
	go sess.Run(s.ctx)

	log.Info("session created",
		slog.Int("catalog_size", cfg.CatalogSize),
		slog.Duration("audio_duration", cfg.AudioDuration),
		slog.Duration("fade", cfg.Fade),
		slog.Int("jump_every", cfg.jumpEvery()))
	return id, nil
}

// Trigger forwards one detector signal to the session.
func (s *Service) Trigger(ctx context.Context, id SessionID, action AudioAction) (Snapshot, error) {
	sess, err := s.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Trigger(ctx, action)
}

// Tick feeds a render-loop timestamp into the session's timing tracker.
func (s *Service) Tick(ctx context.Context, id SessionID, ts time.Duration) (timing.Stats, error) {
	sess, err := s.session(id)
	if err != nil {
		return timing.Stats{}, err
	}
	return sess.Tick(ctx, ts)
}

// Snapshot returns the session's playback state.
func (s *Service) Snapshot(ctx context.Context, id SessionID) (Snapshot, error) {
	sess, err := s.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Snapshot(ctx)
}

// Stats returns the session's timing statistics.
func (s *Service) Stats(ctx context.Context, id SessionID) (timing.Stats, error) {
	sess, err := s.session(id)
	if err != nil {
		return timing.Stats{}, err
	}
	return sess.Stats(ctx)
}

// EndSession stops and forgets a session. Ending an unknown session is a no-op.
func (s *Service) EndSession(id SessionID) {
	sess, ok := s.repo.Remove(id)
	if !ok {
		return
	}
	sess.Close()
	s.log.Info("session ended", slog.String("session_id", string(id)))
}

// ActiveSessionCount returns the number of live sessions.
func (s *Service) ActiveSessionCount() int {
	return s.repo.ActiveSessionCount()
}

// Close ends every session.
func (s *Service) Close() {
	s.cancel()
	for _, sess := range s.repo.List() {
		s.repo.Remove(sess.ID())
		sess.Close()
	}
}

func (s *Service) session(id SessionID) (*Session, error) {
	sess, ok := s.repo.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func builtinDefaults() SessionConfig {
	return SessionConfig{
		CatalogSize:      DefaultCatalogSize,
		ClipPattern:      catalog.DefaultPattern,
		AudioName:        DefaultAudioName,
		AudioDuration:    DefaultAudioDuration,
		Fade:             audio.DefaultFade,
		VideoLoadLatency: DefaultVideoLoadLatency,
	}
}

// mergeConfig fills zero or nil fields of cfg from def. JumpEvery and Seed
// are pointers so an explicit 0 overrides a non-zero default.
func mergeConfig(cfg, def SessionConfig) SessionConfig {
	if cfg.CatalogSize == 0 {
		cfg.CatalogSize = def.CatalogSize
	}
	if cfg.ClipPattern == "" {
		cfg.ClipPattern = def.ClipPattern
	}
	if cfg.AudioName == "" {
		cfg.AudioName = def.AudioName
	}
	if cfg.AudioDuration == 0 {
		cfg.AudioDuration = def.AudioDuration
	}
	if cfg.Fade == 0 {
		cfg.Fade = def.Fade
	}
	if cfg.VideoLoadLatency == 0 {
		cfg.VideoLoadLatency = def.VideoLoadLatency
	}
	if cfg.JumpEvery == nil {
		cfg.JumpEvery = def.JumpEvery
	}
	if cfg.Seed == nil {
		cfg.Seed = def.Seed
	}
	return cfg
}

func simPrimitives(cfg SessionConfig) Primitives {
	return &sim.Provider{
		AudioName:   cfg.AudioName,
		AudioLength: cfg.AudioDuration,
		LoadLatency: cfg.VideoLoadLatency,
	}
}
