package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"blink-crossfade/internal/audio"
	"blink-crossfade/internal/catalog"
	"blink-crossfade/internal/timing"
	"blink-crossfade/internal/video"
)

// ErrSessionClosed is returned by requests to a session that has been closed.
var ErrSessionClosed = errors.New("session closed")

const inboxSize = 64

// Primitives supplies the external audio and video resources of a session.
// Each may fail independently; the session then runs without that modality.
type Primitives interface {
	AudioOutput() (audio.Output, error)
	AudioBuffer() (audio.Buffer, error)
	// VideoSurfaces returns the two surfaces of the pair. Load completions
	// must be reported through sink.
	VideoSurfaces(sink func(video.Loaded)) (video.Surface, video.Surface, error)
}

// Inbox messages. Requests carry a buffered reply channel so the loop never
// blocks on a caller that gave up.
type (
	triggerMsg struct {
		action AudioAction
		reply  chan triggerResult
	}
	triggerResult struct {
		snap Snapshot
		err  error
	}
	tickMsg struct {
		ts    time.Duration
		reply chan timing.Stats
	}
	snapshotMsg struct {
		reply chan Snapshot
	}
	statsMsg struct {
		reply chan timing.Stats
	}
)

// Session is one playback context: a catalog, a video pair, an audio
// engine, the orchestrator deciding between them, and the timing tracker.
//
// All state is owned by the goroutine running Run. Triggers, ticks, reads
// and asynchronous completions (video.Loaded, audio.FadeElapsed) arrive as
// messages on one inbox and are handled strictly one at a time.
type Session struct {
	id     SessionID
	cfg    SessionConfig
	log    *slog.Logger
	rec    Recorder
	policy Policy

	orch   *Orchestrator
	pair   *video.Pair
	engine *audio.Engine
	stats  timing.Stats
	seen   uint64

	inbox     chan any
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wires a session from prims. Missing primitives are logged and
// leave the session running with the remaining modality. rec may be nil.
func NewSession(id SessionID, cfg SessionConfig, cat *catalog.Catalog, prims Primitives, rec Recorder, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		id:     id,
		cfg:    cfg,
		log:    log,
		rec:    rec,
		policy: PolicyFor(cfg.jumpEvery()),
		inbox:  make(chan any, inboxSize),
		done:   make(chan struct{}),
	}

	var ch Channels
	if a, b, err := prims.VideoSurfaces(s.deliverLoaded); err != nil {
		log.Warn("video unavailable", slog.String("error", err.Error()))
	} else if pair, err := video.NewPair(a, b, log); err != nil {
		log.Warn("video unavailable", slog.String("error", err.Error()))
	} else {
		s.pair = pair
		ch.Video = pair
	}

	if out, err := prims.AudioOutput(); err != nil {
		log.Warn("audio unavailable", slog.String("error", err.Error()))
	} else if engine, err := audio.NewEngine(out, s, log); err != nil {
		log.Warn("audio unavailable", slog.String("error", err.Error()))
	} else {
		s.engine = engine
		ch.Audio = engine
	}

	if buf, err := prims.AudioBuffer(); err != nil {
		log.Warn("audio buffer unavailable", slog.String("error", err.Error()))
	} else {
		ch.Buffer = buf
	}

	s.orch = NewOrchestrator(cat, ch, cfg.Fade, newRand(cfg.seed()), log)
	if rec != nil {
		s.orch.SetRecorder(rec)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() SessionID {
	return s.id
}

// SetPolicy replaces the policy used for triggers without an explicit action.
// It must be called before Run.
func (s *Session) SetPolicy(p Policy) {
	s.policy = p
}

// Run processes the inbox until ctx is cancelled or Close is called, then
// tears down any playing audio.
func (s *Session) Run(ctx context.Context) {
	defer func() {
		if s.engine != nil {
			s.engine.Close()
		}
		s.log.Debug("session loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case msg := <-s.inbox:
			s.dispatch(msg)
		}
	}
}

// Close stops the session. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Trigger handles one detected blink. ActionAuto defers to the session policy.
func (s *Session) Trigger(ctx context.Context, action AudioAction) (Snapshot, error) {
	reply := make(chan triggerResult, 1)
	res, err := call(ctx, s, triggerMsg{action: action, reply: reply}, reply)
	if err != nil {
		return Snapshot{}, err
	}
	return res.snap, res.err
}

// Tick feeds a render-loop timestamp into the timing tracker.
func (s *Session) Tick(ctx context.Context, ts time.Duration) (timing.Stats, error) {
	reply := make(chan timing.Stats, 1)
	return call(ctx, s, tickMsg{ts: ts, reply: reply}, reply)
}

// Snapshot returns the current playback state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	return call(ctx, s, snapshotMsg{reply: reply}, reply)
}

// Stats returns the current timing statistics.
func (s *Session) Stats(ctx context.Context) (timing.Stats, error) {
	reply := make(chan timing.Stats, 1)
	return call(ctx, s, statsMsg{reply: reply}, reply)
}

// Schedule implements audio.Scheduler by posting ev back to the inbox.
func (s *Session) Schedule(after time.Duration, ev audio.FadeElapsed) {
	time.AfterFunc(after, func() { s.post(ev) })
}

func (s *Session) deliverLoaded(ev video.Loaded) {
	s.post(ev)
}

// post enqueues a completion, dropping it once the session is closed.
func (s *Session) post(msg any) {
	select {
	case s.inbox <- msg:
	case <-s.done:
	}
}

func (s *Session) dispatch(msg any) {
	switch m := msg.(type) {
	case triggerMsg:
		snap, err := s.handleTrigger(m.action)
		m.reply <- triggerResult{snap: snap, err: err}
	case tickMsg:
		s.stats = timing.Update(s.stats, m.ts)
		m.reply <- s.stats
	case snapshotMsg:
		m.reply <- s.snapshot()
	case statsMsg:
		m.reply <- s.stats
	case video.Loaded:
		if s.pair != nil && s.pair.HandleLoaded(m) && s.rec != nil {
			s.rec.IncVideoSwaps()
		}
	case audio.FadeElapsed:
		if s.engine != nil {
			s.engine.Settle(m)
		}
	default:
		s.log.Error("unknown session message", slog.Any("message", msg))
	}
}

func (s *Session) handleTrigger(action AudioAction) (Snapshot, error) {
	s.seen++
	ev := TriggerEvent{Ordinal: s.seen}
	if action == ActionAuto {
		action = s.policy.Decide(ev, s.orch.AudioStarted())
	}

	snap, err := s.orch.HandleTrigger(ev, action)
	snap.SessionID = s.id
	return snap, err
}

func (s *Session) snapshot() Snapshot {
	snap := s.orch.Snapshot()
	snap.SessionID = s.id
	return snap
}

// call sends msg to the loop and waits for its reply.
func call[T any](ctx context.Context, s *Session, msg any, reply <-chan T) (T, error) {
	var zero T
	select {
	case s.inbox <- msg:
	case <-s.done:
		return zero, ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-reply:
		return r, nil
	case <-s.done:
		return zero, ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
