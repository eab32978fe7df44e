package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"blink-crossfade/internal/audio"
	"blink-crossfade/internal/catalog"
	"blink-crossfade/internal/video"
)

// ErrInvalidAudioAction is returned when a trigger names an audio action
// that is not valid in the current state: start twice, jump before start,
// or an unknown action. The trigger is rejected and no state changes.
var ErrInvalidAudioAction = errors.New("invalid audio action")

const (
	modalityVideo = "video"
	modalityAudio = "audio"
)

// VideoChannel is the video side of a trigger, implemented by *video.Pair.
type VideoChannel interface {
	SwapTo(clip catalog.ClipID, source string) (uint64, error)
	Active() video.SurfaceID
	State() video.State
}

// AudioChannel is the audio side of a trigger, implemented by *audio.Engine.
type AudioChannel interface {
	StartFresh(buf audio.Buffer, from time.Duration) error
	CrossfadeTo(buf audio.Buffer, target, fade time.Duration) (uint64, error)
	Active() audio.Slot
}

// Recorder receives playback events for metrics. *metrics.Metrics implements it.
type Recorder interface {
	IncVideoSwaps()
	IncCrossfades()
	IncDegraded(modality string)
}

// Channels groups the resources a trigger acts on. Any of them may be nil,
// in which case that modality is skipped and the other keeps working.
type Channels struct {
	Video  VideoChannel
	Audio  AudioChannel
	Buffer audio.Buffer
}

// Orchestrator decides, for every trigger, which clip to show next and what
// to do with the background audio. It holds decision state only; the
// channels own the actual resources.
type Orchestrator struct {
	catalog *catalog.Catalog
	ch      Channels
	fade    time.Duration
	rng     *rand.Rand
	log     *slog.Logger
	rec     Recorder

	current      catalog.ClipID
	audioStarted bool
	trigger      uint64
}

// NewOrchestrator returns an orchestrator with no clip shown and audio silent.
// A non-positive fade uses audio.DefaultFade.
func NewOrchestrator(cat *catalog.Catalog, ch Channels, fade time.Duration, rng *rand.Rand, log *slog.Logger) *Orchestrator {
	if fade <= 0 {
		fade = audio.DefaultFade
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		catalog: cat,
		ch:      ch,
		fade:    fade,
		rng:     rng,
		log:     log,
		current: catalog.NoClip,
	}
}

// SetRecorder attaches r; nil disables recording.
func (o *Orchestrator) SetRecorder(r Recorder) {
	o.rec = r
}

// AudioStarted reports whether background audio has been started.
func (o *Orchestrator) AudioStarted() bool {
	return o.audioStarted
}

// HandleTrigger responds to one trigger. action must be ActionNone,
// ActionStart or ActionJump. An action invalid for the current state is
// rejected with ErrInvalidAudioAction before anything changes. Failures of
// one modality are logged and do not stop the other.
func (o *Orchestrator) HandleTrigger(ev TriggerEvent, action AudioAction) (Snapshot, error) {
	if err := o.validate(action); err != nil {
		o.log.Info("trigger rejected",
			slog.Uint64("trigger", ev.Ordinal),
			slog.String("audio_action", string(action)),
			slog.String("error", err.Error()))
		return o.Snapshot(), err
	}

	o.trigger = ev.Ordinal
	o.swapVideo()

	switch action {
	case ActionStart:
		o.startAudio()
	case ActionJump:
		o.jumpAudio()
	}

	return o.Snapshot(), nil
}

// Snapshot returns the current public state.
func (o *Orchestrator) Snapshot() Snapshot {
	s := Snapshot{
		Trigger:      o.trigger,
		VideoState:   video.StateIdle,
		AudioStarted: o.audioStarted,
	}
	if o.ch.Video != nil {
		s.ActiveSurface = o.ch.Video.Active()
		s.VideoState = o.ch.Video.State()
	}
	if o.ch.Audio != nil {
		s.ActiveAudioSlot = o.ch.Audio.Active()
	}
	if o.current != catalog.NoClip {
		c := o.current
		s.CurrentClip = &c
	}
	return s
}

func (o *Orchestrator) validate(action AudioAction) error {
	switch action {
	case ActionNone:
		return nil
	case ActionStart:
		if o.audioStarted {
			return fmt.Errorf("%w: audio already started", ErrInvalidAudioAction)
		}
		return nil
	case ActionJump:
		if !o.audioStarted {
			return fmt.Errorf("%w: jump before start", ErrInvalidAudioAction)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAudioAction, action)
	}
}

func (o *Orchestrator) swapVideo() {
	if o.ch.Video == nil {
		o.degraded(modalityVideo, video.ErrNoSurface)
		return
	}

	next := o.catalog.PickNext(o.rng, o.current)
	path, _ := o.catalog.Path(next)
	if _, err := o.ch.Video.SwapTo(next, path); err != nil {
		o.degraded(modalityVideo, err)
		return
	}
	o.current = next
}

func (o *Orchestrator) startAudio() {
	if o.ch.Audio == nil {
		o.degraded(modalityAudio, audio.ErrNoOutput)
		return
	}
	if err := o.ch.Audio.StartFresh(o.ch.Buffer, 0); err != nil {
		o.degraded(modalityAudio, err)
		return
	}
	o.audioStarted = true
}

func (o *Orchestrator) jumpAudio() {
	if o.ch.Audio == nil {
		o.degraded(modalityAudio, audio.ErrNoOutput)
		return
	}
	if o.ch.Buffer == nil || o.ch.Buffer.Duration() <= 0 {
		o.degraded(modalityAudio, audio.ErrNoBuffer)
		return
	}

	target := time.Duration(o.rng.Int64N(int64(o.ch.Buffer.Duration())))
	if _, err := o.ch.Audio.CrossfadeTo(o.ch.Buffer, target, o.fade); err != nil {
		o.degraded(modalityAudio, err)
		return
	}
	if o.rec != nil {
		o.rec.IncCrossfades()
	}
}

func (o *Orchestrator) degraded(modality string, err error) {
	o.log.Warn("modality degraded",
		slog.Uint64("trigger", o.trigger),
		slog.String("modality", modality),
		slog.String("error", err.Error()))
	if o.rec != nil {
		o.rec.IncDegraded(modality)
	}
}
