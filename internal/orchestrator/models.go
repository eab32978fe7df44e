package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"blink-crossfade/internal/audio"
	"blink-crossfade/internal/catalog"
	"blink-crossfade/internal/timing"
	"blink-crossfade/internal/video"
)

// SessionID uniquely identifies a playback session.
type SessionID string

// AudioAction is what a trigger does to the background audio.
type AudioAction string

const (
	// ActionAuto lets the session's Policy decide.
	ActionAuto  AudioAction = ""
	ActionNone  AudioAction = "none"
	ActionStart AudioAction = "start"
	ActionJump  AudioAction = "jump"
)

// ParseAudioAction accepts "", "none", "start" and "jump" in any case.
func ParseAudioAction(s string) (AudioAction, error) {
	switch a := AudioAction(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAuto, ActionNone, ActionStart, ActionJump:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidAudioAction, s)
	}
}

// TriggerEvent is one detected blink. Ordinal counts every trigger the
// session has seen, starting at 1.
type TriggerEvent struct {
	Ordinal uint64
}

// Snapshot is the public playback state after a trigger.
type Snapshot struct {
	SessionID       SessionID       `json:"session_id,omitempty"`
	Trigger         uint64          `json:"trigger"`
	ActiveSurface   video.SurfaceID `json:"active_surface"`
	VideoState      video.State     `json:"video_state"`
	CurrentClip     *catalog.ClipID `json:"current_clip"`
	ActiveAudioSlot audio.Slot      `json:"active_audio_slot"`
	AudioStarted    bool            `json:"audio_started"`
}

// StatsSnapshot is the timing tracker state as exposed to callers.
type StatsSnapshot struct {
	SessionID       SessionID `json:"session_id,omitempty"`
	Samples         uint64    `json:"samples"`
	LastTimestampMs *float64  `json:"last_timestamp_ms"`
	SmoothedMs      float64   `json:"smoothed_interval_ms"`
	RatePerSecond   float64   `json:"rate_per_second"`
}

func newStatsSnapshot(id SessionID, s timing.Stats) StatsSnapshot {
	out := StatsSnapshot{
		SessionID:     id,
		Samples:       s.Samples,
		SmoothedMs:    millis(s.Smoothed),
		RatePerSecond: s.Rate(),
	}
	if s.HasLast {
		last := millis(s.LastTimestamp)
		out.LastTimestampMs = &last
	}
	return out
}

// SessionConfig describes a playback session. Zero fields take the
// service defaults.
type SessionConfig struct {
	CatalogSize      int
	ClipPattern      string
	AudioName        string
	AudioDuration    time.Duration
	Fade             time.Duration
	VideoLoadLatency time.Duration
	// JumpEvery selects the default policy: 0 means ManualPolicy, K > 0
	// means CadencePolicy{JumpEvery: K}. Nil takes the service default.
	JumpEvery *int
	// Seed makes clip and jump choices reproducible when non-zero.
	// Nil takes the service default.
	Seed *uint64
}

func (c SessionConfig) jumpEvery() int {
	if c.JumpEvery == nil {
		return 0
	}
	return *c.JumpEvery
}

func (c SessionConfig) seed() uint64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
