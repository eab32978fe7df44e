package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultFade is short enough to be inaudible as a click but long enough to
// avoid a discontinuity at the splice.
const DefaultFade = 5 * time.Millisecond

var (
	// ErrNoOutput is returned when the engine is built without an output.
	ErrNoOutput = errors.New("audio output unavailable")

	// ErrNoBuffer is returned when a buffer is missing or has no duration.
	ErrNoBuffer = errors.New("audio buffer unavailable")
)

// Slot names one of the two playback slots.
type Slot int

const (
	SlotA Slot = iota
	SlotB
)

// Other returns the opposite slot.
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

func (s Slot) String() string {
	if s == SlotB {
		return "B"
	}
	return "A"
}

// MarshalText encodes the slot as "A" or "B".
func (s Slot) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "A" or "B".
func (s *Slot) UnmarshalText(b []byte) error {
	switch string(b) {
	case "A":
		*s = SlotA
	case "B":
		*s = SlotB
	default:
		return fmt.Errorf("unknown audio slot %q", b)
	}
	return nil
}

// voice is a unit created by the engine plus its teardown state.
type voice struct {
	id      uint64
	unit    Unit
	stopped bool
}

type slot struct {
	gain  Gain
	voice *voice
}

// Engine keeps two looping playback units so one can be started silently
// while the other is still audible, then swaps them with inverse gain ramps.
//
// Engine is not safe for concurrent use. All calls, including Settle, must
// come from the goroutine that owns the session.
type Engine struct {
	out   Output
	sched Scheduler
	log   *slog.Logger

	slots  [2]slot
	active Slot

	voiceSeq uint64
	gen      uint64
	// pending maps a crossfade generation to the voice that was active when
	// that crossfade was issued. Nil values mean nothing was playing.
	pending map[uint64]*voice
}

// NewEngine creates an engine with two gain controls on out. Fades are
// settled by events delivered through sched.
func NewEngine(out Output, sched Scheduler, log *slog.Logger) (*Engine, error) {
	if out == nil {
		return nil, ErrNoOutput
	}
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		out:     out,
		sched:   sched,
		log:     log,
		active:  SlotA,
		pending: make(map[uint64]*voice),
	}
	for i := range e.slots {
		g, err := out.NewGain()
		if err != nil {
			return nil, fmt.Errorf("create gain %s: %w", Slot(i), err)
		}
		e.slots[i].gain = g
	}

	now := out.Now()
	e.slots[SlotA].gain.SetValueAt(1, now)
	e.slots[SlotB].gain.SetValueAt(0, now)
	return e, nil
}

// Active returns the slot that is, or is becoming, audible.
func (e *Engine) Active() Slot {
	return e.active
}

// Live returns the number of units that have not been torn down.
func (e *Engine) Live() int {
	n := 0
	for _, s := range e.slots {
		if s.voice != nil && !s.voice.stopped {
			n++
		}
	}
	return n
}

// Pending returns the number of crossfades whose fade window has not been settled.
func (e *Engine) Pending() int {
	return len(e.pending)
}

// StartFresh tears down both slots and starts buf looping on the active slot
// at from, with the active gain at 1 and the other at 0 immediately.
func (e *Engine) StartFresh(buf Buffer, from time.Duration) error {
	dur, err := bufferDuration(buf)
	if err != nil {
		return err
	}

	e.teardown(e.slots[SlotA].voice)
	e.teardown(e.slots[SlotB].voice)

	on := &e.slots[e.active]
	off := &e.slots[e.active.Other()]

	v, err := e.newVoice(buf, dur, on.gain)
	if err != nil {
		return err
	}

	now := e.out.Now()
	on.gain.CancelAndHold(now)
	on.gain.SetValueAt(1, now)
	off.gain.CancelAndHold(now)
	off.gain.SetValueAt(0, now)

	if err := v.unit.Start(now, wrapOffset(from, dur)); err != nil {
		e.teardown(v)
		return fmt.Errorf("start unit: %w", err)
	}
	on.voice = v

	e.log.Debug("audio started",
		slog.String("slot", e.active.String()),
		slog.Duration("offset", wrapOffset(from, dur)))
	return nil
}

// CrossfadeTo starts buf in the inactive slot at target (taken modulo the
// buffer duration) and ramps the two gains in opposite directions over fade,
// both ramps starting at the same clock instant. The active flag moves to
// the new slot immediately; the unit that was active at call time is torn
// down when the FadeElapsed event for the returned generation is settled.
// A non-positive fade uses DefaultFade.
func (e *Engine) CrossfadeTo(buf Buffer, target, fade time.Duration) (uint64, error) {
	dur, err := bufferDuration(buf)
	if err != nil {
		return 0, err
	}
	if fade <= 0 {
		fade = DefaultFade
	}

	from := e.active
	to := from.Other()
	out := &e.slots[from]
	in := &e.slots[to]

	// The incoming slot may still hold a unit fading out from an earlier
	// crossfade. It shares this slot's gain, so it must go before the ramp up.
	e.teardown(in.voice)

	v, err := e.newVoice(buf, dur, in.gain)
	if err != nil {
		return 0, err
	}

	now := e.out.Now()
	end := now + fade
	in.gain.CancelAndHold(now)
	in.gain.SetValueAt(0, now)
	out.gain.CancelAndHold(now)

	offset := wrapOffset(target, dur)
	if err := v.unit.Start(now, offset); err != nil {
		e.teardown(v)
		// Restore the held gain so the current unit stays audible.
		out.gain.SetValueAt(1, now)
		return 0, fmt.Errorf("start unit: %w", err)
	}

	out.gain.LinearRampTo(0, end)
	in.gain.LinearRampTo(1, end)

	in.voice = v
	e.active = to

	e.gen++
	gen := e.gen
	e.pending[gen] = out.voice
	if e.sched != nil {
		e.sched.Schedule(fade, FadeElapsed{Gen: gen})
	}

	e.log.Debug("audio crossfade",
		slog.Uint64("gen", gen),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Duration("offset", offset),
		slog.Duration("fade", fade))
	return gen, nil
}

// Settle tears down the unit captured by the crossfade tagged ev.Gen.
// Unknown generations and units already torn down are ignored.
func (e *Engine) Settle(ev FadeElapsed) {
	v, ok := e.pending[ev.Gen]
	if !ok {
		return
	}
	delete(e.pending, ev.Gen)
	e.teardown(v)
}

// Close tears down every unit. Pending fades become no-ops.
func (e *Engine) Close() {
	e.teardown(e.slots[SlotA].voice)
	e.teardown(e.slots[SlotB].voice)
}

func (e *Engine) newVoice(buf Buffer, dur time.Duration, g Gain) (*voice, error) {
	u, err := e.out.NewUnit(buf, LoopWindow{Start: 0, End: dur}, g)
	if err != nil {
		return nil, fmt.Errorf("create unit: %w", err)
	}
	e.voiceSeq++
	return &voice{id: e.voiceSeq, unit: u}, nil
}

// teardown stops and releases v once. Stop errors are not surfaced.
func (e *Engine) teardown(v *voice) {
	if v == nil || v.stopped {
		return
	}
	v.stopped = true
	if err := v.unit.Stop(); err != nil {
		e.log.Debug("audio unit stop", slog.Uint64("voice", v.id), slog.String("error", err.Error()))
	}
	v.unit.Release()

	for i := range e.slots {
		if e.slots[i].voice == v {
			e.slots[i].voice = nil
		}
	}
}

func bufferDuration(buf Buffer) (time.Duration, error) {
	if buf == nil {
		return 0, ErrNoBuffer
	}
	dur := buf.Duration()
	if dur <= 0 {
		return 0, fmt.Errorf("%w: duration %v", ErrNoBuffer, dur)
	}
	return dur, nil
}

// wrapOffset maps any offset onto [0, dur).
func wrapOffset(offset, dur time.Duration) time.Duration {
	if dur <= 0 {
		return 0
	}
	r := offset % dur
	if r < 0 {
		r += dur
	}
	return r
}
