package audio

import "time"

// Buffer is a decoded audio buffer with a known duration.
type Buffer interface {
	Duration() time.Duration
}

// LoopWindow is the region a Unit repeats while playing.
type LoopWindow struct {
	Start time.Duration
	End   time.Duration
}

// Gain is a per-slot gain control whose automation is scheduled against the
// output's monotonic clock (Output.Now).
type Gain interface {
	// SetValueAt jumps to v at time at.
	SetValueAt(v float64, at time.Duration)
	// CancelAndHold drops automation after at and holds the value reached at at.
	CancelAndHold(at time.Duration)
	// LinearRampTo ramps linearly from the last scheduled value to v, reaching it at end.
	LinearRampTo(v float64, end time.Duration)
}

// Unit is a single playback unit bound to one buffer.
type Unit interface {
	// Start begins looping playback at clock time at from offset within the buffer.
	Start(at, offset time.Duration) error
	// Stop halts playback. Implementations may return an error when the unit
	// was already stopped; the engine treats that as a no-op.
	Stop() error
	// Release disconnects the unit from the output graph.
	Release()
}

// Output is the audio output primitive the engine drives.
type Output interface {
	// Now returns the output's monotonic clock.
	Now() time.Duration
	NewGain() (Gain, error)
	NewUnit(buf Buffer, loop LoopWindow, gain Gain) (Unit, error)
}

// FadeElapsed is delivered once the fade window of the crossfade tagged Gen
// has passed. It carries no reference to the unit to retire; the engine
// resolves that from Gen.
type FadeElapsed struct {
	Gen uint64
}

// Scheduler delivers ev back to the engine owner after the given delay.
type Scheduler interface {
	Schedule(after time.Duration, ev FadeElapsed)
}
