package sim

import (
	"errors"
	"sync"
	"time"

	"blink-crossfade/internal/audio"
)

// ErrStopped is returned when stopping a unit that is not playing.
var ErrStopped = errors.New("unit not playing")

// Buffer is a silent decoded buffer of a fixed length.
type Buffer struct {
	Name   string
	Length time.Duration
}

// Duration implements audio.Buffer.
func (b *Buffer) Duration() time.Duration {
	return b.Length
}

// AudioGraph is an in-memory audio.Output. Its clock is the monotonic time
// since the graph was created.
type AudioGraph struct {
	start time.Time
	now   func() time.Duration

	mu    sync.Mutex
	units []*Unit
}

// NewAudioGraph returns a graph clocked from the wall clock's monotonic reading.
func NewAudioGraph() *AudioGraph {
	g := &AudioGraph{start: time.Now()}
	g.now = func() time.Duration { return time.Since(g.start) }
	return g
}

// NewAudioGraphWithClock returns a graph driven by clock, useful for tests.
func NewAudioGraphWithClock(clock func() time.Duration) *AudioGraph {
	return &AudioGraph{start: time.Now(), now: clock}
}

// Now implements audio.Output.
func (g *AudioGraph) Now() time.Duration {
	return g.now()
}

// NewGain implements audio.Output.
func (g *AudioGraph) NewGain() (audio.Gain, error) {
	return &Gain{}, nil
}

// NewUnit implements audio.Output.
func (g *AudioGraph) NewUnit(buf audio.Buffer, loop audio.LoopWindow, gain audio.Gain) (audio.Unit, error) {
	gn, _ := gain.(*Gain)
	u := &Unit{graph: g, buf: buf, loop: loop, gain: gn}
	g.mu.Lock()
	g.units = append(g.units, u)
	g.mu.Unlock()
	return u, nil
}

// Playing returns the units currently playing.
func (g *AudioGraph) Playing() []*Unit {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Unit, 0, 2)
	for _, u := range g.units {
		if u.playing {
			out = append(out, u)
		}
	}
	return out
}

// Connected returns the number of units not yet released.
func (g *AudioGraph) Connected() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, u := range g.units {
		if !u.released {
			n++
		}
	}
	return n
}

// Unit is an in-memory audio.Unit.
type Unit struct {
	graph *AudioGraph
	buf   audio.Buffer
	loop  audio.LoopWindow
	gain  *Gain

	playing  bool
	released bool
	startAt  time.Duration
	offset   time.Duration
}

// Start implements audio.Unit.
func (u *Unit) Start(at, offset time.Duration) error {
	u.graph.mu.Lock()
	defer u.graph.mu.Unlock()
	u.playing = true
	u.startAt = at
	u.offset = offset
	return nil
}

// Stop implements audio.Unit.
func (u *Unit) Stop() error {
	u.graph.mu.Lock()
	defer u.graph.mu.Unlock()
	if !u.playing {
		return ErrStopped
	}
	u.playing = false
	return nil
}

// Release implements audio.Unit.
func (u *Unit) Release() {
	u.graph.mu.Lock()
	u.released = true
	u.graph.mu.Unlock()
}

// Position returns the playhead within the loop window at clock time at.
func (u *Unit) Position(at time.Duration) time.Duration {
	span := u.loop.End - u.loop.Start
	if span <= 0 {
		return u.loop.Start
	}
	elapsed := at - u.startAt
	if elapsed < 0 {
		elapsed = 0
	}
	return u.loop.Start + (u.offset-u.loop.Start+elapsed)%span
}

// Gain returns the unit's gain control, or nil if it was not built by this package.
func (u *Unit) Gain() *Gain {
	return u.gain
}

// Gain is an in-memory audio.Gain holding a single linear segment
// from (fromAt, from) to (toAt, to).
type Gain struct {
	mu     sync.Mutex
	from   float64
	fromAt time.Duration
	to     float64
	toAt   time.Duration
}

// SetValueAt implements audio.Gain.
func (g *Gain) SetValueAt(v float64, at time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.from, g.fromAt = v, at
	g.to, g.toAt = v, at
}

// CancelAndHold implements audio.Gain.
func (g *Gain) CancelAndHold(at time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.valueLocked(at)
	g.from, g.fromAt = v, at
	g.to, g.toAt = v, at
}

// LinearRampTo implements audio.Gain. The ramp starts from the last scheduled point.
func (g *Gain) LinearRampTo(v float64, end time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.from, g.fromAt = g.to, g.toAt
	g.to, g.toAt = v, end
}

// Value returns the gain at clock time at.
func (g *Gain) Value(at time.Duration) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.valueLocked(at)
}

func (g *Gain) valueLocked(at time.Duration) float64 {
	switch {
	case at <= g.fromAt:
		return g.from
	case at >= g.toAt:
		return g.to
	}
	frac := float64(at-g.fromAt) / float64(g.toAt-g.fromAt)
	return g.from + (g.to-g.from)*frac
}
