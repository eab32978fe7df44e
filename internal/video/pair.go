package video

import (
	"errors"
	"fmt"
	"log/slog"

	"blink-crossfade/internal/catalog"
)

// ErrNoSurface is returned when a pair is built without both surfaces.
var ErrNoSurface = errors.New("video surface unavailable")

const (
	layerBack  = 0
	layerFront = 1
)

// SurfaceID names one of the two overlapping surfaces.
type SurfaceID int

const (
	Surface1 SurfaceID = 1
	Surface2 SurfaceID = 2
)

// Other returns the opposite surface.
func (id SurfaceID) Other() SurfaceID {
	if id == Surface1 {
		return Surface2
	}
	return Surface1
}

// State is the pair's position in the idle → loading → showing cycle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateShowing State = "showing"
)

// Surface is the video surface primitive. Load is asynchronous; the
// implementation reports completion by delivering Loaded{Gen: gen} to the
// pair's owner.
type Surface interface {
	Bind(source string) error
	Load(gen uint64) error
	Play() error
	Stop() error
	SetVisible(visible bool) error
	SetLayer(z int) error
}

// Loaded reports that the load request tagged Gen finished on Surface.
type Loaded struct {
	Surface SurfaceID
	Gen     uint64
}

type surfaceState struct {
	surface Surface
	clip    catalog.ClipID
	source  string
	loaded  bool
	// gen is the most recent load request issued to this surface.
	gen uint64
}

// Pair swaps between two surfaces so the next clip loads behind the one on
// screen. Overlapping swaps follow last-issued-wins: a completion is applied
// only if it belongs to the newest request for its surface and is newer
// than what is already showing.
//
// Pair is not safe for concurrent use.
type Pair struct {
	log *slog.Logger

	surfaces [2]surfaceState
	active   SurfaceID
	gen      uint64
	shownGen uint64
}

// NewPair puts first in front and second hidden behind it.
func NewPair(first, second Surface, log *slog.Logger) (*Pair, error) {
	if first == nil || second == nil {
		return nil, ErrNoSurface
	}
	if log == nil {
		log = slog.Default()
	}

	p := &Pair{log: log, active: Surface1}
	p.surfaces[0] = surfaceState{surface: first, clip: catalog.NoClip}
	p.surfaces[1] = surfaceState{surface: second, clip: catalog.NoClip}

	p.raise(Surface1)
	p.lower(Surface2)
	return p, nil
}

// Active returns the surface currently on screen.
func (p *Pair) Active() SurfaceID {
	return p.active
}

// State reports whether nothing has been shown yet, a load is outstanding,
// or the newest request is on screen.
func (p *Pair) State() State {
	switch {
	case p.gen == 0:
		return StateIdle
	case p.gen > p.shownGen:
		return StateLoading
	default:
		return StateShowing
	}
}

// Showing returns the clip bound to the visible surface, or NoClip before
// the first swap completes.
func (p *Pair) Showing() catalog.ClipID {
	st := p.state(p.active)
	if !st.loaded {
		return catalog.NoClip
	}
	return st.clip
}

// SwapTo binds the hidden surface to source and starts loading it. The
// visible surface keeps playing until HandleLoaded applies the returned
// generation. On failure the pair is left as it was: no generation is
// consumed and the hidden surface is rebound to its previous source.
func (p *Pair) SwapTo(clip catalog.ClipID, source string) (uint64, error) {
	target := p.active.Other()
	st := p.state(target)

	if err := st.surface.Bind(source); err != nil {
		return 0, fmt.Errorf("bind surface %d: %w", target, err)
	}

	gen := p.gen + 1
	if err := st.surface.Load(gen); err != nil {
		if st.source != "" {
			_ = st.surface.Bind(st.source)
		}
		return 0, fmt.Errorf("load surface %d: %w", target, err)
	}

	p.gen = gen
	st.clip = clip
	st.source = source
	st.loaded = false
	st.gen = gen

	p.log.Debug("video load requested",
		slog.Int("surface", int(target)),
		slog.Int("clip", int(clip)),
		slog.Uint64("gen", gen))
	return gen, nil
}

// HandleLoaded is the load-complete continuation. It reports whether the
// completion was applied; stale completions are ignored.
func (p *Pair) HandleLoaded(ev Loaded) bool {
	if ev.Surface != Surface1 && ev.Surface != Surface2 {
		return false
	}
	st := p.state(ev.Surface)
	if ev.Gen != st.gen || ev.Gen <= p.shownGen {
		p.log.Debug("video load superseded",
			slog.Int("surface", int(ev.Surface)),
			slog.Uint64("gen", ev.Gen),
			slog.Uint64("latest", st.gen))
		return false
	}

	st.loaded = true
	if err := st.surface.Play(); err != nil {
		p.log.Warn("video play failed", slog.Int("surface", int(ev.Surface)), slog.String("error", err.Error()))
	}
	p.raise(ev.Surface)
	p.lower(ev.Surface.Other())

	p.active = ev.Surface
	p.shownGen = ev.Gen

	p.log.Debug("video swapped",
		slog.Int("surface", int(ev.Surface)),
		slog.Int("clip", int(st.clip)),
		slog.Uint64("gen", ev.Gen))
	return true
}

func (p *Pair) state(id SurfaceID) *surfaceState {
	return &p.surfaces[id-1]
}

func (p *Pair) raise(id SurfaceID) {
	s := p.state(id).surface
	if err := s.SetVisible(true); err != nil {
		p.log.Warn("video show failed", slog.Int("surface", int(id)), slog.String("error", err.Error()))
	}
	if err := s.SetLayer(layerFront); err != nil {
		p.log.Warn("video raise failed", slog.Int("surface", int(id)), slog.String("error", err.Error()))
	}
}

// lower hides id and pauses it. Stopping a surface that is not playing is harmless.
func (p *Pair) lower(id SurfaceID) {
	s := p.state(id).surface
	_ = s.SetLayer(layerBack)
	_ = s.SetVisible(false)
	_ = s.Stop()
}
