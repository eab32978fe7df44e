package sim

import (
	"errors"
	"sync"
	"time"

	"blink-crossfade/internal/video"
)

// ErrNoSource is returned when loading a surface that was never bound.
var ErrNoSource = errors.New("surface has no source")

// Surface is an in-memory video.Surface. Load completes after a fixed
// latency and reports through the sink passed to NewSurfaces.
type Surface struct {
	id      video.SurfaceID
	latency time.Duration
	sink    func(video.Loaded)

	mu      sync.Mutex
	source  string
	playing bool
	visible bool
	layer   int
}

// NewSurfaces returns the two surfaces of a pair. sink is called from a
// timer goroutine; it must hand the event to the pair owner rather than
// touch the pair directly.
func NewSurfaces(latency time.Duration, sink func(video.Loaded)) (*Surface, *Surface) {
	return &Surface{id: video.Surface1, latency: latency, sink: sink},
		&Surface{id: video.Surface2, latency: latency, sink: sink}
}

// Bind implements video.Surface.
func (s *Surface) Bind(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	s.playing = false
	return nil
}

// Load implements video.Surface.
func (s *Surface) Load(gen uint64) error {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()
	if src == "" {
		return ErrNoSource
	}

	ev := video.Loaded{Surface: s.id, Gen: gen}
	time.AfterFunc(s.latency, func() { s.sink(ev) })
	return nil
}

// Play implements video.Surface.
func (s *Surface) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	return nil
}

// Stop implements video.Surface.
func (s *Surface) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	return nil
}

// SetVisible implements video.Surface.
func (s *Surface) SetVisible(visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
	return nil
}

// SetLayer implements video.Surface.
func (s *Surface) SetLayer(z int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layer = z
	return nil
}

// Source returns the bound source.
func (s *Surface) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Visible reports whether the surface is shown and playing.
func (s *Surface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible && s.playing
}
