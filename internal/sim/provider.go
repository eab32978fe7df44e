package sim

import (
	"fmt"
	"time"

	"blink-crossfade/internal/audio"
	"blink-crossfade/internal/video"
)

// Provider hands out simulated primitives for one playback session.
type Provider struct {
	AudioName   string
	AudioLength time.Duration
	LoadLatency time.Duration

	graph    *AudioGraph
	surfaces [2]*Surface
}

// AudioOutput returns the session's audio graph, creating it on first use.
func (p *Provider) AudioOutput() (audio.Output, error) {
	if p.graph == nil {
		p.graph = NewAudioGraph()
	}
	return p.graph, nil
}

// AudioBuffer returns the background track, or audio.ErrNoBuffer when none is configured.
func (p *Provider) AudioBuffer() (audio.Buffer, error) {
	if p.AudioLength <= 0 {
		return nil, fmt.Errorf("%w: %q has no length", audio.ErrNoBuffer, p.AudioName)
	}
	return &Buffer{Name: p.AudioName, Length: p.AudioLength}, nil
}

// VideoSurfaces returns two surfaces whose load completions go to sink.
func (p *Provider) VideoSurfaces(sink func(video.Loaded)) (video.Surface, video.Surface, error) {
	a, b := NewSurfaces(p.LoadLatency, sink)
	p.surfaces = [2]*Surface{a, b}
	return a, b, nil
}

// Graph returns the audio graph built by AudioOutput, or nil.
func (p *Provider) Graph() *AudioGraph {
	return p.graph
}

// Surfaces returns the surfaces built by VideoSurfaces.
func (p *Provider) Surfaces() (*Surface, *Surface) {
	return p.surfaces[0], p.surfaces[1]
}
