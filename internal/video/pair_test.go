package video

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"blink-crossfade/internal/catalog"
)

type fakeSurface struct {
	source   string
	loads    []uint64
	playing  bool
	visible  bool
	layer    int
	bindErr  error
	loadErr  error
	binds    int
	playCall int
}

func (s *fakeSurface) Bind(source string) error {
	if s.bindErr != nil {
		return s.bindErr
	}
	s.binds++
	s.source = source
	return nil
}

func (s *fakeSurface) Load(gen uint64) error {
	if s.loadErr != nil {
		return s.loadErr
	}
	s.loads = append(s.loads, gen)
	return nil
}

func (s *fakeSurface) Play() error {
	s.playCall++
	s.playing = true
	return nil
}

func (s *fakeSurface) Stop() error {
	s.playing = false
	return nil
}

func (s *fakeSurface) SetVisible(v bool) error {
	s.visible = v
	return nil
}

func (s *fakeSurface) SetLayer(z int) error {
	s.layer = z
	return nil
}

func newTestPair(t *testing.T) (*Pair, *fakeSurface, *fakeSurface) {
	t.Helper()
	s1, s2 := &fakeSurface{}, &fakeSurface{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := NewPair(s1, s2, log)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	return p, s1, s2
}

func TestNewPair(t *testing.T) {
	p, s1, s2 := newTestPair(t)
	if p.Active() != Surface1 {
		t.Errorf("expected surface 1 active, got %d", p.Active())
	}
	if !s1.visible || s1.layer != layerFront {
		t.Error("surface 1 should start in front")
	}
	if s2.visible || s2.layer != layerBack {
		t.Error("surface 2 should start hidden")
	}
	if p.State() != StateIdle {
		t.Errorf("expected idle, got %s", p.State())
	}
	if p.Showing() != catalog.NoClip {
		t.Errorf("expected nothing showing, got %d", p.Showing())
	}
}

func TestNewPair_missing_surface(t *testing.T) {
	if _, err := NewPair(&fakeSurface{}, nil, nil); !errors.Is(err, ErrNoSurface) {
		t.Errorf("expected ErrNoSurface, got %v", err)
	}
}

func TestPair_SwapTo_loads_hidden_surface(t *testing.T) {
	p, s1, s2 := newTestPair(t)

	gen, err := p.SwapTo(3, "videos/3.mp4")
	if err != nil {
		t.Fatalf("SwapTo: %v", err)
	}
	if s2.source != "videos/3.mp4" || len(s2.loads) != 1 || s2.loads[0] != gen {
		t.Errorf("surface 2 should be bound and loading gen %d: %+v", gen, s2)
	}
	if s1.binds != 0 {
		t.Error("visible surface must not be rebound")
	}
	if p.Active() != Surface1 || !s1.visible {
		t.Error("previous surface stays visible until load completes")
	}
	if p.State() != StateLoading {
		t.Errorf("expected loading, got %s", p.State())
	}

	if !p.HandleLoaded(Loaded{Surface: Surface2, Gen: gen}) {
		t.Fatal("completion should be applied")
	}
	if p.Active() != Surface2 {
		t.Errorf("expected surface 2 active, got %d", p.Active())
	}
	if !s2.playing || !s2.visible || s2.layer != layerFront {
		t.Errorf("loaded surface should play in front: %+v", s2)
	}
	if s1.visible || s1.layer != layerBack || s1.playing {
		t.Errorf("previous surface should be hidden behind: %+v", s1)
	}
	if p.State() != StateShowing || p.Showing() != 3 {
		t.Errorf("expected showing clip 3, got %s %d", p.State(), p.Showing())
	}
}

func TestPair_SwapTo_alternates_surfaces(t *testing.T) {
	p, s1, _ := newTestPair(t)

	g1, _ := p.SwapTo(1, "a")
	p.HandleLoaded(Loaded{Surface: Surface2, Gen: g1})
	g2, _ := p.SwapTo(2, "b")
	if s1.source != "b" {
		t.Errorf("second swap should target surface 1, got source %q", s1.source)
	}
	p.HandleLoaded(Loaded{Surface: Surface1, Gen: g2})
	if p.Active() != Surface1 || p.Showing() != 2 {
		t.Errorf("expected surface 1 showing clip 2, got %d/%d", p.Active(), p.Showing())
	}
}

// Rapid retrigger: B is requested before A finishes loading and A's
// completion arrives last. Last-issued-wins keeps B on screen.
func TestPair_rapid_swaps_last_issued_wins(t *testing.T) {
	p, _, s2 := newTestPair(t)

	genA, _ := p.SwapTo(1, "clipA")
	genB, _ := p.SwapTo(2, "clipB")

	if !p.HandleLoaded(Loaded{Surface: Surface2, Gen: genB}) {
		t.Fatal("B completion should apply")
	}
	if p.HandleLoaded(Loaded{Surface: Surface2, Gen: genA}) {
		t.Error("late A completion should be ignored")
	}

	if p.Active() != Surface2 || s2.source != "clipB" || p.Showing() != 2 {
		t.Errorf("expected clip B visible, got surface %d source %q clip %d", p.Active(), s2.source, p.Showing())
	}
	if s2.playCall != 1 {
		t.Errorf("stale completion must not replay the surface, got %d plays", s2.playCall)
	}
}

func TestPair_rapid_swaps_stale_completion_first(t *testing.T) {
	p, _, s2 := newTestPair(t)

	genA, _ := p.SwapTo(1, "clipA")
	genB, _ := p.SwapTo(2, "clipB")

	if p.HandleLoaded(Loaded{Surface: Surface2, Gen: genA}) {
		t.Error("superseded completion should be ignored")
	}
	if p.Active() != Surface1 {
		t.Error("previous surface should stay visible while B loads")
	}
	p.HandleLoaded(Loaded{Surface: Surface2, Gen: genB})
	if p.Active() != Surface2 || s2.source != "clipB" {
		t.Errorf("expected clip B visible, got %d %q", p.Active(), s2.source)
	}
}

func TestPair_stale_completion_after_flip(t *testing.T) {
	p, s1, _ := newTestPair(t)

	genA, _ := p.SwapTo(1, "clipA")
	genB, _ := p.SwapTo(2, "clipB")
	p.HandleLoaded(Loaded{Surface: Surface2, Gen: genB})
	genC, _ := p.SwapTo(3, "clipC")

	if p.HandleLoaded(Loaded{Surface: Surface2, Gen: genA}) {
		t.Error("completion older than the shown generation should be ignored")
	}
	if p.HandleLoaded(Loaded{Surface: Surface2, Gen: genB}) {
		t.Error("duplicate completion should be ignored")
	}
	if !p.HandleLoaded(Loaded{Surface: Surface1, Gen: genC}) {
		t.Fatal("C completion should apply")
	}
	if p.Active() != Surface1 || s1.source != "clipC" {
		t.Errorf("expected clip C on surface 1, got %d %q", p.Active(), s1.source)
	}
}

func TestPair_SwapTo_errors(t *testing.T) {
	p, _, s2 := newTestPair(t)

	s2.bindErr = errors.New("no such asset")
	if _, err := p.SwapTo(1, "missing"); err == nil {
		t.Error("expected bind error")
	}
	if p.State() != StateIdle {
		t.Errorf("failed bind should not start a load, got %s", p.State())
	}

	s2.bindErr = nil
	s2.loadErr = errors.New("decoder busy")
	if _, err := p.SwapTo(1, "a"); err == nil {
		t.Error("expected load error")
	}
	if p.Active() != Surface1 {
		t.Error("active surface must not change on failure")
	}
}

func TestPair_SwapTo_load_failure_keeps_state(t *testing.T) {
	p, s1, s2 := newTestPair(t)

	gen, err := p.SwapTo(1, "a")
	if err != nil {
		t.Fatalf("SwapTo: %v", err)
	}
	if !p.HandleLoaded(Loaded{Surface: Surface2, Gen: gen}) {
		t.Fatal("first load should apply")
	}

	// Surface 1 is now hidden; fail the next load there.
	s1.loadErr = errors.New("decoder busy")
	if _, err := p.SwapTo(2, "b"); err == nil {
		t.Fatal("expected load error")
	}
	if p.State() != StateShowing {
		t.Errorf("failed load should leave the pair showing, got %s", p.State())
	}
	if st := p.state(Surface1); st.clip != catalog.NoClip || st.gen != 0 || st.source != "" {
		t.Errorf("hidden surface state should be untouched, got %+v", *st)
	}
	if p.Showing() != 1 || s2.source != "a" {
		t.Errorf("visible clip should still be 1, got %d", p.Showing())
	}

	// Retrying reuses the generation that failed.
	s1.loadErr = nil
	next, err := p.SwapTo(2, "b")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if next != gen+1 {
		t.Errorf("expected generation %d, got %d", gen+1, next)
	}
	if !p.HandleLoaded(Loaded{Surface: Surface1, Gen: next}) || p.Showing() != 2 {
		t.Error("retried load should apply")
	}
}

func TestPair_SwapTo_load_failure_rebinds_previous_source(t *testing.T) {
	p, s1, s2 := newTestPair(t)

	g1, _ := p.SwapTo(1, "a")
	p.HandleLoaded(Loaded{Surface: Surface2, Gen: g1})
	g2, _ := p.SwapTo(2, "b")
	p.HandleLoaded(Loaded{Surface: Surface1, Gen: g2})

	// Surface 2 is hidden and bound to "a".
	s2.loadErr = errors.New("decoder busy")
	if _, err := p.SwapTo(3, "c"); err == nil {
		t.Fatal("expected load error")
	}
	if s2.source != "a" {
		t.Errorf("hidden surface should be rebound to %q, got %q", "a", s2.source)
	}
	if st := p.state(Surface2); st.clip != 1 || st.gen != g1 {
		t.Errorf("hidden surface state should be untouched, got %+v", *st)
	}
	if p.State() != StateShowing || p.Showing() != 2 || s1.source != "b" {
		t.Errorf("visible surface should keep clip 2, got state %s clip %d", p.State(), p.Showing())
	}
}

func TestPair_HandleLoaded_unknown_surface(t *testing.T) {
	p, _, _ := newTestPair(t)
	if p.HandleLoaded(Loaded{Surface: 7, Gen: 1}) {
		t.Error("unknown surface should be ignored")
	}
}
