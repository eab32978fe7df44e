package sim

import (
	"errors"
	"testing"
	"time"

	"blink-crossfade/internal/audio"
	"blink-crossfade/internal/video"
)

func TestGain_linear_ramp(t *testing.T) {
	g := &Gain{}
	g.SetValueAt(1, 0)
	g.CancelAndHold(10 * time.Millisecond)
	g.LinearRampTo(0, 20*time.Millisecond)

	cases := []struct {
		at   time.Duration
		want float64
	}{
		{0, 1},
		{10 * time.Millisecond, 1},
		{15 * time.Millisecond, 0.5},
		{20 * time.Millisecond, 0},
		{time.Second, 0},
	}
	for _, tc := range cases {
		if got := g.Value(tc.at); got != tc.want {
			t.Errorf("Value(%v): want %v, got %v", tc.at, tc.want, got)
		}
	}
}

func TestGain_cancel_and_hold_mid_ramp(t *testing.T) {
	g := &Gain{}
	g.SetValueAt(0, 0)
	g.LinearRampTo(1, 10*time.Millisecond)
	g.CancelAndHold(5 * time.Millisecond)
	if got := g.Value(time.Second); got != 0.5 {
		t.Errorf("expected value held at 0.5, got %v", got)
	}
}

func TestAudioGraph_crossfade_through_engine(t *testing.T) {
	var now time.Duration
	graph := NewAudioGraphWithClock(func() time.Duration { return now })
	var fades []audio.FadeElapsed
	sched := schedulerFunc(func(_ time.Duration, ev audio.FadeElapsed) { fades = append(fades, ev) })

	e, err := audio.NewEngine(graph, sched, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	buf := &Buffer{Name: "bed", Length: 10 * time.Second}
	if err := e.StartFresh(buf, 0); err != nil {
		t.Fatalf("StartFresh: %v", err)
	}
	now = time.Second
	if _, err := e.CrossfadeTo(buf, 7*time.Second, 10*time.Millisecond); err != nil {
		t.Fatalf("CrossfadeTo: %v", err)
	}

	playing := graph.Playing()
	if len(playing) != 2 {
		t.Fatalf("expected 2 playing units during fade, got %d", len(playing))
	}
	out, in := playing[0], playing[1]
	mid := now + 5*time.Millisecond
	if v := out.Gain().Value(mid); v != 0.5 {
		t.Errorf("outgoing gain at midpoint: want 0.5, got %v", v)
	}
	if v := in.Gain().Value(mid); v != 0.5 {
		t.Errorf("incoming gain at midpoint: want 0.5, got %v", v)
	}
	if p := in.Position(now + 4*time.Second); p != time.Second {
		t.Errorf("incoming unit should loop to 1s, got %v", p)
	}

	e.Settle(fades[0])
	if n := len(graph.Playing()); n != 1 {
		t.Errorf("expected 1 playing unit after settle, got %d", n)
	}
	if n := graph.Connected(); n != 1 {
		t.Errorf("expected 1 connected unit after settle, got %d", n)
	}
}

func TestUnit_Stop_twice(t *testing.T) {
	graph := NewAudioGraph()
	u, _ := graph.NewUnit(&Buffer{Length: time.Second}, audio.LoopWindow{End: time.Second}, &Gain{})
	_ = u.Start(0, 0)
	if err := u.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := u.Stop(); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestSurface_Load_reports_completion(t *testing.T) {
	done := make(chan video.Loaded, 1)
	_, s2 := NewSurfaces(time.Millisecond, func(ev video.Loaded) { done <- ev })

	if err := s2.Load(1); !errors.Is(err, ErrNoSource) {
		t.Errorf("expected ErrNoSource before Bind, got %v", err)
	}
	_ = s2.Bind("videos/0.mp4")
	if err := s2.Load(4); err != nil {
		t.Fatalf("Load: %v", err)
	}

	select {
	case ev := <-done:
		if ev.Surface != video.Surface2 || ev.Gen != 4 {
			t.Errorf("unexpected completion %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("load completion not delivered")
	}
}

func TestProvider_AudioBuffer_missing(t *testing.T) {
	p := &Provider{AudioName: "bed"}
	if _, err := p.AudioBuffer(); !errors.Is(err, audio.ErrNoBuffer) {
		t.Errorf("expected ErrNoBuffer, got %v", err)
	}
}

type schedulerFunc func(time.Duration, audio.FadeElapsed)

func (f schedulerFunc) Schedule(after time.Duration, ev audio.FadeElapsed) { f(after, ev) }
