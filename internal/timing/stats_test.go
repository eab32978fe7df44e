package timing

import (
	"math"
	"testing"
	"time"
)

func TestUpdate_first_sample_only_records_timestamp(t *testing.T) {
	s := Update(Stats{}, 100*time.Millisecond)
	if !s.HasLast || s.LastTimestamp != 100*time.Millisecond {
		t.Errorf("expected last timestamp 100ms, got %+v", s)
	}
	if s.Smoothed != 0 {
		t.Errorf("expected smoothed interval unchanged (0), got %v", s.Smoothed)
	}
	if s.Samples != 0 {
		t.Errorf("expected 0 samples, got %d", s.Samples)
	}
}

func TestUpdate_single_delta(t *testing.T) {
	s := Update(Stats{}, 0)
	s = Update(s, 100*time.Millisecond)
	if s.Smoothed != 10*time.Millisecond {
		t.Errorf("expected 0.1*100ms = 10ms, got %v", s.Smoothed)
	}
	if s.LastTimestamp != 100*time.Millisecond {
		t.Errorf("expected last timestamp 100ms, got %v", s.LastTimestamp)
	}
}

func TestUpdate_converges_to_constant_interval(t *testing.T) {
	const interval = 16 * time.Millisecond
	var s Stats
	ts := time.Duration(0)
	s = Update(s, ts)
	for i := 0; i < 50; i++ {
		ts += interval
		s = Update(s, ts)
	}

	diff := math.Abs(float64(s.Smoothed-interval)) / float64(interval)
	if diff > 0.01 {
		t.Errorf("expected smoothed within 1%% of %v, got %v (%.4f)", interval, s.Smoothed, diff)
	}
	if s.Samples != 50 {
		t.Errorf("expected 50 samples, got %d", s.Samples)
	}
}

func TestUpdate_tolerates_non_monotonic_clock(t *testing.T) {
	s := Update(Stats{}, 50*time.Millisecond)
	s = Update(s, 50*time.Millisecond)
	if s.Smoothed != 0 {
		t.Errorf("zero delta should leave 0 average, got %v", s.Smoothed)
	}
	s = Update(s, 40*time.Millisecond)
	if s.Smoothed != -time.Millisecond {
		t.Errorf("expected negative delta absorbed as -1ms, got %v", s.Smoothed)
	}
	if s.LastTimestamp != 40*time.Millisecond {
		t.Errorf("expected last timestamp to follow input, got %v", s.LastTimestamp)
	}
}

func TestStats_Rate(t *testing.T) {
	if r := (Stats{}).Rate(); r != 0 {
		t.Errorf("expected 0 rate for empty stats, got %v", r)
	}
	s := Stats{Smoothed: 250 * time.Millisecond}
	if r := s.Rate(); r != 4 {
		t.Errorf("expected 4 events/s, got %v", r)
	}
}
