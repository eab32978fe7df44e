package timing

import "time"

// smoothing is the weight given to the newest interval sample.
const smoothing = 0.1

// Stats holds the smoothed inter-event interval of a periodic signal
// (render-loop ticks or triggers). The zero value means "no prior sample".
// It is not a wire type; callers convert it for their own encoding.
type Stats struct {
	LastTimestamp time.Duration
	HasLast       bool
	Smoothed      time.Duration
	Samples       uint64
}

// Update folds timestamp ts into s and returns the new state.
// The first sample only records the timestamp. Later samples update the
// exponential moving average with factor 0.1. Zero or negative deltas
// (non-monotonic clocks) are absorbed like any other sample.
func Update(s Stats, ts time.Duration) Stats {
	if !s.HasLast {
		s.LastTimestamp = ts
		s.HasLast = true
		return s
	}

	delta := ts - s.LastTimestamp
	s.LastTimestamp = ts
	s.Smoothed = time.Duration((1-smoothing)*float64(s.Smoothed) + smoothing*float64(delta))
	s.Samples++
	return s
}

// Rate returns events per second derived from the smoothed interval,
// or 0 if no positive interval has been observed yet.
func (s Stats) Rate() float64 {
	if s.Smoothed <= 0 {
		return 0
	}
	return float64(time.Second) / float64(s.Smoothed)
}
