package catalog

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// DefaultPattern formats a clip id into its asset path.
const DefaultPattern = "videos/%d.mp4"

// NoClip is the "nothing to exclude" id, used before the first clip is shown.
const NoClip ClipID = -1

// ErrInvalidCount is returned when a catalog is built with no clips.
var ErrInvalidCount = errors.New("catalog size must be positive")

// ClipID identifies a video clip. Valid ids are the dense range [0, N).
type ClipID int

// Clip is a single addressable video asset.
type Clip struct {
	ID   ClipID `json:"id"`
	Path string `json:"path"`
}

// Catalog is an immutable ordered list of clips.
type Catalog struct {
	clips []Clip
}

// New builds a catalog of count clips whose paths are produced by pattern
// (a fmt verb taking the clip id). An empty pattern uses DefaultPattern.
func New(count int, pattern string) (*Catalog, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	if pattern == "" {
		pattern = DefaultPattern
	}

	clips := make([]Clip, count)
	for i := range clips {
		clips[i] = Clip{ID: ClipID(i), Path: fmt.Sprintf(pattern, i)}
	}
	return &Catalog{clips: clips}, nil
}

// Len returns the number of clips.
func (c *Catalog) Len() int {
	return len(c.clips)
}

// Clips returns a copy of the ordered clip list.
func (c *Catalog) Clips() []Clip {
	out := make([]Clip, len(c.clips))
	copy(out, c.clips)
	return out
}

// Path returns the asset path for id and whether id is in range.
func (c *Catalog) Path(id ClipID) (string, bool) {
	if !c.Contains(id) {
		return "", false
	}
	return c.clips[id].Path, true
}

// Contains reports whether id addresses a clip in the catalog.
func (c *Catalog) Contains(id ClipID) bool {
	return id >= 0 && int(id) < len(c.clips)
}

// PickNext returns a uniformly random clip id other than exclude.
// With a single clip that clip is returned, repetition is unavoidable.
// exclude may be NoClip or out of range, in which case every clip is eligible.
// A single draw over N-1 values is shifted past exclude so the call never loops.
func (c *Catalog) PickNext(rng *rand.Rand, exclude ClipID) ClipID {
	n := len(c.clips)
	if n == 1 {
		return 0
	}
	if !c.Contains(exclude) {
		return ClipID(rng.IntN(n))
	}

	id := ClipID(rng.IntN(n - 1))
	if id >= exclude {
		id++
	}
	return id
}
