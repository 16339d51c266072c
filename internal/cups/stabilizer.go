package cups

import (
	"image"
	"sort"
	"time"

	"github.com/ayusman/boardsight/internal/vision"
	"github.com/ayusman/boardsight/internal/zone"
)

// DefaultDisappearanceThreshold is how long every expected colour must stay
// out of view before the stabilizer freezes its belief.
const DefaultDisappearanceThreshold = time.Second

// Phase is the detection state of a run.
type Phase int

// Detection phases. Handoff is terminal.
const (
	PhaseIdle Phase = iota
	PhaseExpecting
	PhaseHandoff
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseExpecting:
		return "expecting"
	case PhaseHandoff:
		return "handoff"
	default:
		return "unknown"
	}
}

// Expected is the believed occupant of one zone.
type Expected struct {
	Zone  int
	Color string
	Box   image.Rectangle
}

// AssignBlobs takes each colour's largest blob and credits it to the zone
// containing it. A largest blob outside every zone leaves its colour
// unassigned. When two colours claim the same zone the larger blob wins. The
// result is ordered by zone index.
func AssignBlobs(blobs []vision.Blob, layout zone.Layout) []Expected {
	type pick struct {
		blob vision.Blob
		zone int
	}

	largest := make(map[string]vision.Blob)
	for _, b := range blobs {
		if cur, seen := largest[b.Color]; seen && cur.Area >= b.Area {
			continue
		}
		largest[b.Color] = b
	}

	best := make(map[string]pick, len(largest))
	for color, b := range largest {
		if z, ok := layout.Containing(b.Box); ok {
			best[color] = pick{blob: b, zone: z.Index}
		}
	}

	byZone := make(map[int]pick)
	for _, p := range best {
		if cur, taken := byZone[p.zone]; taken {
			if cur.blob.Area > p.blob.Area || (cur.blob.Area == p.blob.Area && cur.blob.Color < p.blob.Color) {
				continue
			}
		}
		byZone[p.zone] = p
	}

	out := make([]Expected, 0, len(byZone))
	for z, p := range byZone {
		out = append(out, Expected{Zone: z, Color: p.blob.Color, Box: p.blob.Box})
	}
	sortByZone(out)
	return out
}

// Stabilizer holds the expected-object belief of the detection phase and
// decides when to freeze it into tracking seeds.
type Stabilizer struct {
	required  int
	threshold time.Duration

	phase     Phase
	expecting map[int]Expected
	goneSince time.Time
	seeds     []Expected
}

// NewStabilizer creates a stabilizer waiting for required simultaneous zone matches.
func NewStabilizer(required int, threshold time.Duration) *Stabilizer {
	if threshold <= 0 {
		threshold = DefaultDisappearanceThreshold
	}
	return &Stabilizer{
		required:  required,
		threshold: threshold,
		expecting: make(map[int]Expected),
	}
}

// Phase returns the current phase.
func (s *Stabilizer) Phase() Phase {
	return s.phase
}

// Observe feeds one frame's zone assignments observed at now and returns the resulting phase.
func (s *Stabilizer) Observe(now time.Time, assigned []Expected) Phase {
	switch s.phase {
	case PhaseIdle:
		if len(assigned) >= s.required && len(s.expecting) == 0 {
			for _, e := range assigned {
				s.expecting[e.Zone] = e
			}
			s.goneSince = time.Time{}
			s.phase = PhaseExpecting
		}

	case PhaseExpecting:
		expected := make(map[string]bool, len(s.expecting))
		for _, e := range s.expecting {
			expected[e.Color] = true
		}
		seen := make(map[string]bool, len(assigned))
		visible := false
		for _, e := range assigned {
			seen[e.Color] = true
			if expected[e.Color] {
				visible = true
			}
		}

		if visible {
			next := make(map[int]Expected, len(s.expecting))
			// Occluded colours keep their last known box.
			for z, e := range s.expecting {
				if !seen[e.Color] {
					next[z] = e
				}
			}
			for _, e := range assigned {
				if expected[e.Color] {
					next[e.Zone] = e
				}
			}
			s.expecting = next
			s.goneSince = time.Time{}
			break
		}

		if s.goneSince.IsZero() {
			s.goneSince = now
		}
		if now.Sub(s.goneSince) >= s.threshold {
			s.seeds = s.Expected()
			s.phase = PhaseHandoff
		}

	case PhaseHandoff:
	}

	return s.phase
}

// Expected returns the current belief ordered by zone index.
func (s *Stabilizer) Expected() []Expected {
	out := make([]Expected, 0, len(s.expecting))
	for _, e := range s.expecting {
		out = append(out, e)
	}
	sortByZone(out)
	return out
}

// Seeds returns the frozen belief. It is empty until the Handoff phase.
func (s *Stabilizer) Seeds() []Expected {
	out := make([]Expected, len(s.seeds))
	copy(out, s.seeds)
	return out
}

func sortByZone(es []Expected) {
	sort.Slice(es, func(i, j int) bool { return es[i].Zone < es[j].Zone })
}
