package cups

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/boardsight/internal/zone"
)

// Tracking defaults.
const (
	DefaultConfidenceThreshold = 0.7
	DefaultFallbackFrames      = 10
)

// ErrTrackerInit is returned when a tracker refuses its seed box.
var ErrTrackerInit = errors.New("tracker initialization failed")

// Algorithm selects the tracker implementation of an object.
type Algorithm int

// Primary is the fast correlation tracker; Fallback is the slower drift-resistant one.
const (
	Primary Algorithm = iota
	Fallback
)

func (a Algorithm) String() string {
	if a == Fallback {
		return "fallback"
	}
	return "primary"
}

// TrackerFactory creates trackers for an algorithm.
type TrackerFactory interface {
	NewTracker(alg Algorithm) gocv.Tracker
}

// Tracked is a frozen object followed through the tracking phase.
type Tracked struct {
	Zone           int
	Color          string
	Box            image.Rectangle
	Size           image.Point
	Algorithm      Algorithm
	FallbackFrames int

	prev    image.Rectangle
	tracker gocv.Tracker
}

// Bank runs one adaptive tracker per frozen object.
type Bank struct {
	layout    zone.Layout
	factory   TrackerFactory
	threshold float64
	dwell     int
	objects   []*Tracked
}

// NewBank creates an empty tracker bank. Non-positive threshold and dwell
// select the defaults.
func NewBank(layout zone.Layout, factory TrackerFactory, threshold float64, dwell int) *Bank {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if dwell <= 0 {
		dwell = DefaultFallbackFrames
	}
	return &Bank{
		layout:    layout,
		factory:   factory,
		threshold: threshold,
		dwell:     dwell,
	}
}

// Confidence maps a frame-to-frame displacement in pixels to (0, 1].
func Confidence(displacement float64) float64 {
	return 1 / (1 + displacement)
}

// Init starts one Primary tracker per seed on frame. Any previous objects are released.
func (b *Bank) Init(frame gocv.Mat, seeds []Expected) error {
	b.Close()

	for _, s := range seeds {
		o := &Tracked{
			Zone:      s.Zone,
			Color:     s.Color,
			Box:       s.Box,
			Size:      s.Box.Size(),
			Algorithm: Primary,
			prev:      s.Box,
		}
		if err := b.restart(o, frame, Primary); err != nil {
			b.Close()
			return fmt.Errorf("zone %d (%s): %w", s.Zone, s.Color, err)
		}
		b.objects = append(b.objects, o)
	}
	return nil
}

// Step advances every tracker by one frame. It returns the valid count and
// the colours credited to zones this frame, indexed by zone.
//
// Per object:
// 1. Update the active tracker; a lost object gets no credit and keeps its state
// 2. Re-centre the box onto the seed size and shift it inside bounds
// 3. Credit the zone holding most of the box, or penalize an out-of-zone box
// 4. Primary: switch to Fallback when confidence drops below the threshold
// 5. Fallback: return to a fresh Primary after the dwell period
func (b *Bank) Step(frame gocv.Mat, bounds image.Rectangle) (int, []string) {
	valid := 0
	slots := make([]string, b.layout.Len())

	for _, o := range b.objects {
		raw, ok := o.tracker.Update(frame)
		if !ok {
			continue
		}

		box := clampInto(recenter(raw, o.Size), bounds)

		if z, ok := b.layout.MostInside(box); ok {
			valid++
			slots[z.Index] = o.Color
		} else {
			valid--
		}

		displacement := centerDistance(box, o.prev)
		o.Box = box
		o.prev = box

		switch o.Algorithm {
		case Primary:
			if Confidence(displacement) < b.threshold {
				if err := b.restart(o, frame, Fallback); err == nil {
					o.FallbackFrames = 0
				}
			}
		case Fallback:
			o.FallbackFrames++
			if o.FallbackFrames >= b.dwell {
				if err := b.restart(o, frame, Primary); err == nil {
					o.FallbackFrames = 0
				}
			}
		}
	}

	return valid, slots
}

// Objects returns a snapshot of the tracked objects.
func (b *Bank) Objects() []Tracked {
	out := make([]Tracked, len(b.objects))
	for i, o := range b.objects {
		out[i] = *o
		out[i].tracker = nil
	}
	return out
}

// Close releases every tracker.
func (b *Bank) Close() error {
	var errs []error
	for _, o := range b.objects {
		if o.tracker != nil {
			errs = append(errs, o.tracker.Close())
			o.tracker = nil
		}
	}
	b.objects = nil
	return errors.Join(errs...)
}

// restart replaces the tracker of o with a fresh one of alg seeded at o's current box.
func (b *Bank) restart(o *Tracked, frame gocv.Mat, alg Algorithm) error {
	t := b.factory.NewTracker(alg)
	if !t.Init(frame, o.Box) {
		t.Close()
		return ErrTrackerInit
	}
	if o.tracker != nil {
		o.tracker.Close()
	}
	o.tracker = t
	o.Algorithm = alg
	return nil
}

// recenter keeps the centre of box and resizes it to size.
func recenter(box image.Rectangle, size image.Point) image.Rectangle {
	cx := (box.Min.X + box.Max.X) / 2
	cy := (box.Min.Y + box.Max.Y) / 2
	minX := cx - size.X/2
	minY := cy - size.Y/2
	return image.Rect(minX, minY, minX+size.X, minY+size.Y)
}

// clampInto shifts box so it lies within bounds, shrinking only if it is larger.
func clampInto(box image.Rectangle, bounds image.Rectangle) image.Rectangle {
	if bounds.Empty() {
		return box
	}
	if d := bounds.Min.X - box.Min.X; d > 0 {
		box = box.Add(image.Pt(d, 0))
	}
	if d := bounds.Min.Y - box.Min.Y; d > 0 {
		box = box.Add(image.Pt(0, d))
	}
	if d := box.Max.X - bounds.Max.X; d > 0 {
		box = box.Sub(image.Pt(d, 0))
	}
	if d := box.Max.Y - bounds.Max.Y; d > 0 {
		box = box.Sub(image.Pt(0, d))
	}
	return box.Intersect(bounds)
}

func centerDistance(a, b image.Rectangle) float64 {
	ax := float64(a.Min.X+a.Max.X) / 2
	ay := float64(a.Min.Y+a.Max.Y) / 2
	bx := float64(b.Min.X+b.Max.X) / 2
	by := float64(b.Min.Y+b.Max.Y) / 2
	return math.Hypot(ax-bx, ay-by)
}
