// Package zone describes the fixed regions of interest in which game objects are expected.
package zone

import (
	"errors"
	"fmt"
	"image"
)

// MostInsideThreshold is the fraction of a zone a box must cover to be credited to it.
const MostInsideThreshold = 0.5

// Zone is a rectangular region of interest in frame-pixel coordinates.
type Zone struct {
	Index int
	Rect  image.Rectangle
}

// New creates a zone from its top-left corner and size.
func New(index, x, y, w, h int) Zone {
	return Zone{Index: index, Rect: image.Rect(x, y, x+w, y+h)}
}

// Area returns the zone area in square pixels.
func (z Zone) Area() int {
	return z.Rect.Dx() * z.Rect.Dy()
}

// Contains reports whether box sits strictly inside the zone: its centre lies
// strictly inside the zone and it is narrower and shorter than the zone.
func (z Zone) Contains(box image.Rectangle) bool {
	if box.Dx() >= z.Rect.Dx() || box.Dy() >= z.Rect.Dy() {
		return false
	}

	// Doubled coordinates keep odd-sized centres exact.
	cx2 := box.Min.X + box.Max.X
	cy2 := box.Min.Y + box.Max.Y

	return 2*z.Rect.Min.X < cx2 && cx2 < 2*z.Rect.Max.X &&
		2*z.Rect.Min.Y < cy2 && cy2 < 2*z.Rect.Max.Y
}

// OverlapFraction returns the intersection area of box and z divided by the zone area.
func OverlapFraction(box image.Rectangle, z Zone) float64 {
	area := z.Area()
	if area <= 0 {
		return 0
	}
	inter := box.Intersect(z.Rect)
	return float64(inter.Dx()*inter.Dy()) / float64(area)
}

// Layout is the ordered, immutable list of zones configured at startup.
type Layout struct {
	zones []Zone
}

// NewLayout builds a layout from rectangles; zone indexes follow slice order.
func NewLayout(rects []image.Rectangle) (Layout, error) {
	if len(rects) == 0 {
		return Layout{}, errors.New("zone layout: at least one zone is required")
	}

	zones := make([]Zone, len(rects))
	for i, r := range rects {
		r = r.Canon()
		if r.Dx() <= 0 || r.Dy() <= 0 {
			return Layout{}, fmt.Errorf("zone layout: zone %d has empty size %v", i, r)
		}
		zones[i] = Zone{Index: i, Rect: r}
	}
	return Layout{zones: zones}, nil
}

// Len returns the number of zones.
func (l Layout) Len() int {
	return len(l.zones)
}

// Zones returns a copy of the zones in index order.
func (l Layout) Zones() []Zone {
	out := make([]Zone, len(l.zones))
	copy(out, l.zones)
	return out
}

// Containing returns the first zone that strictly contains box.
func (l Layout) Containing(box image.Rectangle) (Zone, bool) {
	for _, z := range l.zones {
		if z.Contains(box) {
			return z, true
		}
	}
	return Zone{}, false
}

// MostInside returns the zone covered by more than half of its area by box.
// With non-overlapping zones at most one zone can qualify.
func (l Layout) MostInside(box image.Rectangle) (Zone, bool) {
	for _, z := range l.zones {
		if OverlapFraction(box, z) > MostInsideThreshold {
			return z, true
		}
	}
	return Zone{}, false
}

// At returns the zone whose interior strictly contains p.
func (l Layout) At(p image.Point) (Zone, bool) {
	for _, z := range l.zones {
		if z.Rect.Min.X < p.X && p.X < z.Rect.Max.X && z.Rect.Min.Y < p.Y && p.Y < z.Rect.Max.Y {
			return z, true
		}
	}
	return Zone{}, false
}
