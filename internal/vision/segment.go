package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// Blob filter defaults.
const (
	DefaultMinArea = 1000.0
	MinAspect      = 0.5
	MaxAspect      = 2.0
	// OpenKernelSize is the side of the square kernel used to denoise masks.
	OpenKernelSize = 5
)

// Blob is a connected colour region found in a single frame.
type Blob struct {
	Box    image.Rectangle
	Area   float64
	Aspect float64
	Color  string
}

// Center returns the centre of the blob's bounding box.
func (b Blob) Center() image.Point {
	return image.Pt((b.Box.Min.X+b.Box.Max.X)/2, (b.Box.Min.Y+b.Box.Max.Y)/2)
}

// Segmenter thresholds frames against a colour table and extracts blobs.
// It keeps no per-frame state.
type Segmenter struct {
	profiles []ColorProfile
	minArea  float64
	kernel   gocv.Mat
}

// NewSegmenter creates a Segmenter for the given profiles.
// A non-positive minArea selects DefaultMinArea.
func NewSegmenter(profiles []ColorProfile, minArea float64) *Segmenter {
	if minArea <= 0 {
		minArea = DefaultMinArea
	}

	cp := make([]ColorProfile, len(profiles))
	copy(cp, profiles)

	return &Segmenter{
		profiles: cp,
		minArea:  minArea,
		kernel:   gocv.GetStructuringElement(gocv.MorphRect, image.Pt(OpenKernelSize, OpenKernelSize)),
	}
}

// Profiles returns the colour table used by the segmenter.
func (s *Segmenter) Profiles() []ColorProfile {
	cp := make([]ColorProfile, len(s.profiles))
	copy(cp, s.profiles)
	return cp
}

// Segment returns every qualifying blob of every profile in frame.
//
// Per profile:
// 1. Threshold the HSV frame into a binary mask
// 2. Open the mask once with a 5x5 kernel
// 3. Extract contours, nested ones included
// 4. Keep contours with area >= minArea and aspect in (0.5, 2.0)
func (s *Segmenter) Segment(frame gocv.Mat) []Blob {
	if frame.Empty() {
		return nil
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()

	var blobs []Blob
	for _, p := range s.profiles {
		gocv.InRangeWithScalar(hsv, p.Lower.Scalar(), p.Upper.Scalar(), &mask)
		gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, s.kernel)

		contours := gocv.FindContours(mask, gocv.RetrievalTree, gocv.ChainApproxSimple)
		for i := 0; i < contours.Size(); i++ {
			c := contours.At(i)
			area := gocv.ContourArea(c)
			box := gocv.BoundingRect(c)
			if b, ok := s.blob(p.Name, box, area); ok {
				blobs = append(blobs, b)
			}
		}
		contours.Close()
	}

	return blobs
}

// blob applies the area and aspect filters.
func (s *Segmenter) blob(color string, box image.Rectangle, area float64) (Blob, bool) {
	if area < s.minArea || box.Dy() == 0 {
		return Blob{}, false
	}
	aspect := float64(box.Dx()) / float64(box.Dy())
	if aspect <= MinAspect || aspect >= MaxAspect {
		return Blob{}, false
	}
	return Blob{Box: box, Area: area, Aspect: aspect, Color: color}, true
}

// Close releases the morphology kernel.
func (s *Segmenter) Close() error {
	return s.kernel.Close()
}
