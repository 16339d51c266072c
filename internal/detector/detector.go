// Package detector runs pretrained object detectors over frames. The xo and
// matrix_cards games use it to find pieces and cards.
package detector

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// ErrModelNotFound is returned when the configured model file does not exist.
var ErrModelNotFound = errors.New("detector: model file not found")

// Detection is one detected object in frame-pixel coordinates.
type Detection struct {
	Box        image.Rectangle
	ClassID    int
	Label      string
	Confidence float32
}

// Center returns the centre of the detection box.
func (d Detection) Center() image.Point {
	return image.Pt((d.Box.Min.X+d.Box.Max.X)/2, (d.Box.Min.Y+d.Box.Max.Y)/2)
}

// Detector defines the interface for object detection implementations.
type Detector interface {
	// Detect returns the objects in frame scoring at least minConfidence.
	Detect(frame gocv.Mat, minConfidence float32) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for a YOLO detector.
type Config struct {
	ModelPath string
	// Labels maps class IDs to names; IDs without a label are named by number.
	Labels []string
	// InputSize is the square network input in pixels.
	InputSize int
	// NMSThreshold is the IoU above which overlapping boxes are suppressed.
	NMSThreshold float32
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		InputSize:    640,
		NMSThreshold: 0.45,
	}
}

// Filter keeps detections whose label is in labels.
func Filter(dets []Detection, labels ...string) []Detection {
	keep := make(map[string]bool, len(labels))
	for _, l := range labels {
		keep[l] = true
	}
	out := dets[:0:0]
	for _, d := range dets {
		if keep[d.Label] {
			out = append(out, d)
		}
	}
	return out
}
