package detector

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"
)

// tensor builds a channel-major YOLOv8 output for the given anchors.
func tensor(classes int, anchors [][]float32) []float32 {
	attrs := 4 + classes
	data := make([]float32, attrs*len(anchors))
	for i, a := range anchors {
		for c := 0; c < attrs; c++ {
			data[c*len(anchors)+i] = a[c]
		}
	}
	return data
}

func TestDecodeYOLOv8(t *testing.T) {
	data := tensor(2, [][]float32{
		{100, 100, 20, 40, 0.9, 0.1},  // class 0, kept
		{300, 200, 10, 10, 0.2, 0.6},  // class 1, kept
		{50, 50, 10, 10, 0.1, 0.2},    // below threshold
		{640, 640, 64, 64, 0.0, 0.35}, // class 1, edge
	})

	got := decodeYOLOv8(data, 6, 4, scaleFactors{x: 0.5, y: 0.75}, 0.3)
	want := []Detection{
		{Box: image.Rect(45, 60, 55, 90), ClassID: 0, Confidence: 0.9},
		{Box: image.Rect(147, 146, 152, 153), ClassID: 1, Confidence: 0.6},
		{Box: image.Rect(304, 456, 336, 504), ClassID: 1, Confidence: 0.35},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decodeYOLOv8() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeYOLOv8_ShortBuffer(t *testing.T) {
	if got := decodeYOLOv8(make([]float32, 5), 6, 4, scaleFactors{x: 1, y: 1}, 0); got != nil {
		t.Errorf("decodeYOLOv8() = %v, want nil for a short buffer", got)
	}
	if got := decodeYOLOv8(make([]float32, 16), 4, 4, scaleFactors{x: 1, y: 1}, 0); got != nil {
		t.Errorf("decodeYOLOv8() = %v, want nil without class scores", got)
	}
}

func TestDetection_Center(t *testing.T) {
	d := Detection{Box: image.Rect(10, 20, 31, 60)}
	if got := d.Center(); got != image.Pt(20, 40) {
		t.Errorf("Center() = %v, want (20,40)", got)
	}
}

func TestFilter(t *testing.T) {
	dets := []Detection{{Label: "X"}, {Label: "board"}, {Label: "O"}, {Label: "X"}}

	got := Filter(dets, "X", "O")
	if len(got) != 3 {
		t.Fatalf("Filter() kept %d, want 3", len(got))
	}
	if len(dets) != 4 || dets[1].Label != "board" {
		t.Error("Filter() modified its input")
	}
}

func TestMockDetector(t *testing.T) {
	m := NewMockDetector()
	m.SetDetections([]Detection{
		{Label: "X", Confidence: 0.9},
		{Label: "O", Confidence: 0.2},
	})

	got, err := m.Detect(gocv.Mat{}, 0.25)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(got) != 1 || got[0].Label != "X" {
		t.Errorf("Detect() = %v, want only X", got)
	}

	m.SetError(errors.New("model crashed"))
	if _, err := m.Detect(gocv.Mat{}, 0.25); err == nil {
		t.Error("expected configured error")
	}
	if m.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", m.Calls())
	}
	if diff := cmp.Diff([]float32{0.25, 0.25}, m.Thresholds()); diff != "" {
		t.Errorf("Thresholds() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewYOLO_MissingModel(t *testing.T) {
	_, err := NewYOLO(Config{ModelPath: filepath.Join(t.TempDir(), "missing.onnx")})
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("NewYOLO() error = %v, want ErrModelNotFound", err)
	}
}
