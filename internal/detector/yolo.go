package detector

import (
	"fmt"
	"image"
	"os"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// YOLO runs a YOLOv8 ONNX model through OpenCV's DNN module.
type YOLO struct {
	net gocv.Net
	cfg Config
	mu  sync.Mutex
}

// NewYOLO loads the model at cfg.ModelPath.
func NewYOLO(cfg Config) (*YOLO, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultConfig().InputSize
	}
	if cfg.NMSThreshold <= 0 {
		cfg.NMSThreshold = DefaultConfig().NMSThreshold
	}

	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLO{net: net, cfg: cfg}, nil
}

// Detect implements Detector.
func (y *YOLO) Detect(frame gocv.Mat, minConfidence float32) ([]Detection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("detector: empty frame")
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	size := image.Pt(y.cfg.InputSize, y.cfg.InputSize)
	blob := gocv.BlobFromImage(frame, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	output := y.net.Forward("")
	defer output.Close()

	// YOLOv8 output is [1, 4+classes, anchors].
	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("detector: unexpected output shape %v", dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("detector: read output: %w", err)
	}

	scale := scaleFactors{
		x: float32(frame.Cols()) / float32(y.cfg.InputSize),
		y: float32(frame.Rows()) / float32(y.cfg.InputSize),
	}
	cands := decodeYOLOv8(data, dims[1], dims[2], scale, minConfidence)
	if len(cands) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.Box
		scores[i] = c.Confidence
	}
	indices := gocv.NMSBoxes(boxes, scores, minConfidence, y.cfg.NMSThreshold)

	dets := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		d := cands[idx]
		d.Label = y.label(d.ClassID)
		dets = append(dets, d)
	}
	return dets, nil
}

func (y *YOLO) label(id int) string {
	if id >= 0 && id < len(y.cfg.Labels) {
		return y.cfg.Labels[id]
	}
	return strconv.Itoa(id)
}

// Close releases the network.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}

type scaleFactors struct {
	x, y float32
}

// decodeYOLOv8 reads a channel-major output of attrs rows (cx, cy, w, h,
// class scores...) by anchors columns and returns every anchor whose best
// class score reaches minConfidence, scaled to frame pixels.
func decodeYOLOv8(data []float32, attrs, anchors int, scale scaleFactors, minConfidence float32) []Detection {
	if attrs < 5 || len(data) < attrs*anchors {
		return nil
	}

	var out []Detection
	for i := 0; i < anchors; i++ {
		best := float32(0)
		bestID := -1
		for c := 4; c < attrs; c++ {
			if score := data[c*anchors+i]; score > best {
				best = score
				bestID = c - 4
			}
		}
		if bestID < 0 || best < minConfidence {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		out = append(out, Detection{
			Box: image.Rect(
				int((cx-w/2)*scale.x),
				int((cy-h/2)*scale.y),
				int((cx+w/2)*scale.x),
				int((cy+h/2)*scale.y),
			),
			ClassID:    bestID,
			Confidence: best,
		})
	}
	return out
}
