package games

import (
	"context"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/boardsight/internal/camera"
	"github.com/ayusman/boardsight/internal/cups"
	"github.com/ayusman/boardsight/internal/vision"
	"github.com/ayusman/boardsight/internal/zone"
)

// CupsCamera returns the camera overrides of the cups game, shared by the
// snapshot endpoint and tracking runs.
func CupsCamera() camera.Settings {
	return camera.Settings{Brightness: camera.Int(50)}
}

// CupsSnapshot answers the cups question from a single frame, without the
// tracking run: each zone takes the largest blob whose top-left corner lies
// strictly inside it.
func CupsSnapshot(seg cups.Segmenter, layout zone.Layout) Game {
	return Game{
		Name:   "cups",
		Camera: CupsCamera(),
		Handle: func(_ context.Context, frame gocv.Mat) (string, error) {
			return snapshotResult(seg.Segment(frame), layout), nil
		},
	}
}

// snapshotResult assigns blobs to zones by top-left corner. Ties keep the
// blob seen first, so earlier colours in the table win.
func snapshotResult(blobs []vision.Blob, layout zone.Layout) string {
	colors := make([]string, layout.Len())
	areas := make([]float64, layout.Len())

	for _, b := range blobs {
		z, ok := layout.At(b.Box.Min)
		if !ok {
			continue
		}
		if b.Area > areas[z.Index] {
			areas[z.Index] = b.Area
			colors[z.Index] = b.Color
		}
	}

	found := colors[:0]
	for _, c := range colors {
		if c != "" {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return NoResult
	}
	return strings.Join(found, ",")
}
