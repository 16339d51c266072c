// Package testdata draws synthetic board frames for integration tests.
package testdata

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Frame dimensions of the default camera resolution.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// Piece is a filled rectangle drawn on a board.
type Piece struct {
	Box   image.Rectangle
	Color color.RGBA
}

// Solid colours of the default cup table.
var (
	Red   = color.RGBA{R: 255, A: 255}
	Green = color.RGBA{G: 255, A: 255}
	Blue  = color.RGBA{B: 255, A: 255}
)

// ZoneBox returns an 80x80 box centred in default cups zone i.
func ZoneBox(i int) image.Rectangle {
	x := 110 + 150*i
	return image.Rect(x, 225, x+80, 305)
}

// Board returns a black frame with pieces drawn in order. The caller owns the Mat.
func Board(pieces ...Piece) gocv.Mat {
	m := gocv.NewMatWithSize(FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	for _, p := range pieces {
		gocv.Rectangle(&m, p.Box, p.Color, -1)
	}
	return m
}

// EncodePNG encodes frame the way a client uploads it.
func EncodePNG(frame gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// BoardPNG draws and encodes a board in one step.
func BoardPNG(pieces ...Piece) ([]byte, error) {
	m := Board(pieces...)
	defer m.Close()
	return EncodePNG(m)
}
