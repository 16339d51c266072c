package games

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/boardsight/internal/detector"
)

// Board geometry of the xo game, in pixels of the resized frame.
var (
	xoFrameSize = image.Pt(320, 240)
	xoBoard     = image.Rect(48, 64, 294, 209)
)

// xo tuning.
const (
	xoPieceConfidence = 0.25
	xoThresholdBias   = 28
	xoBrightFloor     = 110
	xoMinSquareMean   = 100
	xoMinSquareSide   = 12
	xoMaxSquareSide   = 65
	xoLattice         = 5
	xoRowThreshold    = 10
	xoRows            = 3
	xoCols            = 5
)

// Cell labels.
const (
	cellEmpty = "-"
	cellX     = "X"
	cellO     = "O"
)

var cellCodes = map[string]string{cellX: "1", cellO: "2", cellEmpty: "0"}

// gridPoint is a board square or a piece centre in board coordinates.
type gridPoint struct {
	X, Y  int
	Label string
}

// XO reads a tic-tac-toe style board: empty squares from contours and X/O
// pieces from a detector.
type XO struct {
	pieces detector.Detector
	kernel gocv.Mat
	log    *slog.Logger
}

// NewXO creates the xo game reader around a piece detector.
func NewXO(pieces detector.Detector, logger *slog.Logger) *XO {
	if logger == nil {
		logger = slog.Default()
	}
	return &XO{
		pieces: pieces,
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
		log:    logger.With("component", "xo"),
	}
}

// Game returns the xo game backed by x.
func (x *XO) Game() Game {
	return Game{Name: "xo", Handle: x.Handle}
}

// Handle returns the 3x5 board as comma-separated codes: X=1, O=2, empty=0.
func (x *XO) Handle(_ context.Context, frame gocv.Mat) (string, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(frame, &resized, xoFrameSize, 0, 0, gocv.InterpolationLinear)

	region := resized.Region(xoBoard)
	board := region.Clone()
	region.Close()
	defer board.Close()

	dets, err := x.pieces.Detect(board, xoPieceConfidence)
	if err != nil {
		return "", fmt.Errorf("detect pieces: %w", err)
	}

	points := x.squares(board)
	for _, d := range detector.Filter(dets, cellX, cellO) {
		c := d.Center()
		points = append(points, gridPoint{X: c.X, Y: c.Y, Label: d.Label})
	}

	result := encodeCells(convertGridToCells(points))
	x.log.Info("board read", "result", result)
	return result, nil
}

// squares finds bright, roughly square contours: the empty board cells.
func (x *XO) squares(board gocv.Mat) []gridPoint {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(board, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(7, 7), 0, 0, gocv.BorderDefault)

	thresh := gocv.NewMat()
	defer thresh.Close()
	otsu := gocv.Threshold(blurred, &thresh, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)
	biased := math.Min(255, float64(otsu)+xoThresholdBias)
	gocv.Threshold(blurred, &thresh, float32(biased), 255, gocv.ThresholdBinaryInv)
	gocv.BitwiseNot(thresh, &thresh)

	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(gray, &bright, xoBrightFloor, 255, gocv.ThresholdBinary)
	gocv.BitwiseAnd(thresh, bright, &thresh)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MorphologyExWithParams(thresh, &mask, gocv.MorphOpen, x.kernel, 2, gocv.BorderConstant)
	for i := 0; i < 2; i++ {
		gocv.Dilate(mask, &mask, x.kernel)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var points []gridPoint
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		approx := gocv.ApproxPolyDP(c, 0.04*gocv.ArcLength(c, true), true)
		n := approx.Size()
		box := gocv.BoundingRect(approx)
		approx.Close()
		if n != 4 || !isSquareCell(box) {
			continue
		}

		roi := gray.Region(box)
		mean := roi.Mean().Val1
		roi.Close()
		if mean <= xoMinSquareMean {
			continue
		}
		points = append(points, gridPoint{
			X:     box.Min.X + box.Dx()/2,
			Y:     box.Min.Y + box.Dy()/2,
			Label: cellEmpty,
		})
	}
	return points
}

// isSquareCell applies the aspect and size limits of a board square.
func isSquareCell(box image.Rectangle) bool {
	w, h := box.Dx(), box.Dy()
	if h == 0 {
		return false
	}
	aspect := float64(w) / float64(h)
	return aspect >= 0.8 && aspect <= 1.2 && w > xoMinSquareSide && w < xoMaxSquareSide
}

// latticeKey snaps a point to the nearest point of the 5px lattice.
func latticeKey(p gridPoint) image.Point {
	snap := func(v int) int {
		return int(math.RoundToEven(float64(v)/xoLattice)) * xoLattice
	}
	return image.Pt(snap(p.X), snap(p.Y))
}

// convertGridToCells arranges points into xoRows rows of xoCols cells.
//
// Points on the same lattice position collapse into one, a piece replacing
// an empty square. Points are ordered top to bottom, and a new row starts
// whenever y jumps by more than xoRowThreshold from the previous point.
// Rows are ordered left to right and padded or cut to size.
func convertGridToCells(points []gridPoint) [][]string {
	var unique []gridPoint
	seen := make(map[image.Point]bool)
	for _, p := range points {
		key := latticeKey(p)
		if !seen[key] {
			seen[key] = true
			unique = append(unique, p)
			continue
		}
		for i, existing := range unique {
			if latticeKey(existing) != key {
				continue
			}
			if existing.Label == cellEmpty && p.Label != cellEmpty {
				unique[i] = p
			}
			break
		}
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].Y != unique[j].Y {
			return unique[i].Y < unique[j].Y
		}
		return unique[i].X < unique[j].X
	})

	var rows [][]string
	var current []gridPoint
	for i, p := range unique {
		if i > 0 && abs(p.Y-unique[i-1].Y) > xoRowThreshold {
			rows = append(rows, rowLabels(current))
			current = nil
		}
		current = append(current, p)
	}
	if len(current) > 0 {
		rows = append(rows, rowLabels(current))
	}

	for len(rows) < xoRows {
		rows = append(rows, rowLabels(nil))
	}
	return rows[:xoRows]
}

// rowLabels orders a row by x and pads or trims it to xoCols labels.
func rowLabels(row []gridPoint) []string {
	sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })

	labels := make([]string, xoCols)
	for i := range labels {
		labels[i] = cellEmpty
		if i < len(row) {
			labels[i] = row[i].Label
		}
	}
	return labels
}

// encodeCells flattens the rows into comma-separated cell codes.
func encodeCells(rows [][]string) string {
	codes := make([]string, 0, xoRows*xoCols)
	for _, row := range rows {
		for _, label := range row {
			code, ok := cellCodes[label]
			if !ok {
				code = cellCodes[cellEmpty]
			}
			codes = append(codes, code)
		}
	}
	return strings.Join(codes, ",")
}

// Close releases the morphology kernel.
func (x *XO) Close() error {
	return x.kernel.Close()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
