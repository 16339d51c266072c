package games

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/boardsight/internal/detector"
)

// Card grid layout.
const (
	CardRows = 2
	CardCols = 3

	cardConfidence    = 0.3
	cardVerticalScale = 1.5
	cardEmpty         = "Empty"
)

// Point2 is a sub-pixel point.
type Point2 struct {
	X, Y float64
}

// Cards reads a 2x3 grid of playing cards. The grid corners come from a
// coordinates file with one "x,y" line per corner; without one, the grid
// spans 10% to 90% of the frame.
type Cards struct {
	detector   detector.Detector
	coordsPath string
	log        *slog.Logger
}

// NewCards creates the matrix_cards game reader.
func NewCards(det detector.Detector, coordsPath string, logger *slog.Logger) *Cards {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cards{
		detector:   det,
		coordsPath: coordsPath,
		log:        logger.With("component", "cards"),
	}
}

// Game returns the matrix_cards game backed by c.
func (c *Cards) Game() Game {
	return Game{Name: "matrix_cards", Handle: c.Handle}
}

// Handle returns "row,col,label" for every cell, "row,col,Empty" when no
// card was found there.
func (c *Cards) Handle(_ context.Context, frame gocv.Mat) (string, error) {
	corners, err := loadCoords(c.coordsPath)
	if err != nil {
		c.log.Warn("using automatic grid points", "error", err)
		corners = defaultCorners(frame.Cols(), frame.Rows())
	}

	grid, err := newCardGrid(corners)
	if err != nil {
		return "", err
	}

	dets, err := c.detector.Detect(frame, cardConfidence)
	if err != nil {
		return "", fmt.Errorf("detect cards: %w", err)
	}

	result := formatCards(assignCards(dets, grid.project, grid.size))
	c.log.Info("cards read", "result", result)
	return result, nil
}

// loadCoords reads exactly four "x,y" integer corners.
func loadCoords(path string) ([]Point2, error) {
	if path == "" {
		return nil, errors.New("no coordinates file configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pts []Point2
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		xs, ys, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("%s: malformed line %q", path, line)
		}
		x, errX := strconv.Atoi(strings.TrimSpace(xs))
		y, errY := strconv.Atoi(strings.TrimSpace(ys))
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("%s: malformed line %q", path, line)
		}
		pts = append(pts, Point2{X: float64(x), Y: float64(y)})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(pts) != 4 {
		return nil, fmt.Errorf("%s: expected 4 points, found %d", path, len(pts))
	}
	return pts, nil
}

// defaultCorners spans 10% to 90% of a w x h frame.
func defaultCorners(w, h int) []Point2 {
	x0, x1 := float64(int(float64(w)*0.1)), float64(int(float64(w)*0.9))
	y0, y1 := float64(int(float64(h)*0.1)), float64(int(float64(h)*0.9))
	return []Point2{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// orderPoints returns the corners as top-left, top-right, bottom-right,
// bottom-left. The first point wins ties.
func orderPoints(pts []Point2) [4]Point2 {
	var tl, tr, br, bl int
	for i, p := range pts {
		if p.X+p.Y < pts[tl].X+pts[tl].Y {
			tl = i
		}
		if p.X+p.Y > pts[br].X+pts[br].Y {
			br = i
		}
		if p.Y-p.X < pts[tr].Y-pts[tr].X {
			tr = i
		}
		if p.Y-p.X > pts[bl].Y-pts[bl].X {
			bl = i
		}
	}
	return [4]Point2{pts[tl], pts[tr], pts[br], pts[bl]}
}

// targetSize returns the rectified grid size: square cells sized to fit the
// shorter side, stretched vertically by cardVerticalScale.
func targetSize(c [4]Point2) (w, h float64) {
	width := (dist(c[0], c[1]) + dist(c[3], c[2])) / 2
	height := (dist(c[0], c[3]) + dist(c[1], c[2])) / 2

	cell := math.Min(width/CardCols, height/CardRows)
	return cell * CardCols, cell * CardRows * cardVerticalScale
}

func dist(a, b Point2) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// cardGrid maps frame points into the rectified grid.
type cardGrid struct {
	m    [3][3]float64
	size image.Point
}

func newCardGrid(corners []Point2) (*cardGrid, error) {
	if len(corners) != 4 {
		return nil, fmt.Errorf("card grid: need 4 corners, got %d", len(corners))
	}
	src := orderPoints(corners)
	w, h := targetSize(src)
	if w <= 0 || h <= 0 {
		return nil, errors.New("card grid: corners are degenerate")
	}
	dst := [4]Point2{{0, 0}, {w, 0}, {w, h}, {0, h}}

	srcVec := gocv.NewPoint2fVectorFromPoints(toPoint2f(src))
	defer srcVec.Close()
	dstVec := gocv.NewPoint2fVectorFromPoints(toPoint2f(dst))
	defer dstVec.Close()

	tm := gocv.GetPerspectiveTransform2f(srcVec, dstVec)
	defer tm.Close()
	if tm.Empty() {
		return nil, errors.New("card grid: perspective transform failed")
	}

	g := &cardGrid{size: image.Pt(int(w), int(h))}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			g.m[r][c] = tm.GetDoubleAt(r, c)
		}
	}
	return g, nil
}

func toPoint2f(pts [4]Point2) []gocv.Point2f {
	out := make([]gocv.Point2f, len(pts))
	for i, p := range pts {
		out[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	return out
}

// project applies the homography to p.
func (g *cardGrid) project(p Point2) Point2 {
	m := g.m
	w := m[2][0]*p.X + m[2][1]*p.Y + m[2][2]
	if w == 0 {
		return Point2{X: math.Inf(1), Y: math.Inf(1)}
	}
	return Point2{
		X: (m[0][0]*p.X + m[0][1]*p.Y + m[0][2]) / w,
		Y: (m[1][0]*p.X + m[1][1]*p.Y + m[1][2]) / w,
	}
}

// assignCards keeps the most confident detection per cell. Detections whose
// centre projects outside the grid are dropped.
func assignCards(dets []detector.Detection, project func(Point2) Point2, size image.Point) [CardRows][CardCols]string {
	var labels [CardRows][CardCols]string
	var best [CardRows][CardCols]float32

	cellW := float64(size.X) / CardCols
	cellH := float64(size.Y) / CardRows

	for _, d := range dets {
		center := Point2{
			X: float64(d.Box.Min.X+d.Box.Max.X) / 2,
			Y: float64(d.Box.Min.Y+d.Box.Max.Y) / 2,
		}
		p := project(center)
		if p.X < 0 || p.X >= float64(size.X) || p.Y < 0 || p.Y >= float64(size.Y) {
			continue
		}

		col := clampInt(int(math.Floor(p.X/cellW)), 0, CardCols-1)
		row := clampInt(int(math.Floor(p.Y/cellH)), 0, CardRows-1)
		if d.Confidence > best[row][col] {
			best[row][col] = d.Confidence
			labels[row][col] = d.Label
		}
	}
	return labels
}

// formatCards renders the grid row by row.
func formatCards(labels [CardRows][CardCols]string) string {
	parts := make([]string, 0, CardRows*CardCols)
	for r := 0; r < CardRows; r++ {
		for c := 0; c < CardCols; c++ {
			label := labels[r][c]
			if label == "" {
				label = cardEmpty
			}
			parts = append(parts, fmt.Sprintf("%d,%d,%s", r, c, label))
		}
	}
	return strings.Join(parts, ",")
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
