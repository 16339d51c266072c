package games

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/boardsight/internal/camera"
	"github.com/ayusman/boardsight/internal/plugin"
	"github.com/ayusman/boardsight/internal/vision"
)

// Cube scanning geometry.
const (
	RubikGridSize  = 300
	RubikCellCount = 3
	rubikCellSize  = RubikGridSize / RubikCellCount

	// DefaultRubikScans is the number of scans collected before solving.
	DefaultRubikScans = 11
)

// ErrFrameTooSmall is returned when a frame cannot hold the scanning square.
var ErrFrameTooSmall = errors.New("frame smaller than the scanning square")

// faceMoves numbers the faces the way the robot expects them. B never
// appears in solutions for this cube orientation.
var faceMoves = map[byte]string{
	'U': "1",
	'F': "2",
	'D': "3",
	'R': "4",
	'L': "5",
}

// RubikProfiles returns the sticker colour table, named by sticker letter.
// White and red use dedicated bounds; the rest are derived from BGR references.
func RubikProfiles() []vision.ColorProfile {
	return []vision.ColorProfile{
		{Name: "R", Lower: vision.HSV{H: 0, S: 100, V: 50}, Upper: vision.HSV{H: 10, S: 255, V: 255}},
		{Name: "W", Lower: vision.HSV{H: 0, S: 0, V: 150}, Upper: vision.HSV{H: vision.MaxHue, S: 60, V: 255}},
		vision.ProfileFromBGR("B", 230, 216, 173),
		vision.ProfileFromBGR("G", 80, 210, 90),
		vision.ProfileFromBGR("Y", 65, 210, 200),
		vision.ProfileFromBGR("O", 80, 140, 235),
	}
}

// Solver turns a list of face scans into a solver move string such as
// "U1 R2 F3 (3f)".
type Solver interface {
	Solve(ctx context.Context, scans []string) (string, error)
}

// PluginSolver solves cubes through the external solver plugin.
type PluginSolver struct {
	Plugins  *plugin.Manager
	Executor *plugin.Executor
	Name     string
	// Command overrides the solver program the plugin runs.
	Command []string
}

type solverConfig struct {
	Command []string `json:"command,omitempty"`
}

type solveParams struct {
	Scans []string `json:"scans"`
}

type solveResult struct {
	Solution string `json:"solution"`
}

// Solve calls the plugin's "solve" action.
func (s PluginSolver) Solve(ctx context.Context, scans []string) (string, error) {
	p, err := s.Plugins.Get(s.Name)
	if err != nil {
		return "", fmt.Errorf("rubik solver: %w", err)
	}

	call := plugin.Call{Action: "solve", Game: "rubik", Params: solveParams{Scans: scans}}
	if len(s.Command) > 0 {
		call.Config = solverConfig{Command: s.Command}
	}

	var out solveResult
	if err := s.Executor.Invoke(ctx, p, call, &out); err != nil {
		return "", err
	}
	if out.Solution == "" {
		return "", fmt.Errorf("rubik solver %s returned no solution", p.Name())
	}
	return out.Solution, nil
}

// Rubik collects face scans across requests and solves the cube once enough
// scans arrived.
type Rubik struct {
	solver   Solver
	needed   int
	profiles []vision.ColorProfile
	log      *slog.Logger

	mu    sync.Mutex
	scans []string
}

// NewRubik creates a scanner that solves after needed scans. A non-positive
// needed selects DefaultRubikScans.
func NewRubik(solver Solver, needed int, logger *slog.Logger) *Rubik {
	if needed <= 0 {
		needed = DefaultRubikScans
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rubik{
		solver:   solver,
		needed:   needed,
		profiles: RubikProfiles(),
		log:      logger.With("component", "rubik"),
	}
}

// Game returns the rubik game backed by r.
func (r *Rubik) Game() Game {
	return Game{
		Name:   "rubik",
		Camera: camera.Settings{Brightness: camera.Int(50)},
		Handle: r.Handle,
	}
}

// Handle scans the centred square of frame. It returns NoResult until the
// last scan arrives, then the mapped solution.
func (r *Rubik) Handle(ctx context.Context, frame gocv.Mat) (string, error) {
	cells, err := r.cellColors(frame)
	if err != nil {
		return "", err
	}
	return r.AddScan(ctx, strings.Join(cells, ""))
}

// AddScan records one nine-sticker scan and solves once enough were collected.
// The collected scans are cleared after every solve attempt.
func (r *Rubik) AddScan(ctx context.Context, scan string) (string, error) {
	r.mu.Lock()
	r.scans = append(r.scans, scan)
	n := len(r.scans)
	r.log.Info("scan completed", "scan", n, "stickers", scan)
	if n < r.needed {
		r.mu.Unlock()
		return NoResult, nil
	}
	scans := r.scans
	r.scans = nil
	r.mu.Unlock()

	sol, err := r.solver.Solve(ctx, scans)
	if err != nil {
		return "", fmt.Errorf("solve cube: %w", err)
	}
	if strings.HasPrefix(sol, "Error") {
		return "", fmt.Errorf("solve cube: %s", sol)
	}

	moves, err := mapSolution(sol)
	if err != nil {
		return "", err
	}
	r.log.Info("cube solved", "moves", moves)
	return moves, nil
}

// Pending returns the number of scans collected so far.
func (r *Rubik) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scans)
}

// cellColors classifies the nine cells of the centred scanning square in
// row-major order.
func (r *Rubik) cellColors(frame gocv.Mat) ([]string, error) {
	w, h := frame.Cols(), frame.Rows()
	if w < RubikGridSize || h < RubikGridSize {
		return nil, fmt.Errorf("%w: %dx%d", ErrFrameTooSmall, w, h)
	}

	x0 := (w - RubikGridSize) / 2
	y0 := (h - RubikGridSize) / 2
	square := frame.Region(image.Rect(x0, y0, x0+RubikGridSize, y0+RubikGridSize))
	defer square.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(square, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()

	counts := make([]int, len(r.profiles))
	colors := make([]string, 0, RubikCellCount*RubikCellCount)
	for row := 0; row < RubikCellCount; row++ {
		for col := 0; col < RubikCellCount; col++ {
			x, y := col*rubikCellSize, row*rubikCellSize
			cell := hsv.Region(image.Rect(x, y, x+rubikCellSize, y+rubikCellSize))
			for i, p := range r.profiles {
				gocv.InRangeWithScalar(cell, p.Lower.Scalar(), p.Upper.Scalar(), &mask)
				counts[i] = gocv.CountNonZero(mask)
			}
			cell.Close()

			c, ok := dominantColor(r.profiles, counts)
			if !ok {
				return nil, fmt.Errorf("cell %d,%d: no sticker colour matched", row, col)
			}
			colors = append(colors, c)
		}
	}
	return colors, nil
}

// dominantColor returns the profile with the most pixels. Ties keep the
// earlier profile; no pixels at all is no match.
func dominantColor(profiles []vision.ColorProfile, counts []int) (string, bool) {
	best, most := "", 0
	for i, p := range profiles {
		if counts[i] > most {
			best, most = p.Name, counts[i]
		}
	}
	return best, most > 0
}

// mapSolution converts a solver move string into the robot's move codes:
// the trailing token (the move count) is dropped and each move's face letter
// is replaced by its number, keeping the turn suffix.
func mapSolution(sol string) (string, error) {
	tokens := strings.Fields(sol)
	if len(tokens) > 0 {
		tokens = tokens[:len(tokens)-1]
	}

	moves := make([]string, 0, len(tokens))
	for _, t := range tokens {
		code, ok := faceMoves[t[0]]
		if !ok || len(t) < 2 {
			return "", fmt.Errorf("solve cube: unexpected move %q", t)
		}
		moves = append(moves, code+t[1:2])
	}
	return strings.Join(moves, ","), nil
}
