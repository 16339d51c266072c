// Package cups implements the cups game: a detection and tracking state
// machine that settles which coloured cup stands in which zone.
package cups

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/boardsight/internal/camera"
	"github.com/ayusman/boardsight/internal/capture"
	"github.com/ayusman/boardsight/internal/vision"
	"github.com/ayusman/boardsight/internal/zone"
)

var (
	// ErrRunActive is returned by Start while another run owns the camera.
	ErrRunActive = errors.New("a cups run is already active")
	// ErrInvalidRequired is returned by Start for a required count outside 1..zones.
	ErrInvalidRequired = errors.New("required objects out of range")
)

// Segmenter extracts colour blobs from a frame.
type Segmenter interface {
	Segment(frame gocv.Mat) []vision.Blob
}

// CameraControl pushes camera setting overrides.
type CameraControl interface {
	Apply(ctx context.Context, overrides camera.Settings) error
}

// Status is the outcome of a run.
type Status string

// Run statuses.
const (
	StatusRunning Status = "running"
	StatusSettled Status = "settled"
	StatusFailed  Status = "failed"
	StatusAborted Status = "aborted"
)

// Record describes one run for the history.
type Record struct {
	ID         string
	Required   int
	Status     Status
	Result     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder persists run records.
type Recorder interface {
	RecordStart(ctx context.Context, r Record) error
	RecordFinish(ctx context.Context, r Record) error
}

// EventType names a run event.
type EventType string

// Run events.
const (
	EventStarted EventType = "run.started"
	EventPhase   EventType = "run.phase"
	EventSettled EventType = "run.settled"
	EventFailed  EventType = "run.failed"
	EventAborted EventType = "run.aborted"
)

// Event reports run progress to listeners.
type Event struct {
	Type   EventType `json:"type"`
	RunID  string    `json:"run_id"`
	Phase  string    `json:"phase,omitempty"`
	Result string    `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// EventSink receives run events. Publish must not block.
type EventSink interface {
	Publish(ev Event)
}

// Config holds the collaborators and tuning of a Game.
type Config struct {
	Address    string
	Layout     zone.Layout
	Segmenter  Segmenter
	Trackers   TrackerFactory
	OpenCamera func(address string) capture.Camera

	// CameraOverrides are pushed through CameraControl before a run opens
	// the camera. A failed push is logged and the run continues.
	CameraControl   CameraControl
	CameraOverrides camera.Settings

	DisappearanceThreshold time.Duration
	StopTime               time.Duration
	ConfidenceThreshold    float64
	FallbackFrames         int

	Recorder Recorder
	Events   EventSink
	Logger   *slog.Logger
	Now      func() time.Time
}

// Game runs cups detection in the background and serves the latest settled result.
type Game struct {
	cfg     Config
	results *ResultStore
	log     *slog.Logger

	mu     sync.Mutex
	runID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGame validates cfg and creates a Game with an empty result.
func NewGame(cfg Config) (*Game, error) {
	if cfg.Layout.Len() == 0 {
		return nil, errors.New("cups: zone layout is empty")
	}
	if cfg.Segmenter == nil {
		return nil, errors.New("cups: segmenter is required")
	}
	if cfg.Trackers == nil {
		cfg.Trackers = ContribTrackers{}
	}
	if cfg.OpenCamera == nil {
		cfg.OpenCamera = capture.NewCamera
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Game{
		cfg:     cfg,
		results: NewResultStore(cfg.Layout.Len()),
		log:     logger.With("component", "cups"),
	}, nil
}

// Start begins a run in the background and returns its ID immediately.
func (g *Game) Start(required int) (string, error) {
	if required < 1 || required > g.cfg.Layout.Len() {
		return "", fmt.Errorf("%w: %d (zones: %d)", ErrInvalidRequired, required, g.cfg.Layout.Len())
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done != nil {
		return "", ErrRunActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	done := make(chan struct{})

	g.runID = id
	g.cancel = cancel
	g.done = done

	go g.run(ctx, id, required, done)

	return id, nil
}

// Abort cancels the active run before its next frame. It reports whether a run was active.
func (g *Game) Abort() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel == nil {
		return false
	}
	g.cancel()
	return true
}

// Active returns the ID of the active run, if any.
func (g *Game) Active() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.runID, g.done != nil
}

// Wait blocks until the active run, if any, has ended.
func (g *Game) Wait() {
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Result returns the latest settled result or NoResult. It never blocks on a run.
func (g *Game) Result() string {
	return g.results.Query()
}

// Results exposes the result store.
func (g *Game) Results() *ResultStore {
	return g.results
}

func (g *Game) run(ctx context.Context, id string, required int, done chan struct{}) {
	defer func() {
		g.mu.Lock()
		g.cancel()
		g.runID = ""
		g.cancel = nil
		g.done = nil
		g.mu.Unlock()
		close(done)
	}()

	rec := Record{ID: id, Required: required, Status: StatusRunning, StartedAt: g.cfg.Now()}
	log := g.log.With("run", id)

	if g.cfg.Recorder != nil {
		if err := g.cfg.Recorder.RecordStart(context.Background(), rec); err != nil {
			log.Warn("failed to record run start", "error", err)
		}
	}
	g.emit(Event{Type: EventStarted, RunID: id, Phase: PhaseIdle.String()})
	log.Info("cups run started", "required", required)

	result, err := g.loop(ctx, id, required)

	rec.FinishedAt = g.cfg.Now()
	switch {
	case err == nil:
		rec.Status = StatusSettled
		rec.Result = result
		g.emit(Event{Type: EventSettled, RunID: id, Result: result})
		log.Info("cups run settled", "result", result)
	case errors.Is(err, context.Canceled):
		rec.Status = StatusAborted
		g.emit(Event{Type: EventAborted, RunID: id})
		log.Info("cups run aborted")
	default:
		rec.Status = StatusFailed
		rec.Error = err.Error()
		g.emit(Event{Type: EventFailed, RunID: id, Error: err.Error()})
		log.Error("cups run failed", "error", err)
	}

	if g.cfg.Recorder != nil {
		if err := g.cfg.Recorder.RecordFinish(context.Background(), rec); err != nil {
			log.Warn("failed to record run finish", "error", err)
		}
	}
}

// loop owns the camera for the duration of a run. It returns the published
// result on settle, context.Canceled on abort, or the capture error.
func (g *Game) loop(ctx context.Context, id string, required int) (string, error) {
	if g.cfg.CameraControl != nil && !g.cfg.CameraOverrides.IsEmpty() {
		if err := g.cfg.CameraControl.Apply(ctx, g.cfg.CameraOverrides); err != nil {
			g.log.Warn("camera override not applied", "run", id, "error", err)
		}
	}

	cam := g.cfg.OpenCamera(g.cfg.Address)
	if err := cam.Open(); err != nil {
		return "", fmt.Errorf("open camera %q: %w", g.cfg.Address, err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			g.log.Warn("failed to close camera", "error", err)
		}
	}()

	s := newSession(g.cfg, required, func(p Phase) {
		g.emit(Event{Type: EventPhase, RunID: id, Phase: p.String()})
		g.log.Debug("cups phase changed", "run", id, "phase", p)
	})
	defer s.close()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		frame, err := cam.ReadFrame()
		if err != nil {
			return "", fmt.Errorf("read frame: %w", err)
		}

		settled, err := s.process(*frame, image.Rect(0, 0, frame.Cols(), frame.Rows()), g.cfg.Now())
		frame.Close()
		if err != nil {
			return "", err
		}
		if settled {
			if err := g.results.Publish(s.scratch); err != nil {
				return "", err
			}
			return g.results.Query(), nil
		}
	}
}

func (g *Game) emit(ev Event) {
	if g.cfg.Events == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = g.cfg.Now()
	}
	g.cfg.Events.Publish(ev)
}

// session is the state of one run: detection, then tracking and judging.
type session struct {
	layout     zone.Layout
	segmenter  Segmenter
	stabilizer *Stabilizer
	bank       *Bank
	judge      *Judge
	required   int
	tracking   bool
	scratch    []string
	onPhase    func(Phase)
}

func newSession(cfg Config, required int, onPhase func(Phase)) *session {
	return &session{
		layout:     cfg.Layout,
		segmenter:  cfg.Segmenter,
		stabilizer: NewStabilizer(required, cfg.DisappearanceThreshold),
		bank:       NewBank(cfg.Layout, cfg.Trackers, cfg.ConfidenceThreshold, cfg.FallbackFrames),
		judge:      NewJudge(required, cfg.StopTime),
		required:   required,
		scratch:    make([]string, cfg.Layout.Len()),
		onPhase:    onPhase,
	}
}

// process handles one frame and reports whether the run settled on it.
func (s *session) process(frame gocv.Mat, bounds image.Rectangle, now time.Time) (bool, error) {
	if !s.tracking {
		assigned := AssignBlobs(s.segmenter.Segment(frame), s.layout)

		prev := s.stabilizer.Phase()
		phase := s.stabilizer.Observe(now, assigned)
		if phase != prev && s.onPhase != nil {
			s.onPhase(phase)
		}
		if phase != PhaseHandoff {
			return false, nil
		}

		if err := s.bank.Init(frame, s.stabilizer.Seeds()); err != nil {
			return false, fmt.Errorf("start tracking: %w", err)
		}
		s.tracking = true
		return false, nil
	}

	valid, slots := s.bank.Step(frame, bounds)
	if valid != s.required {
		clear(s.scratch)
		return s.judge.Observe(now, valid), nil
	}

	// The streak holds one credited layout; a move between zones starts a new one.
	if !slices.Equal(slots, s.scratch) {
		copy(s.scratch, slots)
		s.judge.Reset()
	}
	return s.judge.Observe(now, valid), nil
}

func (s *session) close() {
	s.bank.Close()
}
