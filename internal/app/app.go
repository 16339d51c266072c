// Package app wires configuration, storage, the camera and the games into the
// boardsight HTTP service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/ayusman/boardsight/internal/camera"
	"github.com/ayusman/boardsight/internal/capture"
	"github.com/ayusman/boardsight/internal/config"
	"github.com/ayusman/boardsight/internal/cups"
	"github.com/ayusman/boardsight/internal/detector"
	"github.com/ayusman/boardsight/internal/games"
	"github.com/ayusman/boardsight/internal/plugin"
	"github.com/ayusman/boardsight/internal/server"
	"github.com/ayusman/boardsight/internal/store"
	"github.com/ayusman/boardsight/internal/vision"
)

// Server timing.
const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// ErrAlreadyRunning is returned by Run when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another boardsight instance is already running")

// Config holds configuration options for the application.
type Config struct {
	Settings  *config.Config
	Logger    *slog.Logger
	StaticDir string

	// OpenCamera replaces the cups video source.
	OpenCamera func(address string) capture.Camera
	// Detectors replaces the model-backed detectors, keyed by game name.
	Detectors map[string]detector.Detector
	// Trackers replaces the contrib KCF/CSRT trackers of cups runs.
	Trackers cups.TrackerFactory
}

// App owns every long-lived component of the service.
type App struct {
	cfg *config.Config
	log *slog.Logger

	store     *store.Store
	lock      *flock.Flock
	plugins   *plugin.Manager
	camera    *camera.Manager
	segmenter *vision.Segmenter
	closers   []io.Closer
	registry  *games.Registry
	cups      *cups.Game
	events    *server.EventHub
	handler   *server.Server

	mu   sync.Mutex
	addr net.Addr
}

// New builds the application. Games whose model cannot be loaded are skipped
// with a warning; every other failure is returned.
func New(conf Config) (*App, error) {
	cfg := conf.Settings
	if cfg == nil {
		return nil, errors.New("app: settings are required")
	}
	logger := conf.Logger
	if logger == nil {
		logger = slog.Default()
	}

	layout, err := cfg.Layout()
	if err != nil {
		return nil, fmt.Errorf("zones: %w", err)
	}
	profiles, err := cfg.Profiles()
	if err != nil {
		return nil, fmt.Errorf("colors: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{
		cfg:       cfg,
		log:       logger,
		store:     st,
		lock:      flock.New(cfg.LockPath()),
		plugins:   plugin.NewManager(cfg.Plugins.Dir, logger),
		segmenter: vision.NewSegmenter(profiles, cfg.Cups.MinBlobArea),
		registry:  games.NewRegistry(),
		events:    server.NewEventHub(logger),
	}

	if url := cfg.Camera.ControlURL; url != "" {
		client := camera.NewClient(url, cfg.Camera.RequestTimeoutDuration())
		a.camera = camera.NewManager(client, logger)
	} else {
		logger.Info("camera control url not set; camera overrides disabled")
	}

	if err := a.plugins.Discover(); err != nil {
		logger.Warn("plugin discovery failed", "dir", cfg.Plugins.Dir, "error", err)
	}

	cupsCfg := cups.Config{
		Address:                cfg.Camera.Address,
		Layout:                 layout,
		Segmenter:              a.segmenter,
		Trackers:               conf.Trackers,
		OpenCamera:             conf.OpenCamera,
		DisappearanceThreshold: cfg.Cups.DisappearanceDuration(),
		StopTime:               cfg.Cups.StopDuration(),
		ConfidenceThreshold:    cfg.Cups.ConfidenceThreshold,
		FallbackFrames:         cfg.Cups.FallbackFrames,
		Recorder:               store.NewRunRecorder(st.Runs()),
		Events:                 a.events,
		Logger:                 logger,
	}
	if a.camera != nil {
		cupsCfg.CameraControl = a.camera
		cupsCfg.CameraOverrides = games.CupsCamera()
	}
	a.cups, err = cups.NewGame(cupsCfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.registerGames(conf.Detectors); err != nil {
		a.Close()
		return nil, err
	}

	srvCfg := server.Config{
		StaticDir:       conf.StaticDir,
		Games:           a.registry,
		Cups:            a.cups,
		DefaultRequired: cfg.Cups.RequiredDefault,
		Store:           st,
		Events:          a.events,
		Logger:          logger,
	}
	if a.camera != nil {
		srvCfg.Camera = a.camera
	}
	a.handler = server.New(srvCfg)

	logger.Info("games registered", "games", a.registry.Names())
	return a, nil
}

// registerGames fills the registry. Model-backed games are optional.
func (a *App) registerGames(overrides map[string]detector.Detector) error {
	layout, err := a.cfg.Layout()
	if err != nil {
		return err
	}
	if err := a.registry.Register(games.CupsSnapshot(a.segmenter, layout)); err != nil {
		return err
	}

	solver := games.PluginSolver{
		Plugins:  a.plugins,
		Executor: plugin.NewExecutor(a.cfg.Plugins.TimeoutMs),
		Name:     a.cfg.Rubik.SolverPlugin,
		Command:  a.cfg.Rubik.SolverCommand,
	}
	if err := a.registry.Register(games.NewRubik(solver, a.cfg.Rubik.Scans, a.log).Game()); err != nil {
		return err
	}
	if _, err := a.plugins.Get(solver.Name); err != nil {
		a.log.Warn("rubik solver plugin not installed", "plugin", solver.Name, "dir", a.plugins.Root())
	}

	if det := a.loadDetector("xo", a.cfg.Models.XO, overrides); det != nil {
		xo := games.NewXO(det, a.log)
		a.closers = append(a.closers, xo)
		if err := a.registry.Register(xo.Game()); err != nil {
			return err
		}
	}
	if det := a.loadDetector("matrix_cards", a.cfg.Models.Cards, overrides); det != nil {
		cards := games.NewCards(det, a.cfg.Models.CardsCoords, a.log)
		if err := a.registry.Register(cards.Game()); err != nil {
			return err
		}
	}
	return nil
}

// loadDetector returns the override for game or loads its model. It returns nil
// when the game has to be skipped.
func (a *App) loadDetector(game string, model config.Model, overrides map[string]detector.Detector) detector.Detector {
	if det, ok := overrides[game]; ok {
		a.closers = append(a.closers, det)
		return det
	}
	if model.Path == "" {
		a.log.Warn("no model configured; game disabled", "game", game)
		return nil
	}

	cfg := detector.DefaultConfig()
	cfg.ModelPath = model.Path
	cfg.Labels = model.Labels
	cfg.InputSize = model.InputSize
	det, err := detector.NewYOLO(cfg)
	if err != nil {
		a.log.Warn("failed to load model; game disabled", "game", game, "path", model.Path, "error", err)
		return nil
	}
	a.log.Info("model loaded", "game", game, "path", model.Path)
	a.closers = append(a.closers, det)
	return det
}

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Games returns the game registry.
func (a *App) Games() *games.Registry {
	return a.registry
}

// Cups returns the cups detection game.
func (a *App) Cups() *cups.Game {
	return a.cups
}

// Store returns the history store.
func (a *App) Store() *store.Store {
	return a.store
}

// Events returns the run event hub.
func (a *App) Events() *server.EventHub {
	return a.events
}

// Addr returns the listening address once Run has bound it.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Run takes the instance lock and serves HTTP until ctx is cancelled. An
// active cups run is aborted whenever serving stops.
func (a *App) Run(ctx context.Context) error {
	ok, err := a.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := a.lock.Unlock(); err != nil {
			a.log.Warn("failed to release lock", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", a.cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Server.Bind, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()

	a.log.Info("boardsight listening", "addr", ln.Addr().String(), "lock", a.cfg.LockPath())
	return a.serve(ctx, ln)
}

// serve handles connections on ln until ctx is cancelled or the listener
// fails. Both paths stop the active cups run before returning.
func (a *App) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		a.stopCups()
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("boardsight shutting down")
	a.stopCups()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// stopCups aborts the active cups run and waits until it released the camera.
func (a *App) stopCups() {
	if a.cups.Abort() {
		a.cups.Wait()
	}
}

// Close releases the game resources and the store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.segmenter != nil {
		if err := a.segmenter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
