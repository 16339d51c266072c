// Package server assembles the boardsight HTTP surface: the game endpoint,
// the cups run controls, run history, camera settings and the event stream.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/boardsight/internal/games"
	"github.com/ayusman/boardsight/internal/server/api"
	"github.com/ayusman/boardsight/internal/store"
)

// Config lists the collaborators of a Server. Routes whose collaborator is
// nil are not mounted and answer 404.
type Config struct {
	StaticDir string
	Games     *games.Registry
	Cups      api.CupsRunner
	Store     *store.Store
	Camera    api.CameraSettings
	Events    *EventHub
	Logger    *slog.Logger

	// DefaultRequired is the cups object count used when start omits it.
	DefaultRequired int
}

// Server routes requests to the api handlers.
type Server struct {
	cfg     Config
	log     *slog.Logger
	started time.Time
	handler http.Handler
}

// New mounts the routes enabled by cfg.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     cfg.Logger.With("component", "http"),
		started: time.Now(),
	}
	s.handler = accessLog(s.log, s.routes())
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.health)

	cfg := s.cfg
	if cfg.Games != nil {
		var requests api.RequestLogger
		if cfg.Store != nil {
			requests = cfg.Store.Requests()
		}
		var overrides api.CameraApplier
		if cfg.Camera != nil {
			overrides = cfg.Camera
		}
		mux.Handle("/process", api.NewProcessHandler(cfg.Games, overrides, requests, cfg.Logger))
	}
	if cfg.Cups != nil {
		mux.Handle("/api/cups/", api.NewCupsHandler(cfg.Cups, cfg.DefaultRequired))
	}
	if cfg.Store != nil {
		history := api.NewHistoryHandler(cfg.Store.Runs(), cfg.Store.Requests())
		for _, pattern := range []string{"/api/runs", "/api/runs/", "/api/requests"} {
			mux.Handle(pattern, history)
		}
	}
	if cfg.Camera != nil {
		mux.Handle("/api/camera", api.NewCameraHandler(cfg.Camera))
	}
	if cfg.Events != nil {
		mux.Handle("/api/events", cfg.Events)
	}
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}
	return mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type healthResponse struct {
	Status     string   `json:"status"`
	Uptime     string   `json:"uptime"`
	Games      []string `json:"games,omitempty"`
	CupsActive *bool    `json:"cups_active,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.cfg.Games != nil {
		resp.Games = s.cfg.Games.Names()
	}
	if s.cfg.Cups != nil {
		_, active := s.cfg.Cups.Active()
		resp.CupsActive = &active
	}
	api.WriteJSON(w, http.StatusOK, resp)
}
