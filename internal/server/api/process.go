package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/boardsight/internal/camera"
	"github.com/ayusman/boardsight/internal/capture"
	"github.com/ayusman/boardsight/internal/games"
	"github.com/ayusman/boardsight/internal/store"
)

// maxUploadBytes bounds the size of an uploaded frame.
const maxUploadBytes = 16 << 20

// GameLookup finds the handler for an action name.
type GameLookup interface {
	Lookup(name string) (games.Game, error)
}

// CameraApplier pushes camera setting overrides.
type CameraApplier interface {
	Apply(ctx context.Context, overrides camera.Settings) error
}

// RequestLogger records processed requests.
type RequestLogger interface {
	Create(ctx context.Context, req *store.Request) error
}

// ProcessHandler serves POST /process?action=NAME. The frame is the
// multipart "image" field or, without one, the raw request body.
//
// Responses are plain text: the game's answer with 200, "error" with 400 for
// a missing or unknown action or an undecodable image, and "error: ..." with
// 500 when the game fails.
type ProcessHandler struct {
	games    GameLookup
	camera   CameraApplier
	requests RequestLogger
	log      *slog.Logger
}

// NewProcessHandler creates a ProcessHandler. camera and requests may be nil.
func NewProcessHandler(g GameLookup, cam CameraApplier, requests RequestLogger, logger *slog.Logger) *ProcessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessHandler{
		games:    g,
		camera:   cam,
		requests: requests,
		log:      logger.With("component", "process"),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *ProcessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	log := h.log.With("remote", r.RemoteAddr)

	action := r.URL.Query().Get("action")
	if action == "" {
		log.Error("no action specified in request")
		WriteText(w, http.StatusBadRequest, "error")
		return
	}
	log = log.With("action", action)
	log.Info("received request")

	game, err := h.games.Lookup(action)
	if err != nil {
		log.Error("no game found for action")
		WriteText(w, http.StatusBadRequest, "error")
		return
	}

	data, err := readImage(r)
	if err != nil {
		log.Error("failed to read image", "error", err)
		h.finish(r.Context(), w, action, http.StatusBadRequest, "error", start)
		return
	}
	frame, err := capture.DecodeImage(data)
	if err != nil {
		log.Error("failed to open image", "error", err)
		h.finish(r.Context(), w, action, http.StatusBadRequest, "error", start)
		return
	}
	defer frame.Close()

	if h.camera != nil && !game.Camera.IsEmpty() {
		if err := h.camera.Apply(r.Context(), game.Camera); err != nil {
			log.Warn("camera override not applied", "error", err)
		}
	}

	result, err := game.Handle(r.Context(), frame)
	if err != nil {
		log.Error("failed to process image", "error", err)
		h.finish(r.Context(), w, action, http.StatusInternalServerError, "error: "+err.Error(), start)
		return
	}

	log.Info("processed image", "result", result, "duration", time.Since(start))
	h.finish(r.Context(), w, action, http.StatusOK, result, start)
}

func (h *ProcessHandler) finish(ctx context.Context, w http.ResponseWriter, game string, status int, body string, start time.Time) {
	WriteText(w, status, body)

	if h.requests == nil {
		return
	}
	rec := &store.Request{
		Game:       game,
		Status:     status,
		Result:     body,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err := h.requests.Create(context.WithoutCancel(ctx), rec); err != nil {
		h.log.Warn("failed to record request", "error", err)
	}
}

// readImage returns the uploaded image bytes.
func readImage(r *http.Request) ([]byte, error) {
	body := http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = body
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return nil, errors.New("multipart request without an image field")
			}
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	return io.ReadAll(body)
}
