package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/boardsight/internal/cups"
)

// CupsRunner controls background cups runs.
type CupsRunner interface {
	Start(required int) (string, error)
	Abort() bool
	Active() (string, bool)
	Result() string
}

// CupsHandler handles /api/cups/{start,result,abort,status}.
type CupsHandler struct {
	game            CupsRunner
	defaultRequired int
}

// NewCupsHandler creates a CupsHandler. defaultRequired is used when start
// is called without a required count.
func NewCupsHandler(game CupsRunner, defaultRequired int) *CupsHandler {
	return &CupsHandler{game: game, defaultRequired: defaultRequired}
}

type startResponse struct {
	RunID    string `json:"run_id"`
	Required int    `json:"required"`
}

type statusResponse struct {
	Active bool   `json:"active"`
	RunID  string `json:"run_id,omitempty"`
	Result string `json:"result"`
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *CupsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimPrefix(r.URL.Path, "/api/cups")
	op = strings.Trim(op, "/")

	switch {
	case op == "start" && r.Method == http.MethodPost:
		h.start(w, r)
	case op == "abort" && r.Method == http.MethodPost:
		h.abort(w)
	case op == "result" && r.Method == http.MethodGet:
		WriteText(w, http.StatusOK, h.game.Result())
	case op == "status" && r.Method == http.MethodGet:
		h.status(w)
	case op == "start" || op == "abort" || op == "result" || op == "status":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

// start handles POST /api/cups/start?required=N. The run continues in the
// background; the response only carries its ID.
func (h *CupsHandler) start(w http.ResponseWriter, r *http.Request) {
	required := h.defaultRequired
	if v := r.URL.Query().Get("required"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "required must be an integer")
			return
		}
		required = n
	}

	id, err := h.game.Start(required)
	switch {
	case errors.Is(err, cups.ErrRunActive):
		WriteError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, cups.ErrInvalidRequired):
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		WriteError(w, http.StatusInternalServerError, "Failed to start run")
		return
	}

	WriteJSON(w, http.StatusAccepted, startResponse{RunID: id, Required: required})
}

// abort handles POST /api/cups/abort.
func (h *CupsHandler) abort(w http.ResponseWriter) {
	if !h.game.Abort() {
		WriteError(w, http.StatusConflict, "no active run")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// status handles GET /api/cups/status.
func (h *CupsHandler) status(w http.ResponseWriter) {
	id, active := h.game.Active()
	WriteJSON(w, http.StatusOK, statusResponse{Active: active, RunID: id, Result: h.game.Result()})
}
