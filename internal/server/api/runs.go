package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/boardsight/internal/store"
)

const defaultListLimit = 50

// RunLister reads the cups run history.
type RunLister interface {
	List(ctx context.Context, limit int) ([]*store.Run, error)
	GetByID(ctx context.Context, id string) (*store.Run, error)
}

// RequestLister reads the /process request log.
type RequestLister interface {
	List(ctx context.Context, game string, limit int) ([]store.Request, error)
}

// HistoryHandler serves the run history and the request log.
type HistoryHandler struct {
	runs     RunLister
	requests RequestLister
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(runs RunLister, requests RequestLister) *HistoryHandler {
	return &HistoryHandler{runs: runs, requests: requests}
}

type listRunsResponse struct {
	Runs []*store.Run `json:"runs"`
}

type listRequestsResponse struct {
	Requests []store.Request `json:"requests"`
}

// ServeHTTP routes /api/runs, /api/runs/{id} and /api/requests.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/requests") {
		h.listRequests(w, r, limit)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs"), "/")
	if id == "" {
		h.listRuns(w, r, limit)
		return
	}
	h.getRun(w, r, id)
}

func (h *HistoryHandler) listRuns(w http.ResponseWriter, r *http.Request, limit int) {
	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	WriteJSON(w, http.StatusOK, listRunsResponse{Runs: runs})
}

func (h *HistoryHandler) getRun(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Run not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

func (h *HistoryHandler) listRequests(w http.ResponseWriter, r *http.Request, limit int) {
	reqs, err := h.requests.List(r.Context(), r.URL.Query().Get("game"), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list requests")
		return
	}
	if reqs == nil {
		reqs = []store.Request{}
	}
	WriteJSON(w, http.StatusOK, listRequestsResponse{Requests: reqs})
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}
