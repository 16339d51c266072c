package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ayusman/boardsight/internal/camera"
)

// CameraSettings reads and updates the camera configuration.
type CameraSettings interface {
	Current() camera.Settings
	Apply(ctx context.Context, overrides camera.Settings) error
}

// CameraHandler serves GET and PUT /api/camera.
type CameraHandler struct {
	camera CameraSettings
}

// NewCameraHandler creates a CameraHandler.
func NewCameraHandler(c CameraSettings) *CameraHandler {
	return &CameraHandler{camera: c}
}

// ServeHTTP implements the http.Handler interface.
func (h *CameraHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, h.camera.Current())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// update applies the settings in the body. Unknown keys are rejected.
func (h *CameraHandler) update(w http.ResponseWriter, r *http.Request) {
	var s camera.Settings
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := s.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.camera.Apply(r.Context(), s); err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, h.camera.Current())
}
