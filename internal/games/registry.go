// Package games holds the single-frame game handlers served by POST /process.
//
// Each handler receives a decoded BGR frame and returns the game's textual
// answer. Handlers are registered explicitly at startup; there is no
// init-time registration.
package games

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/boardsight/internal/camera"
)

// NoResult is returned by handlers that have nothing to report yet.
const NoResult = "-1"

// ErrUnknownGame is returned by Lookup for names that were never registered.
var ErrUnknownGame = errors.New("unknown game")

// HandlerFunc processes one frame. The frame is owned by the caller.
type HandlerFunc func(ctx context.Context, frame gocv.Mat) (string, error)

// Game is a named handler with the camera settings it expects.
type Game struct {
	Name string
	// Camera is pushed to the camera before the frame is processed. Unset
	// fields keep their current value.
	Camera camera.Settings
	Handle HandlerFunc
}

// Registry maps action names to games. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	games map[string]Game
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{games: make(map[string]Game)}
}

// Register adds g. Names must be unique and non-empty.
func (r *Registry) Register(g Game) error {
	if g.Name == "" {
		return errors.New("games: name is required")
	}
	if g.Handle == nil {
		return fmt.Errorf("games: %s: handler is required", g.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.games[g.Name]; ok {
		return fmt.Errorf("games: %s is already registered", g.Name)
	}
	r.games[g.Name] = g
	return nil
}

// Lookup returns the game registered under name.
func (r *Registry) Lookup(name string) (Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.games[name]
	if !ok {
		return Game{}, fmt.Errorf("%w: %q", ErrUnknownGame, name)
	}
	return g, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.games))
	for name := range r.games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
