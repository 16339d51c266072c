package camera

import (
	"context"
	"log/slog"
	"sync"
)

// Applier sends settings to a camera.
type Applier interface {
	Apply(ctx context.Context, s Settings) error
}

// Manager holds the last settings the camera accepted and only sends changes.
type Manager struct {
	client Applier
	log    *slog.Logger

	mu      sync.Mutex
	current Settings
}

// NewManager creates a manager assuming the camera runs with Defaults.
func NewManager(client Applier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client:  client,
		log:     logger.With("component", "camera"),
		current: Defaults(),
	}
}

// Current returns a copy of the cached camera settings.
func (m *Manager) Current() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Apply pushes the fields of overrides that differ from the cache. The cache
// only changes when the camera accepted the request.
func (m *Manager) Apply(ctx context.Context, overrides Settings) error {
	if err := overrides.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	changes := overrides.Diff(m.current)
	if changes.IsEmpty() {
		return nil
	}

	m.log.Info("sending camera configuration", "changes", changes.Query())
	if err := m.client.Apply(ctx, changes); err != nil {
		m.log.Error("failed to send camera configuration", "error", err)
		return err
	}

	m.current = m.current.Merge(changes.Clone())
	for key, vals := range changes.Values() {
		m.log.Info("camera configuration updated", "key", key, "value", vals[0])
	}
	return nil
}
