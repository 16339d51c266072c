package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// ErrPluginNotFound is returned by Get for names that were not discovered.
var ErrPluginNotFound = errors.New("plugin not found")

// Manager keeps the set of plugins installed under one root directory.
type Manager struct {
	root string
	log  *slog.Logger

	mu        sync.RWMutex
	installed map[string]*Plugin
}

// NewManager returns a Manager for root. Nothing is read until Discover.
func NewManager(root string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		root:      root,
		log:       logger.With("component", "plugin"),
		installed: map[string]*Plugin{},
	}
}

// Discover replaces the installed set with the plugins found one level below
// the root. Directories without a manifest are ignored; broken manifests are
// logged and skipped. A missing root yields an empty set.
func (m *Manager) Discover() error {
	found, err := m.scan()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.installed = found
	m.mu.Unlock()

	m.log.Debug("plugins discovered", "root", m.root, "count", len(found))
	return nil
}

func (m *Manager) scan() (map[string]*Plugin, error) {
	found := map[string]*Plugin{}

	info, err := os.Stat(m.root)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return found, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat plugin root: %w", err)
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("read plugin root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.root, entry.Name())
		p, err := load(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			m.log.Warn("skipping plugin", "dir", dir, "error", err)
			continue
		}
		if prev, dup := found[p.Name()]; dup {
			m.log.Warn("duplicate plugin name; keeping first", "plugin", p.Name(), "kept", prev.Dir, "ignored", dir)
			continue
		}
		found[p.Name()] = p
		m.log.Debug("plugin loaded", "plugin", p.Name(), "version", p.Manifest.Version, "actions", p.Manifest.Actions)
	}
	return found, nil
}

// load reads and validates the manifest in dir. A missing manifest surfaces
// as fs.ErrNotExist.
func load(dir string) (*Plugin, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ManifestFile, err)
	}
	if err := manifest.validate(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Plugin{
		Manifest:   manifest,
		Dir:        abs,
		Executable: filepath.Join(abs, filepath.FromSlash(manifest.Executable)),
	}, nil
}

// Get returns the plugin registered under name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	p, ok := m.installed[name]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return p, nil
}

// List returns the installed plugins ordered by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	out := make([]*Plugin, 0, len(m.installed))
	for _, p := range m.installed {
		out = append(out, p)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Plugin) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// Root returns the directory scanned by Discover.
func (m *Manager) Root() string {
	return m.root
}
