// Package plugin runs the external helper processes boardsight delegates work
// to, such as the rubik solver. Each plugin lives in its own directory under
// the plugin root with a plugin.json manifest next to its executable. One call
// is one process: a JSON Request on stdin, a JSON Response on stdout.
package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// ManifestFile is the manifest name looked up in every plugin directory.
const ManifestFile = "plugin.json"

// Manifest is the decoded plugin.json.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`

	// ConfigSchema documents the settings accepted in Request.Config. It is
	// kept verbatim and never interpreted here.
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// validate rejects manifests the executor could not run.
func (m Manifest) validate() error {
	switch {
	case strings.TrimSpace(m.Name) == "":
		return errors.New("manifest has no name")
	case strings.TrimSpace(m.Executable) == "":
		return fmt.Errorf("manifest %q has no executable", m.Name)
	case !filepath.IsLocal(filepath.FromSlash(m.Executable)):
		return fmt.Errorf("manifest %q: executable %q must stay inside the plugin directory", m.Name, m.Executable)
	case len(m.Actions) == 0:
		return fmt.Errorf("manifest %q declares no actions", m.Name)
	}
	return nil
}

// Supports reports whether action is declared by the manifest.
func (m Manifest) Supports(action string) bool {
	return slices.Contains(m.Actions, action)
}

// Request is written to the plugin's stdin.
type Request struct {
	Action string          `json:"action"`
	Game   string          `json:"game,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is an installed plugin ready to be executed.
type Plugin struct {
	Manifest Manifest

	// Dir is the plugin directory and the working directory of its process.
	Dir string

	// Executable is the absolute path of the program to start.
	Executable string
}

// Name returns the manifest name.
func (p *Plugin) Name() string { return p.Manifest.Name }
