package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the HTTP listener configuration.
type Server struct {
	Bind string `toml:"bind"`
}

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Camera contains the video source and its control endpoint.
type Camera struct {
	// Address is a local device index ("0") or a stream URL.
	Address string `toml:"address"`
	// ControlURL is the base URL of the camera's /config endpoint. Empty disables overrides.
	ControlURL     string `toml:"control_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Cups contains tuning of the cups detection and tracking run. Durations are seconds.
type Cups struct {
	RequiredDefault        int     `toml:"required_default"`
	DisappearanceThreshold float64 `toml:"disappearance_threshold"`
	StopTime               float64 `toml:"stop_time"`
	ConfidenceThreshold    float64 `toml:"confidence_threshold"`
	FallbackFrames         int     `toml:"fallback_frames"`
	MinBlobArea            float64 `toml:"min_blob_area"`
}

// Zone is one region of interest in frame pixels.
type Zone struct {
	X int `toml:"x"`
	Y int `toml:"y"`
	W int `toml:"w"`
	H int `toml:"h"`
}

// Color names a colour either by a reference BGR value or by explicit HSV bounds.
type Color struct {
	Name  string    `toml:"name"`
	BGR   []int     `toml:"bgr,omitempty"`
	Lower []float64 `toml:"lower,omitempty"`
	Upper []float64 `toml:"upper,omitempty"`
}

// Rubik contains configuration of the cube scanner.
type Rubik struct {
	SolverPlugin string `toml:"solver_plugin"`
	Scans        int    `toml:"scans"`

	// SolverCommand is handed to the plugin as its "command" setting. Empty
	// leaves the choice to the plugin.
	SolverCommand []string `toml:"solver_command"`
}

// Plugins contains configuration of external plugin processes.
type Plugins struct {
	Dir       string `toml:"dir"`
	TimeoutMs int    `toml:"timeout_ms"`
}

// Model describes one ONNX detection model.
type Model struct {
	Path      string   `toml:"path"`
	Labels    []string `toml:"labels"`
	InputSize int      `toml:"input_size"`
}

// Models contains the pretrained detectors of the xo and card games.
type Models struct {
	XO          Model  `toml:"xo"`
	Cards       Model  `toml:"cards"`
	CardsCoords string `toml:"cards_coords"`
}

// Config encapsulates all configuration values for boardsight.
//
// Configuration sections by subsystem:
//   - Server: HTTP bind address
//   - Paths: data directory for the database and lock file
//   - Logging: log format and level
//   - Camera: video source and remote camera control
//   - Cups: detection and tracking thresholds
//   - Zones, Colors: the cups board layout and colour table
//   - Rubik, Plugins: cube scanning and the external solver
//   - Models: ONNX detectors for xo and matrix_cards
type Config struct {
	Server  Server  `toml:"server"`
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
	Camera  Camera  `toml:"camera"`
	Cups    Cups    `toml:"cups"`
	Zones   []Zone  `toml:"zones"`
	Colors  []Color `toml:"colors"`
	Rubik   Rubik   `toml:"rubik"`
	Plugins Plugins `toml:"plugins"`
	Models  Models  `toml:"models"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/boardsight/config.toml")
}

// SampleConfig returns a commented configuration file with every default.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the resolved path and whether a file existed there. A missing file
// yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Lists replace the defaults instead of merging into them.
		cfg.Zones = nil
		cfg.Colors = nil

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("boardsight.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data directory.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.DataDir, err)
	}
	return nil
}

// DatabasePath returns the location of the run history database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "boardsight.db")
}

// LockPath returns the location of the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "boardsight.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
