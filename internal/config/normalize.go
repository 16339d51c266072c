package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeLogging()
	c.normalizeCamera()
	c.normalizeBoard()
	c.normalizeModels()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Plugins.Dir) == "" {
		c.Plugins.Dir = defaultPluginDir
	}
	if c.Plugins.Dir, err = expandPath(c.Plugins.Dir); err != nil {
		return fmt.Errorf("plugins.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

func (c *Config) normalizeCamera() {
	c.Camera.Address = strings.TrimSpace(c.Camera.Address)
	if c.Camera.Address == "" {
		c.Camera.Address = defaultCameraAddress
	}
	c.Camera.ControlURL = strings.TrimRight(strings.TrimSpace(c.Camera.ControlURL), "/")
	if c.Camera.RequestTimeout <= 0 {
		c.Camera.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeBoard() {
	if len(c.Zones) == 0 {
		c.Zones = cloneZones(defaultZones)
	}
	if len(c.Colors) == 0 {
		c.Colors = cloneColors(defaultColors)
	}
	for i := range c.Colors {
		c.Colors[i].Name = strings.ToLower(strings.TrimSpace(c.Colors[i].Name))
	}
}

func (c *Config) normalizeModels() {
	if c.Models.XO.InputSize <= 0 {
		c.Models.XO.InputSize = defaultModelInputSize
	}
	if c.Models.Cards.InputSize <= 0 {
		c.Models.Cards.InputSize = defaultModelInputSize
	}
	if strings.TrimSpace(c.Models.CardsCoords) == "" {
		c.Models.CardsCoords = defaultCardsCoords
	}
	if c.Rubik.Scans <= 0 {
		c.Rubik.Scans = defaultRubikScans
	}
	if strings.TrimSpace(c.Rubik.SolverPlugin) == "" {
		c.Rubik.SolverPlugin = defaultSolverPlugin
	}
	if c.Plugins.TimeoutMs <= 0 {
		c.Plugins.TimeoutMs = defaultPluginTimeout
	}
}
