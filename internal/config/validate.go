package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateCups(); err != nil {
		return err
	}
	if err := c.validateZones(); err != nil {
		return err
	}
	if err := c.validateColors(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateCamera() error {
	if c.Camera.ControlURL == "" {
		return nil
	}
	u, err := url.Parse(c.Camera.ControlURL)
	if err != nil {
		return fmt.Errorf("camera.control_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("camera.control_url must be an http(s) URL, got %q", c.Camera.ControlURL)
	}
	return nil
}

func (c *Config) validateCups() error {
	if c.Cups.RequiredDefault < 1 || c.Cups.RequiredDefault > len(c.Zones) {
		return fmt.Errorf("cups.required_default must be between 1 and the zone count (%d)", len(c.Zones))
	}
	if c.Cups.DisappearanceThreshold <= 0 {
		return errors.New("cups.disappearance_threshold must be positive")
	}
	if c.Cups.StopTime <= 0 {
		return errors.New("cups.stop_time must be positive")
	}
	if c.Cups.ConfidenceThreshold <= 0 || c.Cups.ConfidenceThreshold > 1 {
		return errors.New("cups.confidence_threshold must be in (0, 1]")
	}
	if c.Cups.FallbackFrames < 1 {
		return errors.New("cups.fallback_frames must be at least 1")
	}
	if c.Cups.MinBlobArea < 0 {
		return errors.New("cups.min_blob_area must not be negative")
	}
	return nil
}

func (c *Config) validateZones() error {
	if len(c.Zones) == 0 {
		return errors.New("at least one [[zones]] entry is required")
	}
	for i, z := range c.Zones {
		if z.W <= 0 || z.H <= 0 {
			return fmt.Errorf("zones[%d]: width and height must be positive", i)
		}
		if z.X < 0 || z.Y < 0 {
			return fmt.Errorf("zones[%d]: position must not be negative", i)
		}
	}
	return nil
}

func (c *Config) validateColors() error {
	if len(c.Colors) == 0 {
		return errors.New("at least one [[colors]] entry is required")
	}
	seen := make(map[string]bool, len(c.Colors))
	for i, col := range c.Colors {
		if col.Name == "" {
			return fmt.Errorf("colors[%d]: name is required", i)
		}
		if seen[col.Name] {
			return fmt.Errorf("colors[%d]: duplicate colour %q", i, col.Name)
		}
		seen[col.Name] = true

		if _, err := col.Profile(); err != nil {
			return fmt.Errorf("colors[%d]: %w", i, err)
		}
	}
	return nil
}
