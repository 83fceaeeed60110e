package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = "showroom.yaml"

// Load loads configuration with priority: defaults < file < flags.
// An explicit path must exist; otherwise the standard locations are tried
// and a missing file is not an error. flags may be nil.
func Load(path string, flags *Flags) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	if flags != nil {
		if err := flags.apply(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		FileName,
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "showroom")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "showroom")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "showroom")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "showroom")
	}
}

// loadFromFile merges a YAML file over the values already in cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate rejects settings the viewer cannot work with.
func (c *Config) Validate() error {
	v := c.View
	switch {
	case v.FOV <= 0 || v.FOV >= 180:
		return fmt.Errorf("viewer.fov %v: must be between 0 and 180", v.FOV)
	case v.Near <= 0 || v.Far <= v.Near:
		return fmt.Errorf("viewer.near %v, viewer.far %v: need 0 < near < far", v.Near, v.Far)
	case v.FrameMargin <= 0:
		return fmt.Errorf("viewer.frame_margin %v: must be positive", v.FrameMargin)
	case v.LoadDelay < 0:
		return fmt.Errorf("viewer.load_delay %v: must not be negative", v.LoadDelay)
	case c.Render.FPS <= 0:
		return fmt.Errorf("render.fps %d: must be positive", c.Render.FPS)
	case c.Server.MaxUploadMB <= 0:
		return fmt.Errorf("server.max_upload_mb %d: must be positive", c.Server.MaxUploadMB)
	}
	return nil
}
