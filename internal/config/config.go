// Package config handles sunalign configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all settings.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Preview  PreviewConfig  `yaml:"preview"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AnalysisConfig holds the sun locator parameters.
type AnalysisConfig struct {
	Sigma           float64 `yaml:"sigma"`            // Frequency-domain Gaussian width
	MarkerRadius    float64 `yaml:"marker_radius"`    // Outer annotation ring, pixels
	MarkerThickness float64 `yaml:"marker_thickness"` // Outer ring thickness
	PointRadius     float64 `yaml:"point_radius"`     // Center dot ring, pixels
	PointThickness  float64 `yaml:"point_thickness"`  // Center ring thickness
}

// PreviewConfig controls downscaling and the annotated preview file.
type PreviewConfig struct {
	MaxWidth int    `yaml:"max_width"` // Images wider than this are reduced first; 0 disables
	Dir      string `yaml:"dir"`       // Empty writes next to the input
	Enabled  bool   `yaml:"enabled"`
}

// StoreConfig holds the results database settings.
type StoreConfig struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Sigma:           100,
			MarkerRadius:    50,
			MarkerThickness: 4,
			PointRadius:     5,
			PointThickness:  4,
		},
		Preview: PreviewConfig{
			MaxWidth: 1024,
			Dir:      "",
			Enabled:  true,
		},
		Store: StoreConfig{
			Path:    filepath.Join(ConfigDir(), "sunalign.db"),
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	a := c.Analysis
	if !(a.Sigma > 0) || math.IsInf(a.Sigma, 1) {
		return fmt.Errorf("%w: analysis.sigma must be positive and finite, got %v", ErrInvalid, a.Sigma)
	}
	if err := validateRing("marker", a.MarkerRadius, a.MarkerThickness); err != nil {
		return err
	}
	if err := validateRing("point", a.PointRadius, a.PointThickness); err != nil {
		return err
	}
	if c.Preview.MaxWidth < 0 {
		return fmt.Errorf("%w: preview.max_width must not be negative, got %d", ErrInvalid, c.Preview.MaxWidth)
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is empty", ErrInvalid)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown logging.level %q", ErrInvalid, c.Logging.Level)
	}
	return nil
}

func validateRing(name string, radius, thickness float64) error {
	if !(radius > 0) {
		return fmt.Errorf("%w: analysis.%s_radius must be positive, got %v", ErrInvalid, name, radius)
	}
	if !(thickness > 0) || thickness > radius {
		return fmt.Errorf("%w: analysis.%s_thickness must be in (0, radius], got %v", ErrInvalid, name, thickness)
	}
	return nil
}
