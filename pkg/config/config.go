// Package config provides configuration loading and management for cellcurvature.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"cellcurvature/internal/models"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Analysis parameters
	Analysis struct {
		NSamples          int     `yaml:"nSamples"`
		SegmentLength     int     `yaml:"segmentLength"`
		EdgeSegment       int     `yaml:"edgeSegment"`
		PixelSize         float64 `yaml:"pixelSize"`
		VectorWidth       float64 `yaml:"vectorWidth"`
		VectorDepth       float64 `yaml:"vectorDepth"`
		InteriorThreshold float64 `yaml:"interiorThreshold"`
		BorderMargin      float64 `yaml:"borderMargin"`
		MaxRadiusFactor   float64 `yaml:"maxRadiusFactor"`
	} `yaml:"analysis"`

	// Normal orientation parameters
	Normals struct {
		// TestDistance is the single-step probe used before voting
		TestDistance float64 `yaml:"testDistance"`

		// ProbeDistances are the distances sampled by the interior vote
		ProbeDistances []float64 `yaml:"probeDistances"`

		// VoteRatio is the fraction of probes that must land inside
		VoteRatio float64 `yaml:"voteRatio"`
	} `yaml:"normals"`

	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many frames are analysed in parallel
		NumWorkers int `yaml:"numWorkers"`

		// Mode is one of coordinated, curvature or intensity
		Mode string `yaml:"mode"`

		// MinSize is the minimum connected component area in pixels
		MinSize int `yaml:"minSize"`

		SmoothingMethod string  `yaml:"smoothingMethod"`
		SmoothingSigma  float64 `yaml:"smoothingSigma"`
		ResampleSize    int     `yaml:"resampleSize"`

		// OutlierZ flags frames whose mean window intensity deviates from
		// the stack mean by more than this many standard deviations
		OutlierZ float64 `yaml:"outlierZ"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir receives the CSV tables, plots and debug images
		Dir string `yaml:"dir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// Plot writes the scatter and profile plots
		Plot bool `yaml:"plot"`

		// DebugImages writes one overlay image per frame
		DebugImages bool `yaml:"debugImages"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	p := models.DefaultParameters()

	cfg.Analysis.NSamples = p.NSamples
	cfg.Analysis.SegmentLength = p.SegmentLength
	cfg.Analysis.EdgeSegment = p.EdgeSegment
	cfg.Analysis.PixelSize = p.PixelSize
	cfg.Analysis.VectorWidth = p.VectorWidth
	cfg.Analysis.VectorDepth = p.VectorDepth
	cfg.Analysis.InteriorThreshold = p.InteriorThreshold
	cfg.Analysis.BorderMargin = p.BorderMargin
	cfg.Analysis.MaxRadiusFactor = p.MaxRadiusFactor

	cfg.Normals.TestDistance = p.NormalTestDistance
	cfg.Normals.ProbeDistances = append([]float64(nil), p.NormalProbeDistances...)
	cfg.Normals.VoteRatio = p.NormalVoteRatio

	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Mode = "coordinated"
	cfg.Processing.MinSize = p.MinSize
	cfg.Processing.SmoothingMethod = p.SmoothingMethod
	cfg.Processing.SmoothingSigma = p.SmoothingSigma
	cfg.Processing.ResampleSize = p.ResampleSize
	cfg.Processing.OutlierZ = 3

	cfg.Output.Dir = "results"
	cfg.Output.Verbose = false
	cfg.Output.Plot = true
	cfg.Output.DebugImages = false

	return cfg
}

// Parameters converts the configuration into the analysis parameter set.
func (c *Config) Parameters() models.AnalysisParameters {
	return models.AnalysisParameters{
		NSamples:             c.Analysis.NSamples,
		SegmentLength:        c.Analysis.SegmentLength,
		EdgeSegment:          c.Analysis.EdgeSegment,
		PixelSize:            c.Analysis.PixelSize,
		VectorWidth:          c.Analysis.VectorWidth,
		VectorDepth:          c.Analysis.VectorDepth,
		InteriorThreshold:    c.Analysis.InteriorThreshold,
		BorderMargin:         c.Analysis.BorderMargin,
		SmoothingSigma:       c.Processing.SmoothingSigma,
		SmoothingMethod:      c.Processing.SmoothingMethod,
		ResampleSize:         c.Processing.ResampleSize,
		MinSize:              c.Processing.MinSize,
		MaxRadiusFactor:      c.Analysis.MaxRadiusFactor,
		NormalTestDistance:   c.Normals.TestDistance,
		NormalProbeDistances: append([]float64(nil), c.Normals.ProbeDistances...),
		NormalVoteRatio:      c.Normals.VoteRatio,
	}
}

// Validate checks the analysis parameters and the processing settings.
func (c *Config) Validate() error {
	if err := c.Parameters().Validate(); err != nil {
		return err
	}
	if c.Processing.NumWorkers < 0 {
		return fmt.Errorf("numWorkers must not be negative, got %d: %w", c.Processing.NumWorkers, models.ErrInvalidParameters)
	}
	if c.Processing.OutlierZ < 0 {
		return fmt.Errorf("outlierZ must not be negative, got %g: %w", c.Processing.OutlierZ, models.ErrInvalidParameters)
	}
	switch c.Processing.Mode {
	case "", "coordinated", "both", "curvature", "intensity":
	default:
		return fmt.Errorf("unknown mode %q: %w", c.Processing.Mode, models.ErrInvalidParameters)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Keys missing from the file keep their defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
