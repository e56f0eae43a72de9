// Package config provides configuration loading and management for bacteriahts.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"bacteriahts/internal/models"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Strains maps a strain name to its plotting constants
	Strains map[string]models.StrainConfig `yaml:"strains"`

	// Brightfield extractor parameters
	BF struct {
		// Bandpass is the ImageJ "Bandpass Filter..." option string
		Bandpass string `yaml:"bandpass"`

		// Threshold is the auto-threshold method, optionally followed by "dark"
		Threshold string `yaml:"threshold"`

		// IntermediaryDir receives bandpassed and mask images when non-empty
		IntermediaryDir string `yaml:"intermediaryDir"`
	} `yaml:"bf"`

	// Propidium iodide extractor parameters
	PI struct {
		// Threshold is the auto-threshold method, optionally followed by "dark"
		Threshold string `yaml:"threshold"`

		// Backgrounds maps a resolution label (1920x1200) to a background image path
		Backgrounds map[string]string `yaml:"backgrounds"`
	} `yaml:"pi"`

	// Subgroup visualizer parameters
	Visualizer struct {
		// Group1EdgeRule and Group2EdgeRule are "right-closed" or "left-closed"
		Group1EdgeRule string `yaml:"group1EdgeRule"`
		Group2EdgeRule string `yaml:"group2EdgeRule"`

		// Group2Floor is the minimum upper bound of the group2 bin range
		Group2Floor float64 `yaml:"group2Floor"`

		// MaxGroup2Bins caps the group2 bin count; zero disables the cap
		MaxGroup2Bins int `yaml:"maxGroup2Bins"`

		// Averages enables the per-sheet average plot
		Averages bool `yaml:"averages"`

		// Summary enables the bin membership bar chart
		Summary bool `yaml:"summary"`
	} `yaml:"visualizer"`

	// Output parameters
	Output struct {
		// Dir is where tables and plots are written
		Dir string `yaml:"dir"`

		// ResultsDB is an optional SQLite file receiving feature rows
		ResultsDB string `yaml:"resultsDB"`

		// LogLevel is a zerolog level name
		LogLevel string `yaml:"logLevel"`
	} `yaml:"output"`
}

// ConfigurationError reports a strain name missing from the strain table
type ConfigurationError struct {
	Strain string
	Known  []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown strain %q (known: %s)", e.Strain, strings.Join(e.Known, ", "))
}

// DefaultStrains returns the built-in strain table
func DefaultStrains() map[string]models.StrainConfig {
	return map[string]models.StrainConfig{
		"Ab": {
			ZLim:         95,
			SubgroupStep: 10,
			XLim:         [2]float64{0, 180},
			YLim:         [2]float64{0, 180},
		},
		"PAO1": {
			ZLim:         160,
			SubgroupStep: 20,
			XLim:         [2]float64{0, 180},
			YLim:         [2]float64{0, 180},
		},
		"SA": {
			ZLim:         160,
			SubgroupStep: 10,
			XLim:         [2]float64{0, 180},
			YLim:         [2]float64{0, 180},
		},
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Strains = DefaultStrains()

	// Option strings are part of the output contract; changing them breaks
	// comparability with earlier experiments.
	cfg.BF.Bandpass = "filter_large=40 filter_small=3 suppress=None tolerance=5 autoscale"
	cfg.BF.Threshold = "Default"

	cfg.PI.Threshold = "RenyiEntropy dark"
	cfg.PI.Backgrounds = map[string]string{}

	cfg.Visualizer.Group1EdgeRule = "right-closed"
	cfg.Visualizer.Group2EdgeRule = "right-closed"
	cfg.Visualizer.Group2Floor = 200
	cfg.Visualizer.MaxGroup2Bins = 100
	cfg.Visualizer.Averages = true
	cfg.Visualizer.Summary = true

	cfg.Output.Dir = "."
	cfg.Output.LogLevel = "info"

	return cfg
}

// Lookup returns the plotting constants of a strain. There is no fallback:
// an unknown strain is a *ConfigurationError.
func (c *Config) Lookup(strain string) (models.StrainConfig, error) {
	sc, ok := c.Strains[strain]
	if !ok {
		return models.StrainConfig{}, &ConfigurationError{Strain: strain, Known: c.StrainNames()}
	}
	return sc, nil
}

// StrainNames returns the configured strain names in sorted order
func (c *Config) StrainNames() []string {
	names := make([]string, 0, len(c.Strains))
	for name := range c.Strains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every strain has positive limits and ordered axis
// ranges, and that the visualizer and background settings are usable
func (c *Config) Validate() error {
	for _, name := range c.StrainNames() {
		sc := c.Strains[name]
		if sc.ZLim <= 0 || sc.SubgroupStep <= 0 {
			return fmt.Errorf("strain %s: zLim and subgroupStep must be positive", name)
		}
		if sc.XLim[0] >= sc.XLim[1] || sc.YLim[0] >= sc.YLim[1] {
			return fmt.Errorf("strain %s: axis limits must be increasing", name)
		}
	}
	if c.Visualizer.MaxGroup2Bins < 0 {
		return fmt.Errorf("visualizer: maxGroup2Bins must not be negative")
	}
	for label := range c.PI.Backgrounds {
		if _, err := models.ParseResolution(label); err != nil {
			return fmt.Errorf("pi backgrounds: %w", err)
		}
	}
	return nil
}

// LoadConfig reads the YAML file at configPath over the defaults. An empty
// or missing path yields DefaultConfig.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// A strains section replaces the built-in table instead of merging into it
	var strains struct {
		Strains map[string]models.StrainConfig `yaml:"strains"`
	}
	if err := yaml.Unmarshal(data, &strains); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}
	if strains.Strains != nil {
		cfg.Strains = nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating the parent directory
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", configPath, err)
	}
	return nil
}

// CreateDefaultConfigFile writes DefaultConfig to configPath
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
