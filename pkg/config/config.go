// Package config provides configuration loading and management for lcdct.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "lcdct/internal/errors"
	"lcdct/pkg/inserts"
	"lcdct/pkg/observer"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Study parameters
	Study struct {
		// Observers lists observer family names, e.g. LG_CHO_2D
		Observers []string `yaml:"observers" validate:"min=1,dive,required"`

		// Readers is the number of randomized train/test splits per observer and insert
		Readers int `yaml:"readers" validate:"gte=1"`

		// SplitFraction is the share of samples used for training
		SplitFraction float64 `yaml:"splitFraction" validate:"gt=0,lt=1"`

		// Seed makes a study reproducible; nil draws a fresh seed
		Seed *uint64 `yaml:"seed,omitempty"`

		// Workers bounds parallel observer/insert pairs
		Workers int `yaml:"workers" validate:"gte=0"`
	} `yaml:"study"`

	// Insert location parameters
	Inserts struct {
		// Codes are the radiodensity values identifying inserts in the reference image
		Codes []float64 `yaml:"codes" validate:"min=1"`

		// Tolerance is the half-width of the band accepted around each code
		Tolerance float64 `yaml:"tolerance" validate:"gt=0"`

		// MinRadius and MaxRadius bound the Hough search when ground truth is estimated
		MinRadius int `yaml:"minRadius" validate:"gte=1"`
		MaxRadius int `yaml:"maxRadius" validate:"gtfield=MinRadius"`
	} `yaml:"inserts"`

	// Observer family parameters
	Observer struct {
		LGChannels        int       `yaml:"lgChannels" validate:"gte=1"`
		DOGFamily         string    `yaml:"dogFamily" validate:"oneof=dense sparse"`
		GaborBands        int       `yaml:"gaborBands" validate:"gte=1"`
		GaborOrientations int       `yaml:"gaborOrientations" validate:"gte=1"`
		GaborPhases       []float64 `yaml:"gaborPhases"`
		EyeFilter         bool      `yaml:"eyeFilter"`
	} `yaml:"observer"`

	// Dataset parameters
	Dataset struct {
		// Offset is subtracted from stored gray levels to obtain HU
		Offset float64 `yaml:"offset"`
	} `yaml:"dataset"`

	// Output parameters
	Output struct {
		// LogLevel is one of debug, info, warn, error
		LogLevel string `yaml:"logLevel" validate:"oneof=debug info warn error"`

		// MetricsFile receives Prometheus metrics after a run when set
		MetricsFile string `yaml:"metricsFile"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Study.Observers = []string{"LG_CHO_2D"}
	cfg.Study.Readers = 10
	cfg.Study.SplitFraction = 0.5
	cfg.Study.Workers = runtime.NumCPU()

	cfg.Inserts.Codes = append([]float64(nil), inserts.KnownCodes...)
	cfg.Inserts.Tolerance = 1
	cfg.Inserts.MinRadius = 7
	cfg.Inserts.MaxRadius = 22

	cfg.Observer.LGChannels = 5
	cfg.Observer.DOGFamily = "dense"
	cfg.Observer.GaborBands = 4
	cfg.Observer.GaborOrientations = 4
	cfg.Observer.GaborPhases = []float64{0}

	cfg.Dataset.Offset = 1000

	cfg.Output.LogLevel = "info"

	return cfg
}

// validate enforces the struct tags of Config
var validate = validator.New()

// Validate checks value ranges that would otherwise fail deep inside a study
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.NewConfigurationError("invalid configuration", err)
	}
	for _, name := range c.Study.Observers {
		if _, err := observer.ParseFamily(name); err != nil {
			return err
		}
	}
	return nil
}

// ObserverParams converts the observer section into factory parameters
func (c *Config) ObserverParams() observer.Params {
	return observer.Params{
		LGChannels:        c.Observer.LGChannels,
		DOGFamily:         c.Observer.DOGFamily,
		GaborBands:        c.Observer.GaborBands,
		GaborOrientations: c.Observer.GaborOrientations,
		GaborPhases:       append([]float64(nil), c.Observer.GaborPhases...),
		EyeFilter:         c.Observer.EyeFilter,
	}
}

// LocatorOptions converts the inserts section into Hough search options
func (c *Config) LocatorOptions() inserts.LocatorOptions {
	opts := inserts.DefaultLocatorOptions()
	opts.MinRadius = c.Inserts.MinRadius
	opts.MaxRadius = c.Inserts.MaxRadius
	opts.Codes = append([]float64(nil), c.Inserts.Codes...)
	return opts
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
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
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
