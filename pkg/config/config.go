// Package config loads and validates the per-run YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Inputs names the files one day's run consumes. Traffic is the only
// required input; the rest degrade per the error-handling policy
// (missing history means no labels to apply, missing feature tables
// zero-fill their group).
type Inputs struct {
	Traffic          string `yaml:"traffic" validate:"required"`
	MaliciousHistory string `yaml:"malicious_history"`
	Popularity       string `yaml:"popularity"`
	History          string `yaml:"history"`
	Periodicity      string `yaml:"periodicity"`
	Lexical          string `yaml:"lexical"`
	MaliciousScore   string `yaml:"malicious_score"`
}

// Distance holds the BFS knobs.
type Distance struct {
	Radius   int     `yaml:"radius" validate:"min=1"`
	Sentinel float64 `yaml:"sentinel" validate:"gt=0"`
}

// Scoring holds the Mal-composite policy knob.
type Scoring struct {
	// Decay is the per-day recency multiplier; 1.0 disables decay.
	Decay float64 `yaml:"decay" validate:"gt=0,lte=1"`
}

// Config is the full run configuration.
type Config struct {
	Day      string   `yaml:"day" validate:"required,datetime=2006-01-02"`
	DataDir  string   `yaml:"data_dir" validate:"required"`
	OutDir   string   `yaml:"out_dir" validate:"required"`
	Inputs   Inputs   `yaml:"inputs"`
	Distance Distance `yaml:"distance"`
	Scoring  Scoring  `yaml:"scoring"`
	LogLevel string   `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

var validate = validator.New()

// Default returns a config with stock knobs; Day, DataDir, OutDir and
// Inputs must still be filled in.
func Default() Config {
	return Config{
		Distance: Distance{Radius: 6, Sentinel: 100},
		Scoring:  Scoring{Decay: 1.0},
		LogLevel: "info",
	}
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the config against its struct constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RunDay parses the configured day.
func (c Config) RunDay() (time.Time, error) {
	return time.Parse("2006-01-02", c.Day)
}
