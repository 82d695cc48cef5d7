/*
PURPOSE:
  Defines the configuration structure and loading logic for Forest Compare.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Configure confidence level, minimum runs, report outputs, readiness
    probe and sampler parameters, dataset display names.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Needs Environment variable overrides (FOREST_...), optionally from .env.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli
  - Dependencies: gopkg.in/yaml.v3, github.com/joho/godotenv,
    github.com/kelseyhightower/envconfig

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Missing config file falls back to defaults.
  - Validate() rejects values that would produce misleading statistics.

IMPLEMENTATION RULES:
  - Config struct tags support yaml and envconfig.
  - Precedence: defaults < file < environment < CLI flags.

USAGE:
  cfg, err := config.Load("forest_compare.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update DefaultConfig().

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. FOREST_CONFIDENCE_LEVEL.
const EnvPrefix = "FOREST"

// Config represents the full configuration for Forest Compare.
type Config struct {
	OutputDir       string  `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	ConfidenceLevel float64 `yaml:"confidence_level" envconfig:"CONFIDENCE_LEVEL"`
	MinRuns         int     `yaml:"min_runs" envconfig:"MIN_RUNS"`
	// Charts toggles PNG rendering in the compare command.
	Charts bool `yaml:"charts" envconfig:"CHARTS"`
	// PromTextfile, when set, receives the comparison as Prometheus metrics.
	PromTextfile string `yaml:"prom_textfile" envconfig:"PROM_TEXTFILE"`
	// Datasets maps eval file tokens (alpaca_eval.json -> "alpaca") to display names.
	Datasets map[string]string `yaml:"datasets" ignored:"true"`

	Probe   ProbeConfig   `yaml:"probe" envconfig:"PROBE"`
	Sampler SamplerConfig `yaml:"sampler" envconfig:"SAMPLER"`
	S3      S3Config      `yaml:"s3" envconfig:"S3"`
}

// ProbeConfig tunes the readiness probe.
type ProbeConfig struct {
	URL      string        `yaml:"url" envconfig:"URL"`
	Prompt   string        `yaml:"prompt" envconfig:"PROMPT"`
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	Budget   time.Duration `yaml:"budget" envconfig:"BUDGET"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// SamplerConfig tunes the process resource sampler.
type SamplerConfig struct {
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL"`
}

// S3Config enables publishing report files to an S3-compatible bucket.
type S3Config struct {
	Bucket          string `yaml:"bucket" envconfig:"BUCKET"`
	Prefix          string `yaml:"prefix" envconfig:"PREFIX"`
	Region          string `yaml:"region" envconfig:"REGION"`
	Endpoint        string `yaml:"endpoint" envconfig:"ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"use_path_style" envconfig:"USE_PATH_STYLE"`
}

// Enabled reports whether a bucket was configured.
func (s S3Config) Enabled() bool { return s.Bucket != "" }

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:       "multi_run_report",
		ConfidenceLevel: 0.95,
		MinRuns:         2,
		Charts:          true,
		Datasets: map[string]string{
			"alpaca": "Alpaca",
			"squad":  "SQuADv2",
			"boolq":  "BoolQ",
			"oasst":  "OASST",
		},
		Probe: ProbeConfig{
			URL:      "http://localhost:8000/mcp",
			Prompt:   "What is the capital of France?",
			Interval: 2 * time.Second,
			Budget:   5 * time.Minute,
			Timeout:  30 * time.Second,
		},
		Sampler: SamplerConfig{
			Interval: time.Second,
		},
		S3: S3Config{
			Prefix: "forest-compare",
		},
	}
}

// Load reads configuration from a file, then applies environment overrides.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, the defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		defaults := []string{"forest_compare.yaml", "compare.yaml"}
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				break
			}
		}
	}

	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply %s_* environment overrides: %w", EnvPrefix, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the statistics depend on.
func (c *Config) Validate() error {
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence_level must be in (0, 1), got %v", c.ConfidenceLevel)
	}
	if c.MinRuns < 2 {
		return errors.New("min_runs must be >= 2")
	}
	if c.Probe.Interval <= 0 {
		return errors.New("probe.interval must be > 0")
	}
	if c.Probe.Budget <= 0 {
		return errors.New("probe.budget must be > 0")
	}
	if c.Probe.Timeout <= 0 {
		return errors.New("probe.timeout must be > 0")
	}
	if c.Probe.Timeout > c.Probe.Budget {
		return fmt.Errorf("probe.timeout (%s) must not exceed probe.budget (%s)", c.Probe.Timeout, c.Probe.Budget)
	}
	if c.Sampler.Interval <= 0 {
		return errors.New("sampler.interval must be > 0")
	}
	return nil
}
