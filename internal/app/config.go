package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"swarmlog/internal/batch"
	"swarmlog/internal/metrics"
)

// Default configuration constants
const (
	DefaultWorkers       = batch.DefaultWorkers
	DefaultResultsDir    = "./results"
	DefaultRetentionDays = 90
)

// Environment variables read by LoadConfig
const (
	EnvWorkers    = "SWARMLOG_WORKERS"
	EnvResultsDir = "SWARMLOG_RESULTS_DIR"
	EnvDatabase   = "SWARMLOG_DATABASE"
	EnvMetrics    = "SWARMLOG_METRICS"
)

// Config holds application configuration
type Config struct {
	Workers       int            `yaml:"workers"`
	ResultsDir    string         `yaml:"results_dir"`
	ResultsUTC    bool           `yaml:"results_utc"`
	RetentionDays int            `yaml:"retention_days"`
	Database      string         `yaml:"database"` // empty disables the result store
	Metrics       []string       `yaml:"metrics"`  // empty selects every column
	Params        metrics.Params `yaml:"params"`
	Verbose       bool           `yaml:"verbose"`
	Force         bool           `yaml:"-"`
	ShowVersion   bool           `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Workers:       DefaultWorkers,
		ResultsDir:    DefaultResultsDir,
		ResultsUTC:    true,
		RetentionDays: DefaultRetentionDays,
		Params:        metrics.DefaultParams(),
	}
}

// LoadConfig builds the configuration from defaults, the YAML file at path
// (skipped when path is empty) and SWARMLOG_* environment variables, a .env
// file included
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	if err := config.applyEnv(); err != nil {
		return config, err
	}

	return config, config.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	if v := os.Getenv(EnvResultsDir); v != "" {
		c.ResultsDir = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database = v
	}
	if v := os.Getenv(EnvMetrics); v != "" {
		c.Metrics = splitList(v)
	}
	return nil
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.ResultsDir == "" {
		return fmt.Errorf("results directory is required")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative, got %d", c.RetentionDays)
	}
	for _, name := range c.Metrics {
		if !batch.IsColumn(name) {
			return fmt.Errorf("unknown metric %q", name)
		}
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("metric params: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
