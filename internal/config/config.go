package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/webtime/config.yaml"

// Config holds all webtime configuration.
type Config struct {
	Tracking  TrackingConfig  `yaml:"tracking"`
	Report    ReportConfig    `yaml:"report"`
	Retention RetentionConfig `yaml:"retention"`
	Capture   CaptureConfig   `yaml:"capture"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TrackingConfig struct {
	IdleDetectionSeconds int  `yaml:"idle_detection_seconds"`
	SynthesizeIdle       bool `yaml:"synthesize_idle"`
	QueueSize            int  `yaml:"queue_size"`
}

type ReportConfig struct {
	DurationBucketMs    int64  `yaml:"duration_bucket_ms"`
	DurationBucketCount int    `yaml:"duration_bucket_count"`
	Timezone            string `yaml:"timezone"`
	DefaultSince        string `yaml:"default_since"`
}

type RetentionConfig struct {
	Days int `yaml:"days"`
}

type CaptureConfig struct {
	DenylistDomains []string `yaml:"denylist_domains"`
	DenylistRegex   []string `yaml:"denylist_regex"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read, contains invalid YAML, or
// fails validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside the tracker
// or the aggregator.
func (c *Config) Validate() error {
	if c.Tracking.IdleDetectionSeconds < 15 {
		return fmt.Errorf("tracking.idle_detection_seconds must be at least 15, got %d", c.Tracking.IdleDetectionSeconds)
	}
	if c.Report.DurationBucketMs <= 0 {
		return fmt.Errorf("report.duration_bucket_ms must be positive, got %d", c.Report.DurationBucketMs)
	}
	if c.Report.DurationBucketCount < 1 {
		return fmt.Errorf("report.duration_bucket_count must be at least 1, got %d", c.Report.DurationBucketCount)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves report.timezone. "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Report.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return nil, fmt.Errorf("report.timezone: %w", err)
	}
	return loc, nil
}

// DatabasePath returns the expanded SQLite file path.
func (c *Config) DatabasePath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
