// Package config provides unified configuration loading for scanvault.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a scanvault run. It is built once at
// startup and passed by reference; nothing mutates it afterwards.
type Config struct {
	Scan          ScanConfig          `yaml:"scan"`
	Processing    ProcessingConfig    `yaml:"processing"`
	Index         IndexConfig         `yaml:"index"`
	Store         StoreConfig         `yaml:"store"`
	OCR           OCRConfig           `yaml:"ocr"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ScanConfig holds corpus scanning settings.
type ScanConfig struct {
	Root string `yaml:"root"`
}

// ProcessingConfig holds worker pool and scratch filesystem settings.
type ProcessingConfig struct {
	Workers    int    `yaml:"workers"`
	ScratchDir string `yaml:"scratch_dir"`
}

// IndexConfig holds sqlite index settings.
type IndexConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

// StoreConfig holds S3-compatible object store settings.
type StoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// OCRConfig holds text recognition settings.
type OCRConfig struct {
	Languages []string `yaml:"languages"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns a configuration with development defaults. The store
// defaults target a local SeaweedFS S3 gateway with permissive credentials.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Root: "documents_to_scan",
		},
		Processing: ProcessingConfig{
			Workers:    defaultWorkers(),
			ScratchDir: filepath.Join("data", "processed"),
		},
		Index: IndexConfig{
			Path:          filepath.Join("data", "index.db"),
			BusyTimeoutMS: 5000,
		},
		Store: StoreConfig{
			Endpoint:  "http://localhost:8333",
			Bucket:    "archive",
			AccessKey: "any",
			SecretKey: "any",
		},
		OCR: OCRConfig{
			Languages: []string{"eng"},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Load reads configuration from an optional YAML file and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Scan.Root == "" {
		return fmt.Errorf("scan root must not be empty")
	}
	if c.Processing.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Processing.Workers)
	}
	if c.Index.Path == "" {
		return fmt.Errorf("index path must not be empty")
	}
	if c.Store.Endpoint == "" {
		return fmt.Errorf("store endpoint must not be empty")
	}
	if c.Store.Bucket == "" {
		return fmt.Errorf("store bucket must not be empty")
	}
	return nil
}

// defaultWorkers sizes the pool to the machine capacity minus a fixed
// headroom reservation for the external tools, with a floor of one.
func defaultWorkers() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCANVAULT_ROOT"); v != "" {
		cfg.Scan.Root = v
	}
	if v := os.Getenv("SCANVAULT_DATA_DIR"); v != "" {
		cfg.Processing.ScratchDir = filepath.Join(v, "processed")
		cfg.Index.Path = filepath.Join(v, "index.db")
	}
	if v := os.Getenv("SCANVAULT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Processing.Workers = n
		}
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Store.Endpoint = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Store.Bucket = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Store.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Store.SecretKey = v
	}
	if v := os.Getenv("OCR_LANGUAGES"); v != "" {
		var langs []string
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}
		if len(langs) > 0 {
			cfg.OCR.Languages = langs
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
