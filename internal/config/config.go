// Package config provides configuration management for subcli.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (SUBSOLVE_*)
// 3. Config file (--config, $SUBSOLVE_CONFIG or .subsolve.yaml in cwd)
// 4. Defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all subcli configuration.
type Config struct {
	// Corpus is the path of the training text.
	Corpus string `yaml:"corpus" json:"corpus"`

	// CacheDir holds the trained model cache. Empty disables caching.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Output controls the result format (text, json).
	Output string `yaml:"output" json:"output"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose" json:"verbose"`

	Model  ModelConfig  `yaml:"model" json:"model"`
	Search SearchConfig `yaml:"search" json:"search"`
}

// ModelConfig holds language model settings.
type ModelConfig struct {
	// Order is the n-gram length. Default: 3
	Order int `yaml:"order" json:"order"`

	// Penalty is scored for n-grams absent from the model. Default: -10
	// Nil means unset, so that an explicit 0 still overrides.
	Penalty *float64 `yaml:"penalty" json:"penalty"`

	// SpaceAware skips windows containing a space when scoring.
	SpaceAware bool `yaml:"space_aware" json:"space_aware"`
}

// SearchConfig holds hill climbing settings.
type SearchConfig struct {
	// Restarts is the number of independent climbs. Default: 11
	Restarts int `yaml:"restarts" json:"restarts"`

	// StallLimit ends a restart after this many rejected proposals in a row.
	// Default: 100000
	StallLimit int `yaml:"stall_limit" json:"stall_limit"`

	// MaxIterations caps the proposals of one restart (0 = no cap).
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// RestartTimeout caps the duration of one restart (0 = no deadline).
	RestartTimeout time.Duration `yaml:"restart_timeout" json:"restart_timeout"`

	// Timeout caps the whole search (0 = no deadline).
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Parallelism is the number of restarts run at once. Default: 1
	// (sequential)
	Parallelism int `yaml:"parallelism" json:"parallelism"`

	// Seed selects the random streams (0 = derive from the clock).
	Seed uint64 `yaml:"seed" json:"seed"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput     = "text"
	defaultOrder      = 3
	defaultPenalty    = -10.0
	defaultRestarts   = 11
	defaultStallLimit = 100000
	defaultConfigName = ".subsolve.yaml"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output: defaultOutput,
		Model: ModelConfig{
			Order:   defaultOrder,
			Penalty: ptr(defaultPenalty),
		},
		Search: SearchConfig{
			Restarts:    defaultRestarts,
			StallLimit:  defaultStallLimit,
			Parallelism: 1,
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > file > defaults
//
// An explicitly named file must exist; the default .subsolve.yaml is
// optional.
func Load(path string, flagOverrides *Config) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = configPath()
	}
	fileConfig, err := loadFromPath(path)
	switch {
	case err == nil:
		if fileConfig != nil {
			cfg = merge(cfg, fileConfig)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	cfg, err = applyEnv(cfg)
	if err != nil {
		return nil, err
	}

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, cfg.Validate()
}

// Validate checks values the downstream packages do not.
func (c *Config) Validate() error {
	switch c.Output {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output format %q (want text or json)", c.Output)
	}
	if c.Search.Parallelism < 1 {
		return fmt.Errorf("invalid parallelism %d", c.Search.Parallelism)
	}
	return nil
}

// configPath returns the implicit config path.
func configPath() string {
	if override := strings.TrimSpace(os.Getenv("SUBSOLVE_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, defaultConfigName)
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) (*Config, error) {
	if v := os.Getenv("SUBSOLVE_CORPUS"); v != "" {
		cfg.Corpus = v
	}
	if v := os.Getenv("SUBSOLVE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("SUBSOLVE_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("SUBSOLVE_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("SUBSOLVE_SPACE_AWARE"); v == "true" || v == "1" {
		cfg.Model.SpaceAware = true
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"SUBSOLVE_ORDER", &cfg.Model.Order},
		{"SUBSOLVE_RESTARTS", &cfg.Search.Restarts},
		{"SUBSOLVE_STALL_LIMIT", &cfg.Search.StallLimit},
		{"SUBSOLVE_MAX_ITERATIONS", &cfg.Search.MaxIterations},
		{"SUBSOLVE_PARALLELISM", &cfg.Search.Parallelism},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.name, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("SUBSOLVE_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("SUBSOLVE_SEED: %w", err)
		}
		cfg.Search.Seed = seed
	}
	if v := os.Getenv("SUBSOLVE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SUBSOLVE_TIMEOUT: %w", err)
		}
		cfg.Search.Timeout = d
	}
	return cfg, nil
}

func ptr[T any](v T) *T {
	return &v
}

// PenaltyValue returns the configured unseen n-gram penalty, or the default
// when none is set.
func (m ModelConfig) PenaltyValue() float64 {
	if m.Penalty == nil {
		return defaultPenalty
	}
	return *m.Penalty
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeInt overwrites dst with src when src is non-zero.
func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

// merge merges src into dst, with src values taking precedence.
// Booleans can only be switched on.
func merge(dst, src *Config) *Config {
	mergeStr(&dst.Corpus, src.Corpus)
	mergeStr(&dst.CacheDir, src.CacheDir)
	mergeStr(&dst.Output, src.Output)
	if src.Verbose {
		dst.Verbose = true
	}

	mergeInt(&dst.Model.Order, src.Model.Order)
	if src.Model.Penalty != nil {
		dst.Model.Penalty = ptr(*src.Model.Penalty)
	}
	if src.Model.SpaceAware {
		dst.Model.SpaceAware = true
	}

	mergeInt(&dst.Search.Restarts, src.Search.Restarts)
	mergeInt(&dst.Search.StallLimit, src.Search.StallLimit)
	mergeInt(&dst.Search.MaxIterations, src.Search.MaxIterations)
	mergeInt(&dst.Search.Parallelism, src.Search.Parallelism)
	if src.Search.RestartTimeout != 0 {
		dst.Search.RestartTimeout = src.Search.RestartTimeout
	}
	if src.Search.Timeout != 0 {
		dst.Search.Timeout = src.Search.Timeout
	}
	if src.Search.Seed != 0 {
		dst.Search.Seed = src.Search.Seed
	}

	return dst
}
