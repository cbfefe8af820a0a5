package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the semfora configuration file.
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the semfora configuration directory.
const ConfigDirName = ".semfora"

// Config holds all semfora configuration.
type Config struct {
	Scan   ScanConfig   `yaml:"scan"`
	Watch  WatchConfig  `yaml:"watch"`
	Daemon DaemonConfig `yaml:"daemon"`
	Layers LayersConfig `yaml:"layers"`
	BM25   BM25Config   `yaml:"bm25"`
}

// ScanConfig holds configuration for which files the extractor walks.
type ScanConfig struct {
	Languages []string `yaml:"languages"`
	Exclude   []string `yaml:"exclude"`
}

// WatchConfig holds configuration for the file watcher (C9).
type WatchConfig struct {
	DebounceMS   int      `yaml:"debounce_ms"`
	ExtraIgnores []string `yaml:"extra_ignores"`
}

// DaemonConfig holds configuration for the socket server (C12).
type DaemonConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	EventThrottleMS     int    `yaml:"event_throttle_ms"`
	QuiesceOnZeroClient bool   `yaml:"quiesce_on_zero_client"`
}

// LayersConfig holds configuration for the layered overlay and its
// synchronizer (C7/C8).
type LayersConfig struct {
	GitPollIntervalMS int `yaml:"git_poll_interval_ms"`
	StaleAfterCommits int `yaml:"stale_after_commits"`
	StaleAfterSeconds int `yaml:"stale_after_seconds"`
}

// BM25Config holds configuration for the BM25 index's persistence
// backend and the duplicate-detection similarity threshold that reads it.
type BM25Config struct {
	// Backend is "json" or "sqlite".
	Backend          string  `yaml:"backend"`
	DuplicateJaccard float64 `yaml:"duplicate_jaccard"`
}

// ErrConfigNotFound is returned when no config file can be found.
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from .semfora/config.yaml, falling back to defaults.
// It searches for the config directory starting from workDir and walking
// up the directory tree. If no config is found, returns defaults.
func Load(workDir string) (*Config, error) {
	configDir, err := FindConfigDir(workDir)
	if err != nil {
		return DefaultConfig(), nil
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	return LoadFromPath(configPath)
}

// LoadFromPath reads config from a specific path.
// Merges loaded config with defaults and validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())

	if err := Validate(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// FindConfigDir locates the .semfora directory by walking up from startDir.
// Returns the path to the .semfora directory if found.
func FindConfigDir(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// EnsureConfigDir creates the .semfora directory if it doesn't exist.
// Returns the path to the .semfora directory.
func EnsureConfigDir(workDir string) (string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)

	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	return configDir, nil
}

// Validate checks that config values are valid.
// Returns an error if validation fails.
func Validate(cfg *Config) error {
	if cfg.Watch.DebounceMS <= 0 {
		return fmt.Errorf("%w: watch.debounce_ms must be positive, got %d",
			ErrInvalidConfig, cfg.Watch.DebounceMS)
	}

	if cfg.Daemon.Port <= 0 || cfg.Daemon.Port > 65535 {
		return fmt.Errorf("%w: daemon.port must be between 1 and 65535, got %d",
			ErrInvalidConfig, cfg.Daemon.Port)
	}

	if cfg.Daemon.EventThrottleMS < 0 {
		return fmt.Errorf("%w: daemon.event_throttle_ms must be non-negative, got %d",
			ErrInvalidConfig, cfg.Daemon.EventThrottleMS)
	}

	if cfg.Layers.GitPollIntervalMS <= 0 {
		return fmt.Errorf("%w: layers.git_poll_interval_ms must be positive, got %d",
			ErrInvalidConfig, cfg.Layers.GitPollIntervalMS)
	}

	if cfg.BM25.Backend != "json" && cfg.BM25.Backend != "sqlite" {
		return fmt.Errorf("%w: bm25.backend must be \"json\" or \"sqlite\", got %q",
			ErrInvalidConfig, cfg.BM25.Backend)
	}

	if cfg.BM25.DuplicateJaccard < 0 || cfg.BM25.DuplicateJaccard > 1 {
		return fmt.Errorf("%w: bm25.duplicate_jaccard must be between 0 and 1, got %f",
			ErrInvalidConfig, cfg.BM25.DuplicateJaccard)
	}

	return nil
}

// SaveDefault writes the default configuration to .semfora/config.yaml in
// workDir. Creates the .semfora directory if it doesn't exist.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	header := "# semfora configuration\n\n"
	data = append([]byte(header), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return configPath, nil
}
