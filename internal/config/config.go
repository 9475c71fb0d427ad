// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sosodev/duration"
	"gopkg.in/yaml.v3"
)

const appName = "sleeptrackr"

// Duration is a time.Duration written as an ISO 8601 duration ("PT1S").
type Duration time.Duration

func (d Duration) String() string {
	return duration.Format(time.Duration(d))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := duration.Parse(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", b, err)
	}
	*d = Duration(parsed.ToTimeDuration())
	return nil
}

// Config holds all configuration options
type Config struct {
	DBPath         string   `yaml:"db_path"`
	LogPath        string   `yaml:"log_path"`
	LogLevel       string   `yaml:"log_level"`
	SampleInterval Duration `yaml:"sample_interval"`
	LightInterval  Duration `yaml:"light_interval"`
	Seed           uint64   `yaml:"seed,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dir := configDir()
	return &Config{
		DBPath:         filepath.Join(dir, appName+".db"),
		LogPath:        filepath.Join(dir, appName+".log"),
		LogLevel:       "info",
		SampleInterval: Duration(time.Second),
		LightInterval:  Duration(2 * time.Second),
	}
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// Path returns the default config file path
func Path() string {
	return filepath.Join(configDir(), "config.yaml")
}

// Load reads the YAML file at path (Path() when empty), falling back to
// defaults when it does not exist, then applies SLEEPTRACKR_* environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.DBPath = getEnv("SLEEPTRACKR_DB_PATH", c.DBPath)
	c.LogPath = getEnv("SLEEPTRACKR_LOG_PATH", c.LogPath)
	c.LogLevel = getEnv("SLEEPTRACKR_LOG_LEVEL", c.LogLevel)

	if v := getEnv("SLEEPTRACKR_SAMPLE_INTERVAL", ""); v != "" {
		if err := c.SampleInterval.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("SLEEPTRACKR_SAMPLE_INTERVAL: %w", err)
		}
	}
	return nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	if c.LogPath == "" {
		return fmt.Errorf("log_path cannot be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample_interval must be > 0")
	}
	if c.LightInterval <= 0 {
		return fmt.Errorf("light_interval must be > 0")
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
