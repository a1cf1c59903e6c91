// Package config loads browser settings from a YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Window struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Config struct {
	Window      Window `yaml:"window"`
	Homepage    string `yaml:"homepage"`
	LogLevel    string `yaml:"log_level"`
	UserAgent   string `yaml:"user_agent"`
	HTTPTimeout string `yaml:"http_timeout"` // duration string, e.g. "30s"
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		Window:   Window{Width: 1024, Height: 768},
		LogLevel: "info",
	}
}

// Load reads a YAML config file, filling unset fields from the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Window.Width <= 0 || cfg.Window.Height <= 0 {
		return cfg, fmt.Errorf("config %s: window size must be positive", path)
	}
	if _, err := cfg.HTTPTimeoutDuration(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// HTTPTimeoutDuration parses the configured fetch timeout. An empty value
// means "use the fetcher's default" and parses to zero.
func (c Config) HTTPTimeoutDuration() (time.Duration, error) {
	if c.HTTPTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		return 0, fmt.Errorf("parsing http_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("http_timeout must not be negative")
	}
	return d, nil
}

// SlogLevel maps the configured level name to a slog level. Unknown names
// fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
