// Package config manages the agent's persistent configuration at
// ~/.config/ccp-agent/config.json. The JSON field names are shared with
// the collector's onboarding flow and must not change.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// ErrNotConfigured is returned by Load when no config file exists yet.
var ErrNotConfigured = errors.New("agent is not configured")

// Config holds all agent settings.
type Config struct {
	ServerURL      string `json:"serverUrl"`
	DeviceAPIKey   string `json:"deviceApiKey"`
	WatchRoot      string `json:"watchRoot"`
	PushIntervalMs int    `json:"pushIntervalMs"`
}

// Defaults returns the default configuration. ServerURL and
// DeviceAPIKey have no defaults; setup must provide them.
func Defaults() Config {
	c := Config{PushIntervalMs: 60_000}
	if home, err := os.UserHomeDir(); err == nil {
		c.WatchRoot = filepath.Join(home, ".claude", "projects")
	}
	return c
}

// PushInterval returns the flush period as a duration.
func (c Config) PushInterval() time.Duration {
	return time.Duration(c.PushIntervalMs) * time.Millisecond
}

// Validate checks that the config is complete enough to run the agent.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("serverUrl is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("serverUrl %q is not an absolute http(s) URL", c.ServerURL)
	}
	if c.DeviceAPIKey == "" {
		return errors.New("deviceApiKey is required")
	}
	if c.WatchRoot == "" {
		return errors.New("watchRoot is required")
	}
	if c.PushIntervalMs < 1000 {
		return fmt.Errorf("pushIntervalMs must be at least 1000, got %d", c.PushIntervalMs)
	}
	return nil
}

// Exists reports whether a config file is present on disk.
func Exists(p Paths) bool {
	_, err := os.Stat(p.Config())
	return err == nil
}

// Load reads the config file. Missing fields fall back to defaults.
// Returns ErrNotConfigured when the file does not exist and a
// ParseError when it exists but cannot be decoded.
func Load(p Paths) (Config, error) {
	data, err := os.ReadFile(p.Config())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, ErrNotConfigured
		}
		return Config{}, err
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ParseError{Path: p.Config(), Err: err}
	}
	defaults := Defaults()
	if cfg.WatchRoot == "" {
		cfg.WatchRoot = defaults.WatchRoot
	}
	if cfg.PushIntervalMs <= 0 {
		cfg.PushIntervalMs = defaults.PushIntervalMs
	}
	return cfg, nil
}

// Save writes the config atomically via a temp file + os.Rename.
// The file is created 0600 since it carries the device key.
func Save(p Paths, cfg Config) error {
	if err := os.MkdirAll(p.Root, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(p.Root, "config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err = os.Rename(tmpName, p.Config()); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Remove deletes the config file. Missing file is not an error.
func Remove(p Paths) error {
	if err := os.Remove(p.Config()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing config: %w", err)
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
