package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds user preferences loaded from ~/.config/kintree/config.toml.
// Every field has a sensible default; the file is optional.
type Config struct {
	Layout  LayoutConfig  `toml:"layout"`
	Gesture GestureConfig `toml:"gesture"`
	Watch   WatchConfig   `toml:"watch"`
	Server  ServerConfig  `toml:"server"`
	Cache   CacheConfig   `toml:"cache"`
	Store   StoreConfig   `toml:"store"`
}

// LayoutConfig controls the layout frame.
type LayoutConfig struct {
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// GestureConfig controls pointer interpretation in the viewer.
type GestureConfig struct {
	// ClickThresholdMS is the press duration boundary between click and
	// drag, in milliseconds.
	ClickThresholdMS int `toml:"click_threshold_ms"`
	// StuckTimeoutS reaps a gesture whose release event never arrived,
	// in seconds.
	StuckTimeoutS int `toml:"stuck_timeout_s"`
}

// WatchConfig controls snapshot file watching.
type WatchConfig struct {
	Enabled    bool `toml:"enabled"`
	DebounceMS int  `toml:"debounce_ms"`
}

// ServerConfig controls the preview server.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Enabled   bool   `toml:"enabled"`
	RedisAddr string `toml:"redis_addr"` // empty = file cache
}

// StoreConfig selects the snapshot store backend.
type StoreConfig struct {
	MongoURI string `toml:"mongo_uri"` // empty = file store
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Layout:  LayoutConfig{Width: 800, Height: 600},
		Gesture: GestureConfig{ClickThresholdMS: 200, StuckTimeoutS: 30},
		Watch:   WatchConfig{Enabled: true, DebounceMS: 250},
		Server:  ServerConfig{Addr: ":8080"},
		Cache:   CacheConfig{Enabled: true},
	}
}

// ConfigPath returns the config file location (~/.config/kintree/config.toml).
func ConfigPath() (string, error) {
	if cfgHome := os.Getenv("XDG_CONFIG_HOME"); cfgHome != "" {
		return filepath.Join(cfgHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing file yields the defaults without error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Layout.Width < 0 || c.Layout.Height < 0 {
		return fmt.Errorf("layout dimensions must be non-negative")
	}
	if c.Gesture.ClickThresholdMS < 0 || c.Gesture.StuckTimeoutS < 0 {
		return fmt.Errorf("gesture timings must be non-negative")
	}
	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch debounce must be non-negative")
	}
	return nil
}

// ClickThreshold returns the click/drag boundary as a duration.
func (c *Config) ClickThreshold() time.Duration {
	return time.Duration(c.Gesture.ClickThresholdMS) * time.Millisecond
}

// StuckTimeout returns the stuck-gesture timeout as a duration.
func (c *Config) StuckTimeout() time.Duration {
	return time.Duration(c.Gesture.StuckTimeoutS) * time.Second
}

// Debounce returns the watch debounce window as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}
