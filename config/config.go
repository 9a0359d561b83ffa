// Package config loads the service configuration from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Export  ExportConfig  `yaml:"export"`
	Browser BrowserConfig `yaml:"browser"`
	Roster  RosterConfig  `yaml:"roster"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// DateRefresh is how often the shared report date is checked against today.
	DateRefresh time.Duration `yaml:"date_refresh"`
}

type StoreConfig struct {
	Backend       string `yaml:"backend"` // redis or memory
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type ExportConfig struct {
	// SettleDelay is the wait between drawing a student's report and capturing it.
	SettleDelay time.Duration `yaml:"settle_delay"`
	PixelRatio  float64       `yaml:"pixel_ratio"`
	JPEGQuality int           `yaml:"jpeg_quality"`
}

type BrowserConfig struct {
	Bin        string `yaml:"bin"`
	ControlURL string `yaml:"control_url"`
	Headless   bool   `yaml:"headless"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
}

type RosterConfig struct {
	// WatchFile, when set, is an .xlsx roster re-imported whenever it changes.
	WatchFile string `yaml:"watch_file"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8080",
			DateRefresh: time.Minute,
		},
		Store: StoreConfig{
			Backend:   StoreRedis,
			RedisAddr: "127.0.0.1:6379",
			RedisDB:   8,
		},
		Export: ExportConfig{
			SettleDelay: 300 * time.Millisecond,
			PixelRatio:  3,
			JPEGQuality: 92,
		},
		Browser: BrowserConfig{
			Headless: true,
			Width:    900,
			Height:   1300,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values the service cannot run with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.DateRefresh <= 0 {
		return errors.New("server.date_refresh must be positive")
	}
	if c.Export.SettleDelay < 0 {
		return errors.New("export.settle_delay must not be negative")
	}
	if c.Export.PixelRatio <= 0 {
		return errors.New("export.pixel_ratio must be positive")
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		return errors.New("export.jpeg_quality must be between 1 and 100")
	}
	return nil
}
