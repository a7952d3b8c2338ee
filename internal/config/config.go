package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the engine's tunables.
type Config struct {
	// PageSize is the subscription window and pagination page size.
	PageSize int `toml:"page_size"`
	// RemoteTimeoutMS bounds every send and page-fetch remote call. On
	// expiry the operation fails; retrying is a caller decision.
	RemoteTimeoutMS int `toml:"remote_timeout_ms"`
	// CodecKey overrides the legacy content key. Leave empty for the
	// historical default so old records stay readable.
	CodecKey string `toml:"codec_key"`
}

// Default returns the reference configuration: 50-message pages, 30s bounded
// wait.
func Default() *Config {
	return &Config{
		PageSize:        50,
		RemoteTimeoutMS: 30_000,
	}
}

// RemoteTimeout returns the bounded wait as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutMS) * time.Millisecond
}

// Load reads config from the given path, filling unset values with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.RemoteTimeoutMS <= 0 {
		cfg.RemoteTimeoutMS = 30_000
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
