package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// LoadFile overlays the TOML settings file at path onto cfg.
// A missing file is not an error.
func LoadFile(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
// Environment variables override default and file values
func LoadFromEnv(cfg *Config) {
	// Paths
	if dir := os.Getenv("INDICATORD_SCREENSAVER_DIR"); dir != "" {
		cfg.Paths.ScreensaverDir = dir
	}

	if dir := os.Getenv("INDICATORD_CONFIG_DIR"); dir != "" {
		cfg.Paths.ConfigDir = dir
	}

	if dir := os.Getenv("INDICATORD_STATE_DIR"); dir != "" {
		cfg.Paths.StateDir = dir
	}

	// Monitor configuration
	if pollInterval := os.Getenv("INDICATORD_POLL_INTERVAL"); pollInterval != "" {
		if seconds, err := strconv.Atoi(pollInterval); err == nil && seconds > 0 {
			interval := time.Duration(seconds) * time.Second
			if interval >= cfg.Monitor.MinPollInterval && interval <= cfg.Monitor.MaxPollInterval {
				cfg.Monitor.PollInterval = interval
			}
		}
	}

	if probeTimeout := os.Getenv("INDICATORD_PROBE_TIMEOUT"); probeTimeout != "" {
		if seconds, err := strconv.Atoi(probeTimeout); err == nil && seconds > 0 {
			cfg.Monitor.ProbeTimeout = time.Duration(seconds) * time.Second
		}
	}

	// Update configuration
	if url := os.Getenv("INDICATORD_UPDATE_URL"); url != "" {
		cfg.Update.URL = url
	}

	if interval := os.Getenv("INDICATORD_UPDATE_INTERVAL"); interval != "" {
		if seconds, err := strconv.Atoi(interval); err == nil && seconds > 0 {
			cfg.Update.Interval = time.Duration(seconds) * time.Second
		}
	}

	// History configuration
	if dbPath := os.Getenv("INDICATORD_DB_PATH"); dbPath != "" {
		cfg.History.Path = dbPath
	}

	if enabled := os.Getenv("INDICATORD_HISTORY"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			cfg.History.Enabled = val
		}
	}

	if days := os.Getenv("INDICATORD_HISTORY_RETENTION_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			cfg.History.Retention = time.Duration(n) * 24 * time.Hour
		}
	}

	// Daemon configuration
	if socket := os.Getenv("INDICATORD_SOCKET"); socket != "" {
		cfg.Daemon.Socket = socket
	}
}

// New creates a Config from defaults, the settings file and the environment.
// INDICATORD_SETTINGS points at an alternative settings file.
func New() (*Config, error) {
	return NewFrom("")
}

// NewFrom is New with an explicit settings file; empty falls back to
// INDICATORD_SETTINGS and then the default location.
func NewFrom(path string) (*Config, error) {
	cfg := Default()
	LoadFromEnv(cfg)

	if path == "" {
		path = os.Getenv("INDICATORD_SETTINGS")
	}
	if path == "" {
		path = cfg.SettingsFile()
	}
	if err := LoadFile(cfg, path); err != nil {
		return nil, err
	}

	LoadFromEnv(cfg)
	return cfg, nil
}
