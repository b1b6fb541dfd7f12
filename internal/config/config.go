package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// AppName is shown as the sender of every desktop notification.
	AppName = "Terminal Screensaver"

	settingsFileName = "indicatord.toml"
)

// Config holds all daemon configuration
type Config struct {
	// Filesystem locations shared with the screensaver installation
	Paths PathsConfig `toml:"paths"`

	// Polling behaviour of the activation loop
	Monitor MonitorConfig `toml:"monitor"`

	// Screensaver process configuration
	Launch LaunchConfig `toml:"launch"`

	// Update check configuration
	Update UpdateConfig `toml:"update"`

	// Activation history configuration
	History HistoryConfig `toml:"history"`

	// Daemon process configuration
	Daemon DaemonConfig `toml:"daemon"`
}

// PathsConfig holds the per-user directories
type PathsConfig struct {
	ScreensaverDir string `toml:"screensaver_dir"` // Screensaver install dir, holds VERSION
	ConfigDir      string `toml:"config_dir"`      // Holds screensaver.conf
	StateDir       string `toml:"state_dir"`       // Holds the lock file and the disabled marker
}

// MonitorConfig holds polling configuration
type MonitorConfig struct {
	PollInterval    time.Duration `toml:"poll_interval"`
	MinPollInterval time.Duration `toml:"-"`
	MaxPollInterval time.Duration `toml:"-"`
	ProbeTimeout    time.Duration `toml:"probe_timeout"` // Upper bound for each idle/lock/liveness query
}

// LaunchConfig describes how the screensaver is started and recognised
type LaunchConfig struct {
	Interpreter string `toml:"interpreter"`
	Script      string `toml:"script"` // File name inside ScreensaverDir, also the liveness signature
}

// UpdateConfig holds release check configuration
type UpdateConfig struct {
	URL          string        `toml:"url"`
	UserAgent    string        `toml:"user_agent"`
	Timeout      time.Duration `toml:"timeout"`
	StartupDelay time.Duration `toml:"startup_delay"`
	Interval     time.Duration `toml:"interval"`
	Command      []string      `toml:"command"` // Spawned detached by the update action
}

// HistoryConfig holds activation history configuration
type HistoryConfig struct {
	Enabled   bool          `toml:"enabled"`
	Path      string        `toml:"path"`      // Empty means StateDir/history.db
	Retention time.Duration `toml:"retention"` // Events older than this are pruned; 0 keeps everything
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	Socket  string `toml:"socket"`   // Empty means StateDir/indicatord.sock
	LogFile string `toml:"log_file"` // Empty means StateDir/indicatord.log
}

// Default returns a Config with the values the screensaver installation expects
func Default() *Config {
	home := homeDir()

	return &Config{
		Paths: PathsConfig{
			ScreensaverDir: filepath.Join(home, ".local", "share", "terminal-screensaver"),
			ConfigDir:      filepath.Join(home, ".config", "terminal-screensaver"),
			StateDir:       filepath.Join(home, ".local", "state", "terminal-screensaver"),
		},
		Monitor: MonitorConfig{
			PollInterval:    5 * time.Second,
			MinPollInterval: 1 * time.Second,
			MaxPollInterval: 300 * time.Second,
			ProbeTimeout:    2 * time.Second,
		},
		Launch: LaunchConfig{
			Interpreter: "python3",
			Script:      "screensaver-multimonitor.py",
		},
		Update: UpdateConfig{
			URL:          "https://api.github.com/repos/ajmasia/terminal-screensaver/releases/latest",
			UserAgent:    "terminal-screensaver",
			Timeout:      10 * time.Second,
			StartupDelay: 30 * time.Second,
			Interval:     24 * time.Hour,
			Command: []string{
				"gnome-terminal", "--", "bash", "-c",
				"terminal-screensaver-update; echo ''; echo 'Press Enter to close...'; read",
			},
		},
		History: HistoryConfig{
			Enabled:   true,
			Retention: 30 * 24 * time.Hour,
		},
	}
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("indicatord-%d", os.Getuid()))
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Paths.ScreensaverDir == "" || c.Paths.ConfigDir == "" || c.Paths.StateDir == "" {
		return fmt.Errorf("screensaver, config and state directories must all be set")
	}

	if c.Monitor.PollInterval < c.Monitor.MinPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be less than minimum (%v)",
			c.Monitor.PollInterval, c.Monitor.MinPollInterval)
	}

	if c.Monitor.PollInterval > c.Monitor.MaxPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be greater than maximum (%v)",
			c.Monitor.PollInterval, c.Monitor.MaxPollInterval)
	}

	if c.Monitor.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}

	if c.Monitor.ProbeTimeout > c.Monitor.PollInterval {
		return fmt.Errorf("probe timeout (%v) cannot exceed poll interval (%v)",
			c.Monitor.ProbeTimeout, c.Monitor.PollInterval)
	}

	if c.Launch.Interpreter == "" || c.Launch.Script == "" {
		return fmt.Errorf("screensaver interpreter and script cannot be empty")
	}

	if c.Update.URL == "" {
		return fmt.Errorf("update URL cannot be empty")
	}

	if c.Update.Timeout <= 0 {
		return fmt.Errorf("update timeout must be positive")
	}

	if c.Update.StartupDelay < 0 {
		return fmt.Errorf("update startup delay cannot be negative")
	}

	if c.Update.Interval < time.Minute {
		return fmt.Errorf("update interval (%v) cannot be less than 1m", c.Update.Interval)
	}

	if len(c.Update.Command) == 0 {
		return fmt.Errorf("update command cannot be empty")
	}

	if c.History.Retention < 0 {
		return fmt.Errorf("history retention cannot be negative")
	}

	return nil
}

// SetPollInterval sets the poll interval with validation
func (c *Config) SetPollInterval(interval time.Duration) error {
	if interval < c.Monitor.MinPollInterval {
		return fmt.Errorf("poll interval cannot be less than %v", c.Monitor.MinPollInterval)
	}
	if interval > c.Monitor.MaxPollInterval {
		return fmt.Errorf("poll interval cannot be greater than %v", c.Monitor.MaxPollInterval)
	}
	c.Monitor.PollInterval = interval
	return nil
}

// TimeoutFile is the key=value file holding the idle timeout
func (c *Config) TimeoutFile() string {
	return filepath.Join(c.Paths.ConfigDir, "screensaver.conf")
}

// SettingsFile is the optional TOML file read by New
func (c *Config) SettingsFile() string {
	return filepath.Join(c.Paths.ConfigDir, settingsFileName)
}

// DisabledMarker is the file whose existence disables activation
func (c *Config) DisabledMarker() string {
	return filepath.Join(c.Paths.StateDir, "screensaver-off")
}

// LockFile is the single-instance lock
func (c *Config) LockFile() string {
	return filepath.Join(c.Paths.StateDir, "indicator.lock")
}

// VersionFile holds the installed screensaver version
func (c *Config) VersionFile() string {
	return filepath.Join(c.Paths.ScreensaverDir, "VERSION")
}

// ScreensaverScript is the absolute path of the screensaver entry point
func (c *Config) ScreensaverScript() string {
	return filepath.Join(c.Paths.ScreensaverDir, c.Launch.Script)
}

// ScreensaverCommand is the argv used to start the screensaver
func (c *Config) ScreensaverCommand() []string {
	return []string{c.Launch.Interpreter, c.ScreensaverScript()}
}

func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.StateDir, "history.db")
}

func (c *Config) SocketPath() string {
	if c.Daemon.Socket != "" {
		return c.Daemon.Socket
	}
	return filepath.Join(c.Paths.StateDir, "indicatord.sock")
}

func (c *Config) LogPath() string {
	if c.Daemon.LogFile != "" {
		return c.Daemon.LogFile
	}
	return filepath.Join(c.Paths.StateDir, "indicatord.log")
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Paths:
    Screensaver: %s
    Config: %s
    State: %s
  Monitor:
    Poll Interval: %v
    Probe Timeout: %v
  Launch:
    Command: %v
  Update:
    URL: %s
    Timeout: %v
    Startup Delay: %v
    Interval: %v
  History:
    Enabled: %v
    Path: %s
    Retention: %v
  Daemon:
    Socket: %s`,
		c.Paths.ScreensaverDir,
		c.Paths.ConfigDir,
		c.Paths.StateDir,
		c.Monitor.PollInterval,
		c.Monitor.ProbeTimeout,
		c.ScreensaverCommand(),
		c.Update.URL,
		c.Update.Timeout,
		c.Update.StartupDelay,
		c.Update.Interval,
		c.History.Enabled,
		c.HistoryPath(),
		c.History.Retention,
		c.SocketPath(),
	)
}
