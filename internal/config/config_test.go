package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.ScreensaverDir = "/opt/saver"
	cfg.Paths.ConfigDir = "/etc/saver"
	cfg.Paths.StateDir = "/var/saver"

	assert.Equal(t, "/etc/saver/screensaver.conf", cfg.TimeoutFile())
	assert.Equal(t, "/var/saver/screensaver-off", cfg.DisabledMarker())
	assert.Equal(t, "/var/saver/indicator.lock", cfg.LockFile())
	assert.Equal(t, "/opt/saver/VERSION", cfg.VersionFile())
	assert.Equal(t, []string{"python3", "/opt/saver/screensaver-multimonitor.py"}, cfg.ScreensaverCommand())
	assert.Equal(t, "/var/saver/history.db", cfg.HistoryPath())
	assert.Equal(t, "/var/saver/indicatord.sock", cfg.SocketPath())

	cfg.History.Path = "/tmp/h.db"
	cfg.Daemon.Socket = "/tmp/s.sock"
	assert.Equal(t, "/tmp/h.db", cfg.HistoryPath())
	assert.Equal(t, "/tmp/s.sock", cfg.SocketPath())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "empty state dir", mutate: func(c *Config) { c.Paths.StateDir = "" }, wantErr: true},
		{name: "poll too fast", mutate: func(c *Config) { c.Monitor.PollInterval = 100 * time.Millisecond }, wantErr: true},
		{name: "poll too slow", mutate: func(c *Config) { c.Monitor.PollInterval = time.Hour }, wantErr: true},
		{name: "zero probe timeout", mutate: func(c *Config) { c.Monitor.ProbeTimeout = 0 }, wantErr: true},
		{name: "probe exceeds poll", mutate: func(c *Config) { c.Monitor.ProbeTimeout = 10 * time.Second }, wantErr: true},
		{name: "no interpreter", mutate: func(c *Config) { c.Launch.Interpreter = "" }, wantErr: true},
		{name: "no update url", mutate: func(c *Config) { c.Update.URL = "" }, wantErr: true},
		{name: "update interval too short", mutate: func(c *Config) { c.Update.Interval = time.Second }, wantErr: true},
		{name: "no update command", mutate: func(c *Config) { c.Update.Command = nil }, wantErr: true},
		{name: "keep history forever", mutate: func(c *Config) { c.History.Retention = 0 }, wantErr: false},
		{name: "negative retention", mutate: func(c *Config) { c.History.Retention = -time.Hour }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indicatord.toml")
	content := `
[monitor]
poll_interval = "10s"

[launch]
interpreter = "/usr/bin/python3"

[update]
url = "http://localhost:1234/latest"
startup_delay = "1m"

[history]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := Default()
	require.NoError(t, LoadFile(cfg, path))

	assert.Equal(t, 10*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Monitor.ProbeTimeout)
	assert.Equal(t, "/usr/bin/python3", cfg.Launch.Interpreter)
	assert.Equal(t, "screensaver-multimonitor.py", cfg.Launch.Script)
	assert.Equal(t, "http://localhost:1234/latest", cfg.Update.URL)
	assert.Equal(t, time.Minute, cfg.Update.StartupDelay)
	assert.False(t, cfg.History.Enabled)
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	err := LoadFile(cfg, filepath.Join(t.TempDir(), "absent.toml"))
	assert.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Monitor.PollInterval)
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[monitor\npoll_interval = "), 0644))

	err := LoadFile(Default(), path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("INDICATORD_STATE_DIR", "/run/saver")
	t.Setenv("INDICATORD_POLL_INTERVAL", "7")
	t.Setenv("INDICATORD_PROBE_TIMEOUT", "1")
	t.Setenv("INDICATORD_UPDATE_URL", "http://example.invalid/latest")
	t.Setenv("INDICATORD_HISTORY", "false")
	t.Setenv("INDICATORD_SOCKET", "/run/saver/ctl.sock")
	t.Setenv("INDICATORD_HISTORY_RETENTION_DAYS", "7")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, 7*24*time.Hour, cfg.History.Retention)

	assert.Equal(t, "/run/saver", cfg.Paths.StateDir)
	assert.Equal(t, 7*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, time.Second, cfg.Monitor.ProbeTimeout)
	assert.Equal(t, "http://example.invalid/latest", cfg.Update.URL)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "/run/saver/ctl.sock", cfg.SocketPath())
}

func TestLoadFromEnvIgnoresInvalid(t *testing.T) {
	t.Setenv("INDICATORD_POLL_INTERVAL", "abc")
	t.Setenv("INDICATORD_PROBE_TIMEOUT", "-3")
	t.Setenv("INDICATORD_HISTORY", "maybe")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, 5*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Monitor.ProbeTimeout)
	assert.True(t, cfg.History.Enabled)
}

func TestNewUsesSettingsFromConfigDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "indicatord.toml"),
		[]byte("[monitor]\nprobe_timeout = \"3s\"\n"), 0644))

	t.Setenv("INDICATORD_CONFIG_DIR", dir)
	t.Setenv("INDICATORD_SETTINGS", "")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Monitor.ProbeTimeout)
	assert.Equal(t, dir, cfg.Paths.ConfigDir)
}

func TestNewFromExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[update]\ninterval = \"12h\"\n"), 0644))

	t.Setenv("INDICATORD_SETTINGS", filepath.Join(t.TempDir(), "ignored.toml"))
	t.Setenv("INDICATORD_UPDATE_INTERVAL", "")

	cfg, err := NewFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, cfg.Update.Interval)
	assert.NoError(t, cfg.Validate())
}

func TestSetPollInterval(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.SetPollInterval(2*time.Second))
	assert.Equal(t, 2*time.Second, cfg.Monitor.PollInterval)

	assert.Error(t, cfg.SetPollInterval(cfg.Monitor.MinPollInterval-time.Millisecond))
	assert.Error(t, cfg.SetPollInterval(cfg.Monitor.MaxPollInterval+time.Second))
	assert.Equal(t, 2*time.Second, cfg.Monitor.PollInterval)
}
