// Package prefs persists the user's idle timeout in the key=value file
// shared with the screensaver installer.
package prefs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// Key is the config file entry holding the timeout in seconds.
	Key = "TERMINAL_SCREENSAVER_IDLE_TIMEOUT"

	// DefaultTimeout applies when the file or the entry is absent or unusable.
	DefaultTimeout = 120
)

// Presets are the timeouts offered to users, in seconds.
var Presets = []int{30, 60, 120, 180, 300, 600}

type Store struct {
	path string

	mu      sync.Mutex
	cached  int
	modTime time.Time
	size    int64
	loaded  bool
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the timeout from disk. It never fails: any problem yields
// DefaultTimeout.
func (s *Store) Load() int {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return DefaultTimeout
	}
	return parseTimeout(data)
}

// Current returns the timeout, re-reading the file only when its
// modification time changed since the previous call.
func (s *Store) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		s.loaded = false
		return DefaultTimeout
	}

	if s.loaded && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.cached
	}

	s.cached = s.Load()
	s.modTime = info.ModTime()
	s.size = info.Size()
	s.loaded = true
	return s.cached
}

// Save writes timeout under Key, replacing the first existing entry in place
// or appending one. All other bytes of the file are kept.
func (s *Store) Save(timeout int) error {
	if timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", timeout)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to read config file")
	}

	if err := writeAtomic(s.path, replaceTimeout(data, timeout)); err != nil {
		return err
	}

	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
	return nil
}

func parseTimeout(data []byte) int {
	prefix := Key + "="
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		value, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, prefix)))
		if err != nil || value <= 0 {
			return DefaultTimeout
		}
		return value
	}
	return DefaultTimeout
}

func replaceTimeout(data []byte, timeout int) []byte {
	prefix := Key + "="
	entry := fmt.Sprintf("%s%d", prefix, timeout)

	lines := bytes.SplitAfter(data, []byte("\n"))
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(string(line)), prefix) {
			continue
		}
		ending := line[len(bytes.TrimRight(line, "\r\n")):]
		lines[i] = append([]byte(entry), ending...)
		return bytes.Join(lines, nil)
	}

	out := make([]byte, 0, len(data)+len(entry)+2)
	out = append(out, data...)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, entry...)
	return append(out, '\n')
}

func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".screensaver.conf-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary config file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write config file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write config file")
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to set config file mode")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to replace config file")
	}
	return nil
}
