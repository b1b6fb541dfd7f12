package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Lock is an advisory, non-blocking, exclusive file lock guaranteeing a
// single daemon per user. The file holds the owner PID for diagnostics only.
type Lock struct {
	path string
	file *os.File
}

func NewLock(path string) *Lock {
	return &Lock{path: path}
}

func (l *Lock) Path() string {
	return l.path
}

// afterOpen runs between opening and locking the file
var afterOpen = func(path string) {}

const maxLockAttempts = 5

// Acquire returns false without error when another process holds the lock.
// The file is only truncated once the lock is ours.
func (l *Lock) Acquire() (bool, error) {
	if l.file != nil {
		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		file, ok, err := l.tryLock()
		if err != nil || !ok {
			return false, err
		}
		if file == nil {
			// The previous holder unlinked the file we locked.
			continue
		}

		l.file = file
		// The PID is informational, a write failure does not give up the lock.
		_ = l.writePID()
		return true, nil
	}
	return false, fmt.Errorf("failed to lock %s: file keeps being replaced", l.path)
}

// tryLock flocks the file at path. A nil file with ok set means the lock was
// taken on an inode that no longer sits at path.
func (l *Lock) tryLock() (*os.File, bool, error) {
	file, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open lock file: %w", err)
	}
	afterOpen(l.path)

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to lock %s: %w", l.path, err)
	}

	held, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, false, fmt.Errorf("failed to stat lock file: %w", err)
	}
	current, err := os.Stat(l.path)
	if err != nil && !os.IsNotExist(err) {
		file.Close()
		return nil, false, fmt.Errorf("failed to stat %s: %w", l.path, err)
	}
	if err != nil || !os.SameFile(held, current) {
		file.Close()
		return nil, true, nil
	}
	return file, true, nil
}

func (l *Lock) writePID() error {
	if err := l.file.Truncate(0); err != nil {
		return err
	}
	_, err := l.file.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	return err
}

// Release removes the lock file and drops the lock. It is a no-op when the
// lock was never acquired.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}

	_ = os.Remove(l.path)

	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil {
		return fmt.Errorf("failed to unlock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close lock file: %w", closeErr)
	}
	return nil
}

func (l *Lock) Held() bool {
	return l.file != nil
}

// HolderPID reads the PID written by the current holder. Zero means the file
// is absent.
func (l *Lock) HolderPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read lock file: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}

	pid, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid PID in lock file: %w", err)
	}

	return pid, nil
}

// IsRunning reports whether another process currently holds the lock, probing
// with a separate handle so the holder's file is left untouched.
func (l *Lock) IsRunning() (bool, int, error) {
	if l.file != nil {
		return true, os.Getpid(), nil
	}

	file, err := os.OpenFile(l.path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to open lock file: %w", err)
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_SH|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			pid, _ := l.HolderPID()
			return true, pid, nil
		}
		return false, 0, fmt.Errorf("failed to probe lock: %w", err)
	}
	unix.Flock(int(file.Fd()), unix.LOCK_UN)

	return false, 0, nil
}

// Signal sends sig to the current holder, if any.
func (l *Lock) Signal(sig syscall.Signal) error {
	running, pid, err := l.IsRunning()
	if err != nil {
		return fmt.Errorf("error checking daemon status: %w", err)
	}

	if !running {
		return ErrNotRunning
	}

	if pid == 0 {
		return fmt.Errorf("lock is held but holder PID is unknown")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return ErrNotRunning
		}
		return fmt.Errorf("failed to send %v: %w", sig, err)
	}

	return nil
}
