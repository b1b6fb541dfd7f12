package process

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Info describes one process read from procfs
type Info struct {
	PID     int
	Name    string // comm, as shown in /proc/<pid>/stat
	Cmdline string // argv joined with spaces
}

// Scanner walks a procfs mount
type Scanner struct {
	procDir string
	self    int
}

func NewScanner() *Scanner {
	return &Scanner{procDir: "/proc", self: os.Getpid()}
}

// NewScannerAt reads from procDir instead of /proc
func NewScannerAt(procDir string) *Scanner {
	return &Scanner{procDir: procDir, self: os.Getpid()}
}

func (s *Scanner) IsAvailable() bool {
	_, err := os.Stat(s.procDir)
	return err == nil
}

// Find returns the processes, other than the caller, accepted by match.
// Processes that vanish mid-scan are skipped.
func (s *Scanner) Find(ctx context.Context, match func(Info) bool) ([]Info, error) {
	entries, err := os.ReadDir(s.procDir)
	if err != nil {
		return nil, err
	}

	var found []Info
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !entry.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == s.self {
			continue
		}

		info, err := s.readProcessInfo(pid)
		if err != nil {
			continue
		}

		if match(*info) {
			found = append(found, *info)
		}
	}

	return found, nil
}

func (s *Scanner) readProcessInfo(pid int) (*Info, error) {
	info := &Info{PID: pid}
	dir := filepath.Join(s.procDir, strconv.Itoa(pid))

	statData, err := os.ReadFile(filepath.Join(dir, "stat"))
	if err != nil {
		return nil, err
	}

	statStr := string(statData)
	startIdx := strings.Index(statStr, "(")
	endIdx := strings.LastIndex(statStr, ")")
	if startIdx != -1 && endIdx != -1 && endIdx > startIdx {
		info.Name = statStr[startIdx+1 : endIdx]
	}

	if cmdData, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
		info.Cmdline = strings.TrimSpace(strings.ReplaceAll(string(cmdData), "\x00", " "))
	}

	return info, nil
}
