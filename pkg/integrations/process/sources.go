package process

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// CommandMatcher reports a screensaver as running when any process command
// line contains the signature, like pgrep -f.
type CommandMatcher struct {
	scanner   *Scanner
	signature string
}

func NewCommandMatcher(scanner *Scanner, signature string) *CommandMatcher {
	return &CommandMatcher{scanner: scanner, signature: signature}
}

func (m *CommandMatcher) Name() string {
	return "proc-cmdline"
}

func (m *CommandMatcher) Running(ctx context.Context) (bool, error) {
	if m.signature == "" {
		return false, fmt.Errorf("empty process signature")
	}

	found, err := m.scanner.Find(ctx, func(p Info) bool {
		return strings.Contains(p.Cmdline, m.signature)
	})
	if err != nil {
		return false, fmt.Errorf("failed to scan processes: %w", err)
	}
	return len(found) > 0, nil
}

// DefaultLockers are lock screen programs that run only while the session is locked
var DefaultLockers = []string{
	"gnome-screensaver-dialog",
	"kscreenlocker_greet",
	"i3lock",
	"slock",
	"swaylock",
	"xsecurelock",
}

// LockerDetector reports the session as locked while a known locker runs
type LockerDetector struct {
	scanner *Scanner
	lockers map[string]struct{}
}

func NewLockerDetector(scanner *Scanner, lockers []string) *LockerDetector {
	set := make(map[string]struct{}, len(lockers))
	for _, name := range lockers {
		set[name] = struct{}{}
	}
	return &LockerDetector{scanner: scanner, lockers: set}
}

func (d *LockerDetector) Name() string {
	return "proc-lockers"
}

func (d *LockerDetector) Locked(ctx context.Context) (bool, error) {
	found, err := d.scanner.Find(ctx, func(p Info) bool {
		if _, ok := d.lockers[p.Name]; ok {
			return true
		}
		// comm is truncated to 15 bytes, argv[0] is not
		_, ok := d.lockers[argv0(p.Cmdline)]
		return ok
	})
	if err != nil {
		return false, fmt.Errorf("failed to scan processes: %w", err)
	}
	return len(found) > 0, nil
}

func argv0(cmdline string) string {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return ""
	}
	return filepath.Base(fields[0])
}
