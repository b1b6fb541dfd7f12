// Package spawn starts fire-and-forget child processes.
package spawn

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"syscall"
)

// Spawner starts argv without waiting for it to finish
type Spawner interface {
	Spawn(argv []string) (int, error)
}

// Detached runs children in their own session with stdio on /dev/null, so
// they outlive the daemon and never block it. Exit statuses are reaped and
// discarded.
type Detached struct {
	// Env is appended to the inherited environment
	Env []string
}

func NewDetached() *Detached {
	return &Detached{}
}

// Spawn returns the child PID once the process has started.
func (d *Detached) Spawn(argv []string) (int, error) {
	if len(argv) == 0 {
		return 0, fmt.Errorf("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if len(d.Env) > 0 {
		cmd.Env = append(os.Environ(), d.Env...)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	pid := cmd.Process.Pid
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("spawn: %s (pid %d) exited: %v", argv[0], pid, err)
		}
	}()

	return pid, nil
}
