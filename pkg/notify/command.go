package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// CommandNotifier shells out to notify-send
type CommandNotifier struct {
	command string
	timeout time.Duration
}

func NewCommandNotifier() *CommandNotifier {
	return &CommandNotifier{command: "notify-send", timeout: 2 * time.Second}
}

func (n *CommandNotifier) Send(notification Notification) error {
	path, err := exec.LookPath(n.command)
	if err != nil {
		return fmt.Errorf("%s not found: %w", n.command, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if out, err := exec.CommandContext(ctx, path, notification.Title, notification.Message).CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w (%s)", n.command, err, out)
	}
	return nil
}
