package cli

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/termsaver/indicatord/internal/daemon"
	"github.com/termsaver/indicatord/internal/web"
)

func init() {
	rootCmd.AddCommand(stopCmd)
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running idle monitor",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()

	err = web.NewClient(cfg.SocketPath()).Quit(ctx)
	if err == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped successfully")
		return nil
	}

	// No control socket: fall back to signalling the lock holder.
	if err := daemon.NewLock(cfg.LockFile()).Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
			return nil
		}
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped successfully")
	return nil
}
