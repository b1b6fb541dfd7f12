package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/termsaver/indicatord/internal/daemon"
	"github.com/termsaver/indicatord/internal/web"
	"github.com/termsaver/indicatord/pkg/spawn"
)

var (
	logFile      string
	pollInterval time.Duration
)

func init() {
	runCmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file instead of stderr")
	runCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "override the idle poll interval (e.g. 2s)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the idle monitor in the foreground",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the idle monitor in the background",
	Args:  cobra.NoArgs,
	RunE:  startDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if pollInterval > 0 {
		if err := cfg.SetPollInterval(pollInterval); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	d, err := daemon.Open(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	srv := web.NewServer(cfg.SocketPath(), d)
	d.AddServer(srv)
	log.Printf("Control socket: %s", srv.GetAddress())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Printf("Received %v, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Printf("Configuration:\n%s", cfg.String())

	if err := d.Run(ctx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Already running")
			return nil
		}
		return err
	}

	log.Println("Daemon stopped successfully")
	return nil
}

func startDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	running, pid, err := daemon.NewLock(cfg.LockFile()).IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running {
		fmt.Fprintf(cmd.OutOrStdout(), "Daemon is already running (PID: %d)\n", pid)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	argv := []string{exe, "run", "--log-file", cfg.LogPath()}
	if settingsPath != "" {
		argv = append(argv, "--settings", settingsPath)
	}

	if err := os.MkdirAll(cfg.Paths.StateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pid, err = spawn.NewDetached().Spawn(argv)
	if err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Daemon started successfully (PID: %d)\n", pid)
	fmt.Fprintf(cmd.OutOrStdout(), "Logs: %s\n", cfg.LogPath())
	return nil
}
