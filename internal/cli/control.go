package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/termsaver/indicatord/internal/activation"
	"github.com/termsaver/indicatord/internal/daemon"
	"github.com/termsaver/indicatord/internal/prefs"
	"github.com/termsaver/indicatord/internal/reporter"
	"github.com/termsaver/indicatord/internal/updater"
	"github.com/termsaver/indicatord/internal/web"
)

func init() {
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(timeoutCmd)
	rootCmd.AddCommand(checkUpdateCmd)
	rootCmd.AddCommand(updateCmd)
}

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Enable or disable automatic activation",
	Args:  cobra.NoArgs,
	RunE:  runToggle,
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Start the screensaver now",
	Args:  cobra.NoArgs,
	RunE:  runLaunch,
}

var timeoutCmd = &cobra.Command{
	Use:   "timeout [seconds]",
	Short: "Show or set the idle timeout",
	Long: `Without an argument, list the preset timeouts and mark the current one.
With an argument, set the idle timeout in seconds. Any positive value is
accepted, the presets are 30, 60, 120, 180, 300 and 600.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTimeout,
}

var checkUpdateCmd = &cobra.Command{
	Use:   "check-update",
	Short: "Check for a newer screensaver release",
	Args:  cobra.NoArgs,
	RunE:  runCheckUpdate,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run the screensaver updater in a terminal",
	Args:  cobra.NoArgs,
	RunE:  runUpdate,
}

func runToggle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	var enabled bool
	err = remoteOrLocal(cfg,
		func(c *web.Client) (err error) {
			enabled, err = c.Toggle(ctx)
			return err
		},
		func(d *daemon.Daemon) (err error) {
			enabled, err = d.Toggle(ctx)
			return err
		})
	if err != nil {
		return err
	}

	text := "Screensaver disabled\n"
	if enabled {
		text = "Screensaver enabled\n"
	}
	return printResult(cmd.OutOrStdout(), web.ToggleResponse{Enabled: enabled}, text)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	var pid int
	err = remoteOrLocal(cfg,
		func(c *web.Client) (err error) {
			pid, err = c.Launch(ctx)
			return err
		},
		func(d *daemon.Daemon) (err error) {
			pid, err = d.Launch(ctx)
			return err
		})
	if errors.Is(err, activation.ErrAlreadyRunning) {
		fmt.Fprintln(cmd.OutOrStdout(), "Screensaver is already running")
		return nil
	}
	if err != nil {
		return err
	}

	return printResult(cmd.OutOrStdout(), web.PIDResponse{PID: pid},
		fmt.Sprintf("Screensaver started (PID: %d)\n", pid))
}

func runTimeout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		current := prefs.NewStore(cfg.TimeoutFile()).Load()
		return printResult(cmd.OutOrStdout(), web.TimeoutResponse{Timeout: current},
			reporter.New().FormatTimeoutChoices(current))
	}

	seconds, err := strconv.Atoi(args[0])
	if err != nil || seconds <= 0 {
		return fmt.Errorf("timeout must be a positive number of seconds, got %q", args[0])
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()

	err = remoteOrLocal(cfg,
		func(c *web.Client) error { return c.SetTimeout(ctx, seconds) },
		func(d *daemon.Daemon) error { return d.SetTimeout(ctx, seconds) })
	if err != nil {
		return err
	}

	return printResult(cmd.OutOrStdout(), web.TimeoutResponse{Timeout: seconds},
		fmt.Sprintf("Timeout: %s\n", reporter.FormatTimeout(seconds)))
}

func runCheckUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	var state updater.State
	err = remoteOrLocal(cfg,
		func(c *web.Client) (err error) {
			state, err = c.CheckUpdates(ctx)
			return err
		},
		func(d *daemon.Daemon) error {
			var checkErr error
			state, checkErr = d.CheckUpdates(ctx)
			if checkErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Update check failed: %v\n", checkErr)
			}
			return nil
		})
	if err != nil {
		return err
	}

	text := "Already up to date\n"
	if state.IsAvailable() {
		text = fmt.Sprintf("Update available: v%s\nRun 'indicatord update' to install it.\n", state.Version)
	}
	return printResult(cmd.OutOrStdout(), state, text)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	var pid int
	err = remoteOrLocal(cfg,
		func(c *web.Client) (err error) {
			pid, err = c.RunUpdate(ctx)
			return err
		},
		func(d *daemon.Daemon) (err error) {
			pid, err = d.RunUpdate(ctx)
			return err
		})
	if err != nil {
		return err
	}

	return printResult(cmd.OutOrStdout(), web.PIDResponse{PID: pid},
		fmt.Sprintf("Updater started (PID: %d)\n", pid))
}
