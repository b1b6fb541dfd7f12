package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/termsaver/indicatord/internal/daemon"
	"github.com/termsaver/indicatord/internal/prefs"
	"github.com/termsaver/indicatord/internal/reporter"
	"github.com/termsaver/indicatord/internal/web"
)

var (
	historySince  time.Duration
	historyErrors bool
)

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of events to show")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "summarize events in this window instead of listing them (e.g. 24h)")
	historyCmd.Flags().BoolVar(&historyErrors, "errors", false, "show stored daemon errors instead of events")
	historyCmd.MarkFlagsMutuallyExclusive("since", "errors")
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status, timeout and update state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent activations, toggles and update checks",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded events and errors",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

type stoppedStatus struct {
	Running bool `json:"running" yaml:"running"`
	Enabled bool `json:"enabled" yaml:"enabled"`
	Timeout int  `json:"timeout" yaml:"timeout"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()

	rep := reporter.New()
	status, err := web.NewClient(cfg.SocketPath()).Status(ctx)
	if err == nil {
		return printResult(cmd.OutOrStdout(), status, rep.FormatStatusText(&status))
	}
	if !errors.Is(err, daemon.ErrNotRunning) {
		return err
	}

	stopped := stoppedStatus{
		Enabled: prefs.NewFlag(cfg.DisabledMarker()).Enabled(),
		Timeout: prefs.NewStore(cfg.TimeoutFile()).Load(),
	}
	return printResult(cmd.OutOrStdout(), stopped, rep.FormatStoppedText(stopped.Enabled, stopped.Timeout))
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	ctx, cancel := requestContext(cmd)
	defer cancel()

	rep := reporter.New()
	if historyErrors {
		return remoteOrLocal(cfg,
			func(c *web.Client) error {
				logs, err := c.Errors(ctx, limit)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), logs, rep.FormatErrorsText(logs))
			},
			func(d *daemon.Daemon) error {
				logs, err := d.Errors(limit)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), logs, rep.FormatErrorsText(logs))
			})
	}

	if historySince > 0 {
		return remoteOrLocal(cfg,
			func(c *web.Client) error {
				h, err := c.Summary(ctx, historySince)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), h, rep.FormatSummaryText(h))
			},
			func(d *daemon.Daemon) error {
				h, err := d.Summary(time.Now().Add(-historySince))
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), h, rep.FormatSummaryText(h))
			})
	}

	return remoteOrLocal(cfg,
		func(c *web.Client) error {
			events, err := c.History(ctx, limit)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), events, rep.FormatHistoryText(events))
		},
		func(d *daemon.Daemon) error {
			events, err := d.History(limit)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), events, rep.FormatHistoryText(events))
		})
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()

	err = remoteOrLocal(cfg,
		func(c *web.Client) error { return c.ClearHistory(ctx) },
		func(d *daemon.Daemon) error { return d.ClearHistory() })
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
	return nil
}
