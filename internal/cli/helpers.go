package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/termsaver/indicatord/internal/config"
	"github.com/termsaver/indicatord/internal/daemon"
	"github.com/termsaver/indicatord/internal/reporter"
	"github.com/termsaver/indicatord/internal/web"

	"github.com/spf13/cobra"
)

const requestTimeout = 30 * time.Second

func loadConfig() (*config.Config, error) {
	cfg, err := config.NewFrom(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

// remoteOrLocal runs remote against the daemon's socket. When no daemon is
// listening it opens the session locally and runs local instead.
func remoteOrLocal(cfg *config.Config, remote func(*web.Client) error, local func(*daemon.Daemon) error) error {
	err := remote(web.NewClient(cfg.SocketPath()))
	if !errors.Is(err, daemon.ErrNotRunning) {
		return err
	}

	d, err := daemon.Open(cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	return local(d)
}

// printResult writes v as JSON or YAML when asked to, otherwise text
func printResult(w io.Writer, v interface{}, text string) error {
	var (
		out string
		err error
	)
	switch {
	case jsonOutput:
		out, err = reporter.FormatJSON(v)
		out += "\n"
	case yamlOutput:
		out, err = reporter.FormatYAML(v)
	default:
		out = text
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}
