// Package cli implements the indicatord command-line interface using Cobra.
// Control commands talk to the running daemon over its socket and act on the
// files directly when no daemon answers.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	jsonOutput   bool
	yamlOutput   bool
	settingsPath string
)

var rootCmd = &cobra.Command{
	Use:   "indicatord",
	Short: "Idle monitor that starts the terminal screensaver",
	Long: `indicatord watches the desktop session and starts the terminal screensaver
once the user has been idle for the configured timeout. It skips activation
while the session is locked or a screensaver is already showing, and checks
for new screensaver releases once a day.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print machine readable JSON")
	rootCmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "print YAML")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "daemon settings file (default ~/.config/terminal-screensaver/indicatord.toml)")
	rootCmd.MarkFlagsMutuallyExclusive("json", "yaml")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
