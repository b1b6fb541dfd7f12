package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/termsaver/indicatord/internal/updater"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show indicatord and screensaver versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "indicatord version %s\n", rootCmd.Version)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		checker := updater.NewChecker(updater.Options{VersionFile: cfg.VersionFile()})
		fmt.Fprintf(cmd.OutOrStdout(), "  screensaver: %s\n", checker.LocalVersion())
		return nil
	},
}
