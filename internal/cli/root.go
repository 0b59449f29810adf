// Package cli wires configuration, storage, destinations and the scheduler
// into the signalrelay command.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "signalrelay",
		Short: "Distribute trading signals and scheduled status announcements",
		Long: `signalrelay polls the Signals table for ready rows and posts them to every
configured Telegram chat and Discord channel, and posts market status
announcements (midday close, weekend, midnight reopen) on the business clock.`,
		SilenceUsage: true,
	}

	defaultConfig := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfig, "path to YAML config")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewPreviewCommand(opts))
	cmd.AddCommand(NewSignalsCommand(opts))

	return cmd
}
