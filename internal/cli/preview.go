package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"SignalRelay/internal/notifier"
	"SignalRelay/internal/templates"
)

const previewLayout = "2006-01-02 15:04"

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show which announcement applies at a business-local time",
		Long: `Show the announcement the scheduler would dispatch at a given minute of the
business timezone, rendered with the current Messages table.

Example:
  signalrelay preview --at "2026-10-16 11:33"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			cal, err := cfg.Calendar()
			if err != nil {
				return err
			}

			now := time.Now().In(cal.Location())
			if at != "" {
				now, err = time.ParseInLocation(previewLayout, at, cal.Location())
				if err != nil {
					return fmt.Errorf("--at must look like %q: %w", previewLayout, err)
				}
			}

			out := cmd.OutOrStdout()
			ev, ok := cal.Decide(now)
			if !ok {
				fmt.Fprintf(out, "no announcement at %s\n", now.Format("Mon "+previewLayout+" MST"))
				return nil
			}
			fmt.Fprintf(out, "event: %s (%s)\n", ev.Type, ev.DateKey)
			if !ev.Type.HasMessage() {
				fmt.Fprintln(out, "message: none, the previous status message is deleted")
				return nil
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			store, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			set, err := templates.NewStore(store, log).Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "message: %s\n", notifier.FormatAnnouncement(ev.Render(set.For(ev.Type)), notifier.Markdown))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "business-local time as YYYY-MM-DD HH:MM (default now)")
	return cmd
}
