package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"SignalRelay/internal/model"
	"SignalRelay/internal/signals"
)

// NewSignalsCommand creates the signals command group.
func NewSignalsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Inspect or append rows of the Signals table",
	}
	cmd.AddCommand(newSignalsListCommand(rootOpts))
	cmd.AddCommand(newSignalsAddCommand(rootOpts))
	return cmd
}

func withQueue(ctx context.Context, rootOpts *RootOptions, fn func(*signals.Queue) error) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
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
	if ctx == nil {
		ctx = context.Background()
	}

	q := signals.NewQueue(store, log)
	if err := q.Setup(ctx); err != nil {
		return err
	}
	return fn(q)
}

func newSignalsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List ready, unsent signals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd.Context(), rootOpts, func(q *signals.Queue) error {
				ready, err := q.ListReady(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ROW\tTREND\tSCORE\tSECURITIES\tBREAKER\tSTOP\tENTRY\tTARGET\tREVERSE")
				for _, qs := range ready {
					s := qs.Signal
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						qs.RowID, s.Trend, s.TrendScore, s.Securities, s.MorningBreakerEntry,
						s.Stop, s.Entry, s.Target, s.ReverseSignalDetected)
				}
				return w.Flush()
			})
		},
	}
}

type addOptions struct {
	trend      string
	score      string
	lock       string
	securities string
	breaker    string
	stop       string
	entry      string
	target     string
	reverse    string
}

func (o addOptions) signal() (model.Signal, error) {
	score := decimal.Zero
	if o.score != "" {
		var err error
		if score, err = decimal.NewFromString(o.score); err != nil {
			return model.Signal{}, fmt.Errorf("--score: %w", err)
		}
	}
	breaker := model.MorningBreaker(o.breaker)
	if breaker != model.BreakerOn && breaker != model.BreakerOff {
		return model.Signal{}, fmt.Errorf("--breaker must be ON or OFF, got %q", o.breaker)
	}
	reverse := model.ReverseSignal(o.reverse)
	if reverse != model.ReverseYes && reverse != model.ReverseNo {
		return model.Signal{}, fmt.Errorf("--reverse must be YES or NO, got %q", o.reverse)
	}
	return model.Signal{
		Trend:                 o.trend,
		TrendScore:            score,
		TrendLockActivated:    o.lock,
		Securities:            o.securities,
		MorningBreakerEntry:   breaker,
		Stop:                  o.stop,
		Entry:                 o.entry,
		Target:                o.target,
		ReverseSignalDetected: reverse,
		Ready:                 true,
	}, nil
}

func newSignalsAddCommand(rootOpts *RootOptions) *cobra.Command {
	o := addOptions{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a ready signal row",
		Long: `Append a ready, unsent row to the Signals table. The running relay picks it
up on its next poll.

Example:
  signalrelay signals add --trend Bullish --score 87 --securities SPY \
    --breaker ON --stop 100 --entry 105 --target 120`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := o.signal()
			if err != nil {
				return err
			}
			return withQueue(cmd.Context(), rootOpts, func(q *signals.Queue) error {
				if err := q.Enqueue(cmd.Context(), sig); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s signal for %s\n", sig.Trend, sig.Securities)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.trend, "trend", "", "trend label")
	f.StringVar(&o.score, "score", "", "trend score")
	f.StringVar(&o.lock, "lock", "", "trend lock activated")
	f.StringVar(&o.securities, "securities", "", "securities")
	f.StringVar(&o.breaker, "breaker", string(model.BreakerOff), "morning breaker entry (ON|OFF)")
	f.StringVar(&o.stop, "stop", "", "stop level, used when breaker is ON")
	f.StringVar(&o.entry, "entry", "", "entry level, used when breaker is ON")
	f.StringVar(&o.target, "target", "", "target level, used when breaker is ON")
	f.StringVar(&o.reverse, "reverse", string(model.ReverseNo), "reverse signal detected (YES|NO)")
	_ = cmd.MarkFlagRequired("trend")
	_ = cmd.MarkFlagRequired("securities")
	return cmd
}
