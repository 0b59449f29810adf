package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"SignalRelay/internal/dispatch"
	"SignalRelay/internal/httpapi"
	"SignalRelay/internal/metrics"
	"SignalRelay/internal/notifier"
	"SignalRelay/internal/scheduler"
	"SignalRelay/internal/signals"
	"SignalRelay/internal/templates"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the signal and announcement loops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context(), rootOpts)
		},
	}
}

func runRelay(parent context.Context, opts *RootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	log.Info().Msg("signalrelay starting")

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	queue := signals.NewQueue(store, log)
	tpl := templates.NewStore(store, log)
	// Create both tables up front so producers and operators see the headers.
	if err := queue.Setup(ctx); err != nil {
		log.Error().Err(err).Msg("signals table setup failed, will retry on poll")
	}
	if _, err := tpl.Load(ctx); err != nil {
		log.Error().Err(err).Msg("messages table setup failed, will retry on announcement")
	}

	cal, err := cfg.Calendar()
	if err != nil {
		return err
	}

	var dirs notifier.Directories
	tg := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	if tg.Enabled() {
		dirs = append(dirs, tg)
		log.Info().Str("chat", cfg.Telegram.ChatID).Msg("telegram destination enabled")
	} else {
		log.Warn().Msg("telegram bot token or chat id missing, telegram disabled")
	}
	if cfg.Discord.Token != "" {
		dc, err := notifier.NewDiscordNotifier(cfg.Discord.Token, cfg.Discord.ChannelName, cfg.Discord.ChannelIDs, log)
		if err != nil {
			return err
		}
		if err := dc.Open(); err != nil {
			return err
		}
		defer dc.Close()
		dirs = append(dirs, dc)
		log.Info().Str("channel", cfg.Discord.ChannelName).Msg("discord destinations enabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)
	disp := dispatch.New(log, rec)

	sched := scheduler.NewScheduler(ctx, queue, tpl, cal, dirs, disp, rec, log)
	if err := sched.RegisterAll(cfg.Schedule.SignalInterval, cfg.Schedule.AnnouncementInterval); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	var srv *httpapi.Server
	if !cfg.HTTP.Disabled {
		srv = httpapi.NewServer(cfg.HTTP.Addr, disp, reg, log)
		srv.Start()
	}

	sched.Start()
	log.Info().
		Dur("signal_interval", cfg.Schedule.SignalInterval).
		Dur("announcement_interval", cfg.Schedule.AnnouncementInterval).
		Str("timezone", cfg.Schedule.Timezone).
		Msg("signalrelay is running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received, stopping")
	case <-ctx.Done():
	}

	cancel()
	sched.Stop()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}
	log.Info().Msg("signalrelay stopped")
	return nil
}
