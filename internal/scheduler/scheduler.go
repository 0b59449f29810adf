package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"SignalRelay/internal/calendar"
	"SignalRelay/internal/dispatch"
	"SignalRelay/internal/logger"
	"SignalRelay/internal/metrics"
	"SignalRelay/internal/model"
	"SignalRelay/internal/notifier"
	"SignalRelay/internal/signals"
	"SignalRelay/internal/templates"
)

// Scheduler drives the two polling jobs: signal distribution and scheduled
// announcements. Each job skips a tick while its previous run is still in
// flight; the two jobs run independently of each other.
type Scheduler struct {
	Cron       *cron.Cron
	Queue      *signals.Queue
	Templates  *templates.Store
	Calendar   *calendar.Calendar
	Directory  notifier.Directory
	Dispatcher *dispatch.Dispatcher
	Metrics    *metrics.Recorder
	Log        zerolog.Logger
	Ctx        context.Context

	// Now is the clock; tests replace it.
	Now func() time.Time

	signalsJob       cron.Job
	announcementsJob cron.Job
}

// NewScheduler creates a new Scheduler.
func NewScheduler(
	ctx context.Context,
	queue *signals.Queue,
	tpl *templates.Store,
	cal *calendar.Calendar,
	dir notifier.Directory,
	disp *dispatch.Dispatcher,
	rec *metrics.Recorder,
	log zerolog.Logger,
) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cronLog := logger.Cron{Log: log}
	s := &Scheduler{
		Cron:       cron.New(cron.WithLocation(cal.Location()), cron.WithLogger(cronLog)),
		Queue:      queue,
		Templates:  tpl,
		Calendar:   cal,
		Directory:  dir,
		Dispatcher: disp,
		Metrics:    rec,
		Log:        log,
		Ctx:        ctx,
		Now:        time.Now,
	}

	// The same wrapped job serves both the startup run and the timer, so the
	// skip-if-busy guard covers both.
	chain := cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))
	s.signalsJob = chain.Then(cron.FuncJob(func() { s.runTimed("signals", s.signalsTick) }))
	s.announcementsJob = chain.Then(cron.FuncJob(func() { s.runTimed("announcements", s.announcementsTick) }))
	return s
}

// RegisterAll schedules both jobs at fixed intervals.
func (s *Scheduler) RegisterAll(signalEvery, announceEvery time.Duration) error {
	if signalEvery < time.Second || announceEvery < time.Second {
		return fmt.Errorf("intervals must be at least 1s, got %v and %v", signalEvery, announceEvery)
	}
	s.Cron.Schedule(cron.Every(signalEvery), s.signalsJob)
	s.Cron.Schedule(cron.Every(announceEvery), s.announcementsJob)
	return nil
}

// Start starts the timers and fires both jobs once immediately.
func (s *Scheduler) Start() {
	s.Cron.Start()
	go s.signalsJob.Run()
	go s.announcementsJob.Run()
	s.Log.Info().Msg("scheduler started")
}

// Stop stops the timers and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info().Msg("scheduler stopped")
}

// RunSignalsNow runs one signals tick through the skip-if-busy guard.
func (s *Scheduler) RunSignalsNow() {
	s.signalsJob.Run()
}

// RunAnnouncementsNow runs one announcements tick through the skip-if-busy guard.
func (s *Scheduler) RunAnnouncementsNow() {
	s.announcementsJob.Run()
}

func (s *Scheduler) runTimed(job string, tick func(context.Context, zerolog.Logger) error) {
	log := s.Log.With().Str("job", job).Str("tick_id", uuid.NewString()).Logger()
	start := time.Now()
	err := tick(s.Ctx, log)
	s.Metrics.RecordLatency(job, time.Since(start).Seconds())
	if err != nil {
		s.Metrics.RecordError(job)
		log.Error().Err(err).Msg("tick failed")
	}
}

// signalsTick sends each ready signal to every destination, then marks it
// sent whatever the per-destination outcome.
func (s *Scheduler) signalsTick(ctx context.Context, log zerolog.Logger) error {
	ready, err := s.Queue.ListReady(ctx)
	if err != nil {
		return err
	}
	s.Metrics.SetPending(len(ready))
	if len(ready) == 0 {
		return nil
	}

	dests := s.destinations(ctx, log)
	if len(dests) == 0 {
		log.Debug().Int("ready", len(ready)).Msg("no destinations, leaving signals queued")
		return nil
	}

	for _, qs := range ready {
		report := s.Dispatcher.SendSignal(ctx, dests, &qs.Signal)
		if report.Sent() == 0 {
			log.Warn().Int64("row", qs.RowID).Msg("signal reached no destination, marking sent anyway")
		}
		if err := s.Queue.MarkSent(ctx, qs.RowID); err != nil {
			return err
		}
		log.Info().Int64("row", qs.RowID).Int("sent", report.Sent()).Int("failed", report.Failed()).
			Str("securities", qs.Signal.Securities).Msg("signal distributed")
	}
	return nil
}

// announcementsTick posts the status message that applies now, if any and if
// it was not already posted today.
func (s *Scheduler) announcementsTick(ctx context.Context, log zerolog.Logger) error {
	now := s.Now().In(s.Calendar.Location())
	log.Debug().Str("local", now.Format("Mon 15:04")).Msg("checking scheduled announcements")

	ev, ok := s.Calendar.Decide(now)
	if !ok {
		return nil
	}
	if s.Dispatcher.Seen(ev.Key()) {
		log.Debug().Str("type", string(ev.Type)).Str("date", ev.DateKey).Msg("announcement already sent")
		return nil
	}

	dests := s.destinations(ctx, log)
	if len(dests) == 0 {
		log.Debug().Msg("no destinations for announcement")
		return nil
	}

	text, err := s.render(ctx, ev)
	if err != nil {
		return err
	}

	report, sent := s.Dispatcher.Announce(ctx, dests, ev, text)
	if sent {
		log.Info().Str("type", string(ev.Type)).Str("date", ev.DateKey).
			Int("sent", report.Sent()).Int("failed", report.Failed()).Msg("announcement dispatched")
	}
	return nil
}

func (s *Scheduler) render(ctx context.Context, ev model.AnnouncementEvent) (string, error) {
	if !ev.Type.HasMessage() {
		return "", nil
	}
	set, err := s.Templates.Load(ctx)
	if err != nil {
		return "", err
	}
	return ev.Render(set.For(ev.Type)), nil
}

func (s *Scheduler) destinations(ctx context.Context, log zerolog.Logger) []notifier.Destination {
	dests, err := s.Directory.Destinations(ctx)
	if err != nil {
		s.Metrics.RecordError("discovery")
		log.Error().Err(err).Int("found", len(dests)).Msg("destination discovery incomplete")
	}
	return dests
}
