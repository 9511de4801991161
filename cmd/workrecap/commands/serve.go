package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/workrecap/workrecap/internal/api"
	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/internal/scheduler"
)

// ServeCommand holds flags and dependencies for the serve command.
type ServeCommand struct {
	globals *Globals
	factory appFactory

	addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(g *Globals) *cobra.Command {
	return newServeCommandWithDeps(g, newApp)
}

func newServeCommandWithDeps(g *Globals, factory appFactory) *cobra.Command {
	sc := &ServeCommand{globals: g, factory: factory}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the scheduler",
		Long: "Serve the pipeline, summary, and scheduler APIs over HTTP and run\n" +
			"the cron schedule until interrupted.",
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	cmd.Flags().StringVar(&sc.addr, "addr", "", "Listen address (default: config listen_addr)")

	return cmd
}

func (sc *ServeCommand) run(cmd *cobra.Command, _ []string) error {
	a, err := sc.factory(sc.globals, observability.ModeServe)
	if err != nil {
		return err
	}
	defer a.close()

	metrics, metricsHandler, err := observability.NewPrometheusMetrics()
	if err != nil {
		return err
	}

	a.metrics = metrics

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.InitTracing(ctx, a.obs)
	if err != nil {
		return err
	}

	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(a.obs.ShutdownTimeoutSec)*time.Second)
		defer cancel()

		if err := telemetry.Shutdown(flushCtx); err != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	schedCfg, err := scheduler.LoadScheduleConfig(a.cfg.Scheduler.ConfigPath)
	if err != nil {
		return err
	}

	workers := schedCfg.Daily.Workers
	if workers == 0 {
		workers = a.cfg.Pipeline.MaxWorkers
	}

	pipe, err := a.buildPipeline(ctx, workers, schedCfg.Daily.Enrich)
	if err != nil {
		return err
	}

	history := scheduler.NewHistory(a.cfg.SchedulerHistoryPath())

	sched := scheduler.New(scheduler.Options{
		Config:   schedCfg,
		History:  history,
		Notifier: buildNotifier(a, schedCfg),
		Pipeline: pipe,
		Metrics:  metrics,
		Logger:   a.logger,
	})

	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	fetchSvc, err := a.fetcher(workers)
	if err != nil {
		return err
	}

	server := api.New(api.Options{
		Config:         a.cfg,
		Pipeline:       pipe,
		Fetch:          fetchSvc,
		Normalize:      a.normalizer(true),
		NormalizePlain: a.normalizer(false),
		Summarize:      a.summarizer(),
		Scheduler:      sched,
		History:        history,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		Logger:         a.logger,
	})

	addr := sc.addr
	if addr == "" {
		addr = a.cfg.API.ListenAddr
	}

	a.logger.Info("serving", "addr", addr)

	return server.ListenAndServe(ctx, addr)
}

// buildNotifier assembles the notification chain: the log channel always
// runs, Telegram and Slack join when the schedule enables them and the
// application config carries their credentials.
func buildNotifier(a *app, schedCfg *scheduler.ScheduleConfig) scheduler.Notifier {
	notifiers := []scheduler.Notifier{scheduler.LogNotifier{Logger: a.logger}}

	if schedCfg.Telegram.Enabled {
		if a.cfg.Notify.TelegramBotToken != "" && a.cfg.Notify.TelegramChatID != "" {
			telegram := scheduler.NewTelegramNotifier(
				a.cfg.Notify.TelegramBotToken, a.cfg.Notify.TelegramChatID, a.cfg, a.logger)
			notifiers = append(notifiers, scheduler.Gated(telegram, schedCfg.Notification))
		} else {
			a.logger.Warn("telegram notifications enabled but credentials missing")
		}
	}

	if schedCfg.Slack.Enabled {
		if a.cfg.Notify.SlackToken != "" {
			slack := scheduler.NewSlackNotifier(a.cfg.Notify.SlackToken, schedCfg.Slack.Channel)
			notifiers = append(notifiers, scheduler.Gated(slack, schedCfg.Notification))
		} else {
			a.logger.Warn("slack notifications enabled but credentials missing")
		}
	}

	if len(notifiers) == 1 {
		return notifiers[0]
	}

	return scheduler.NewCompositeNotifier(a.logger, notifiers...)
}
