package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rereminder/internal/alarm"
	"rereminder/internal/database"
	"rereminder/internal/events"
	"rereminder/internal/history"
	"rereminder/internal/platform"
	"rereminder/shared/reminders"
)

const metricsNamespace = "rereminder"

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the reminder daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runDaemon(ctx)
		},
	}
}

func (a *app) runDaemon(ctx context.Context) error {
	cfg := a.cfg

	res, err := a.openResources(ctx)
	if err != nil {
		return err
	}
	defer res.Close()

	outs, err := a.buildOutputs(platform.ExecRunner{})
	if err != nil {
		return err
	}
	defer outs.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := reminders.NewMetrics(metricsNamespace, reg)

	bus := events.NewEventBus(a.log("events"))
	bus.Subscribe(reminders.EventScheduled, func(ev events.Event) error {
		var scheduled reminders.ScheduledEvent
		if err := ev.Decode(&scheduled); err != nil {
			return err
		}
		a.logger.Debug().Time("trigger_at", scheduled.TriggerAt).Str("mode", scheduled.Mode).Msg("next reminder armed")
		return nil
	})

	alarms := alarm.NewManager(alarm.Config{
		AllowExact:    cfg.Alarm.Exact,
		CheckInterval: cfg.AlarmCheckInterval(),
	}, a.log("alarm"))

	deps := reminders.Deps{Logger: a.log("reminders"), Metrics: metrics, Events: bus}
	scheduler := reminders.NewScheduler(res.store, alarms, deps)
	handler := reminders.NewHandler(res.store, scheduler, outs.emitters, reminders.DefaultTexts(cfg.Language), deps)
	loop := reminders.NewLoop(res.store, scheduler, handler, deps)
	alarms.Register(reminders.AlarmSlot, loop.OnAlarm)

	if cfg.History.Enabled {
		repo := history.NewRepository(res.db)
		history.NewRecorder(repo, a.log("history")).Attach(bus)

		historySvc := history.NewService(history.ServiceConfig{
			RetentionDays: cfg.History.RetentionDays,
			MonthlyReport: cfg.History.MonthlyReport,
			Location:      time.Local,
		}, repo, outs.documentSender(), a.log("history"))
		historySvc.Start()
		defer historySvc.Stop()
	}

	if cfg.Backup.Enabled && res.db != nil {
		backups := database.NewBackupService(res.db, a.backupConfig(), &a.logger)
		go backups.Start(ctx)
	}

	alarms.Start(ctx)
	defer alarms.Stop()

	if err := loop.Restore(ctx); err != nil {
		a.logger.Error().Err(err).Msg("failed to restore reminder state")
	}

	reconciler := reminders.NewReconciler(res.store, loop, cfg.SettingsPollInterval(), a.log("reconciler"))
	reconciler.Sync(ctx)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	healthPort := cfg.Monitoring.HealthCheckPort
	if healthPort == 0 {
		healthPort = 8090
	}
	go startHealthServer(ctx, healthPort, res, &a.logger)

	if cfg.Monitoring.PrometheusEnabled {
		port := cfg.Monitoring.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go startMetricsServer(ctx, port, reg, &a.logger)
	}

	a.logger.Info().
		Str("state", loop.State().String()).
		Str("settings_backend", cfg.Settings.Backend).
		Str("presenter", cfg.Notification.Presenter).
		Msg("reminder daemon started")

	<-ctx.Done()
	a.logger.Info().Msg("shutting down")
	return nil
}

func newHealthHandler(res *resources) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctxPing, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if res.db != nil {
			if err := res.db.Ping(ctxPing); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if err := res.store.Ping(ctxPing); err != nil {
			http.Error(w, "settings store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

func startHealthServer(ctx context.Context, port int, res *resources, logger *zerolog.Logger) {
	serve(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: newHealthHandler(res)}, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, reg *prometheus.Registry, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	serve(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}, "metrics", logger)
}

func serve(ctx context.Context, srv *http.Server, name string, logger *zerolog.Logger) {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
